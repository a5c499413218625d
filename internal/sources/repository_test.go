package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/repomirror/internal/git/mocks"
)

const testURL = "https://example.com/octocat/hello.git"

func TestUpdateMirror_FetchesExistingDirectory(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	destination := filepath.Join(t.TempDir(), "octocat", "hello.git")
	require.NoError(t, os.MkdirAll(destination, 0750))

	executor.EXPECT().FetchPrune(gomock.Any(), destination).Return(nil)

	require.NoError(t, UpdateMirror(context.Background(), executor, testURL, destination))
}

func TestUpdateMirror_ClonesMissingDestination(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	destination := filepath.Join(t.TempDir(), "octocat", "hello.git")

	executor.EXPECT().MirrorClone(gomock.Any(), testURL, destination).DoAndReturn(
		func(_ context.Context, _, dest string) error {
			info, err := os.Stat(filepath.Dir(dest))
			require.NoError(t, err)
			assert.True(t, info.IsDir())
			return nil
		})

	require.NoError(t, UpdateMirror(context.Background(), executor, testURL, destination))
}

func TestUpdateMirror_ParentIsNotADirectory(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	parent := filepath.Join(t.TempDir(), "octocat")
	require.NoError(t, os.WriteFile(parent, []byte("occupied"), 0600))

	err := UpdateMirror(context.Background(), executor, testURL, filepath.Join(parent, "hello.git"))
	require.Error(t, err)
	assert.Equal(t, "not a directory: "+parent, err.Error())
}

func TestUpdateMirror_ExecutorErrors(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 128")

	t.Run("clone", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		executor := mocks.NewMockExecutor(ctrl)
		executor.EXPECT().MirrorClone(gomock.Any(), gomock.Any(), gomock.Any()).Return(cause)

		err := UpdateMirror(context.Background(), executor, testURL, filepath.Join(t.TempDir(), "g", "r.git"))
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "failed to clone mirror")
	})

	t.Run("fetch", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		executor := mocks.NewMockExecutor(ctrl)
		executor.EXPECT().FetchPrune(gomock.Any(), gomock.Any()).Return(cause)

		err := UpdateMirror(context.Background(), executor, testURL, t.TempDir())
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "failed to fetch mirror")
	})
}

func TestRepository_Update(t *testing.T) {
	t.Parallel()

	t.Run("runs post update after success", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		executor := mocks.NewMockExecutor(ctrl)
		executor.EXPECT().FetchPrune(gomock.Any(), gomock.Any()).Return(nil)

		destination := t.TempDir()
		var called string
		repo := testRepository("octocat", "hello")
		repo.executor = executor
		repo.after = func(_ context.Context, r *repository, dest string) error {
			called = r.String() + "@" + dest
			return nil
		}

		require.NoError(t, repo.Update(context.Background(), destination))
		assert.Equal(t, "octocat/hello@"+destination, called)
	})

	t.Run("skips post update after failure", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		executor := mocks.NewMockExecutor(ctrl)
		executor.EXPECT().FetchPrune(gomock.Any(), gomock.Any()).Return(errors.New("boom"))

		repo := testRepository("octocat", "hello")
		repo.executor = executor
		repo.after = func(context.Context, *repository, string) error {
			t.Fatal("post update must not run")
			return nil
		}

		require.Error(t, repo.Update(context.Background(), t.TempDir()))
	})

	t.Run("returns post update error", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		executor := mocks.NewMockExecutor(ctrl)
		executor.EXPECT().FetchPrune(gomock.Any(), gomock.Any()).Return(nil)

		repo := testRepository("octocat", "hello")
		repo.executor = executor
		repo.after = func(context.Context, *repository, string) error {
			return errors.New("artifact failed")
		}

		err := repo.Update(context.Background(), t.TempDir())
		require.Error(t, err)
		assert.Equal(t, "artifact failed", err.Error())
	})
}
