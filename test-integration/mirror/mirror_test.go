package mirror

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/repomirror/internal/status"
	"github.com/stacklok/repomirror/test-integration/mirror/helpers"
)

var _ = Describe("Mirror Sync", Label("mirror", "git"), func() {
	var (
		gitHelper    *helpers.GitTestHelper
		serverHelper *helpers.ServerTestHelper
		workDir      string
		mirrorDir    string
	)

	BeforeEach(func() {
		gitHelper = helpers.NewGitTestHelper(ctx)
		workDir = createTempDir("mirror-config-*")
		mirrorDir = filepath.Join(workDir, "mirrors")
	})

	AfterEach(func() {
		if serverHelper != nil {
			Expect(serverHelper.StopServer()).To(Succeed())
			serverHelper = nil
		}
		Expect(gitHelper.CleanupRepositories()).To(Succeed())
		cleanupTempDir(workDir)
	})

	startServer := func(opts helpers.ConfigOptions) {
		opts.MirrorDir = mirrorDir
		configPath := helpers.WriteConfigYAML(workDir, opts)
		serverHelper = helpers.NewServerTestHelper(ctx, configPath)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	}

	Context("with the command backend", func() {
		It("should mirror included repositories and skip excluded ones", func() {
			kept := gitHelper.CreateRepository("kept")
			dropped := gitHelper.CreateRepository("dropped")

			startServer(helpers.ConfigOptions{
				Filter: "include tools/.*\nexclude tools/dropped\n",
				Repositories: []helpers.StaticRepository{
					{Group: "tools", Name: "kept", URL: kept.CloneURL},
					{Group: "tools", Name: "dropped", URL: dropped.CloneURL},
				},
			})
			serverHelper.WaitForPasses(1, 30*time.Second)

			keptMirror := filepath.Join(mirrorDir, "tools", "kept.git")
			Expect(keptMirror).To(BeADirectory())
			Expect(filepath.Join(mirrorDir, "tools", "dropped.git")).NotTo(BeAnExistingFile())
			Expect(gitHelper.MirrorRef(keptMirror, "refs/heads/main")).NotTo(BeEmpty())

			Eventually(func() (status.PassPhase, error) {
				passStatus, err := serverHelper.GetStatus()
				if err != nil {
					return "", err
				}
				return passStatus.Phase, nil
			}, 10*time.Second, 100*time.Millisecond).Should(Equal(status.PassPhaseComplete))
		})

		It("should pick up new commits and prune deleted branches on later passes", func() {
			upstream := gitHelper.CreateRepository("service")
			gitHelper.CreateBranch(upstream, "feature")

			startServer(helpers.ConfigOptions{
				Filter: "include .*\n",
				Repositories: []helpers.StaticRepository{
					{Group: "apps", Name: "service", URL: upstream.CloneURL},
				},
			})
			serverHelper.WaitForPasses(1, 30*time.Second)

			mirror := filepath.Join(mirrorDir, "apps", "service.git")
			Expect(gitHelper.MirrorRef(mirror, "refs/heads/feature")).NotTo(BeEmpty())

			latest := gitHelper.Commit(upstream, "CHANGELOG.md", "v2\n", "Second commit")
			gitHelper.DeleteBranch(upstream, "feature")

			Eventually(func() string {
				return gitHelper.MirrorRef(mirror, "refs/heads/main")
			}, 30*time.Second, 250*time.Millisecond).Should(Equal(latest))
			Eventually(func() string {
				return gitHelper.MirrorRef(mirror, "refs/heads/feature")
			}, 30*time.Second, 250*time.Millisecond).Should(BeEmpty())
		})
	})

	Context("with the go-git backend", func() {
		It("should produce a bare mirror", func() {
			upstream := gitHelper.CreateRepository("library")

			startServer(helpers.ConfigOptions{
				Backend: "go-git",
				Filter:  "include libs/.*\n",
				Repositories: []helpers.StaticRepository{
					{Group: "libs", Name: "library", URL: upstream.CloneURL},
				},
			})
			serverHelper.WaitForPasses(1, 30*time.Second)

			mirror := filepath.Join(mirrorDir, "libs", "library.git")
			Expect(filepath.Join(mirror, "HEAD")).To(BeARegularFile())
			Expect(gitHelper.MirrorRef(mirror, "refs/heads/main")).NotTo(BeEmpty())
		})
	})

	Context("in dry run mode", func() {
		It("should not create any mirror", func() {
			upstream := gitHelper.CreateRepository("preview")

			startServer(helpers.ConfigOptions{
				DryRun: true,
				Filter: "include .*\n",
				Repositories: []helpers.StaticRepository{
					{Group: "tools", Name: "preview", URL: upstream.CloneURL},
				},
			})
			serverHelper.WaitForPasses(1, 30*time.Second)

			_, err := os.Stat(filepath.Join(mirrorDir, "tools", "preview.git"))
			Expect(os.IsNotExist(err)).To(BeTrue())

			snapshot, err := serverHelper.GetMetrics()
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot.Passes).To(BeNumerically(">=", 1))
		})
	})
})
