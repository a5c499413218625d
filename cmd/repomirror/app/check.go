package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	mirrorapp "github.com/stacklok/repomirror/internal/app"
	"github.com/stacklok/repomirror/internal/filter"
	"github.com/stacklok/repomirror/internal/status"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and compile every filter file",
	Long: `Load the configuration and compile the filter file of every source. Each
filter error is printed as <file>:<line>:<column>: <message>, and the command
exits non-zero when anything is wrong.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			reportCompilationErrors(cmd.ErrOrStderr(), err)
			return err
		}
		for _, src := range cfg.Sources {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d filter rules\n", src.Name, src.Program().Len())
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of the latest sync pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return printStatus(cmd, status.NewFileStore(filepath.Join(cfg.Directory, mirrorapp.StatusDirName)))
	},
}

func init() {
	addConfigFlag(checkCmd)
	addConfigFlag(statusCmd)
}

// reportCompilationErrors writes one line per filter error carried by err
func reportCompilationErrors(w io.Writer, err error) {
	for _, ce := range filter.CompilationErrors(err) {
		_, _ = fmt.Fprintln(w, ce.Error())
	}
}

func printStatus(cmd *cobra.Command, store status.Store) error {
	passStatus, err := store.Load(cmd.Context())
	if errors.Is(err, status.ErrNoStatus) {
		return fmt.Errorf("no sync pass has been recorded yet")
	}
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(passStatus, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format status as JSON: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}
