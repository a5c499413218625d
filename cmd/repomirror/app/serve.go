package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mirrorapp "github.com/stacklok/repomirror/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mirror server",
	Long: `Start the mirror server. It runs sync passes until interrupted and serves
health, metrics and status on the management address.

The configuration file (--config) names the mirror directory, the pause between
passes and the repository sources with their filter files.
See examples/ directory for sample configurations.`,
	RunE: runServe,
}

// defaultGracefulTimeout bounds how long a running repository update may
// delay shutdown
const defaultGracefulTimeout = 5 * time.Minute

func init() {
	addConfigFlag(serveCmd)
	serveCmd.Flags().String("address", "", "Address to listen on (overrides server.address)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		panic(fmt.Sprintf("failed to bind address flag: %v", err))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		reportCompilationErrors(cmd.ErrOrStderr(), err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"directory", cfg.Directory,
		"sources", len(cfg.Sources),
		"pause", cfg.PauseDuration.Std().String())

	opts := []mirrorapp.MirrorAppOptions{mirrorapp.WithConfig(cfg)}
	if address := viper.GetString("address"); address != "" {
		opts = append(opts, mirrorapp.WithAddress(address))
	}

	mirror, err := mirrorapp.NewMirrorApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mirror server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- mirror.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-errChan:
		if stopErr := mirror.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop mirror server", "error", stopErr)
		}
		return err
	}

	if err := mirror.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errChan
}
