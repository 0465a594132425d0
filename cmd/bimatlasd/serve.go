package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bimatlas/core/internal/store/graph"
	"github.com/bimatlas/core/internal/store/relational"
	"github.com/bimatlas/core/internal/telemetry"
)

var (
	serveConfigPath string
	serveDialect    string
	sweepInterval   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the query/ingest HTTP and SSE server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(rootCtx, serveConfigPath, relational.Dialect(serveDialect))
		if err != nil {
			return err
		}
		defer func() { _ = a.closeFunc() }()

		shutdownTelemetry, err := telemetry.Init("bimatlasd")
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() { _ = shutdownTelemetry(context.Background()) }()

		sweeper := graph.NewSweeper(a.graph, a.log, sweepInterval)
		go sweeper.Run(rootCtx, a.rel.LiveBranchIDs)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Port),
			Handler:           a.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("listening", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("serving: %w", err)
			}
		case <-rootCtx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.log.Info("shutting down")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to bimatlas.toml")
	serveCmd.Flags().StringVar(&serveDialect, "dialect", "sqlite", "relational dialect: postgres or sqlite")
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 10*time.Minute, "interval between graph orphan sweeps")
}

// spoolUpload copies an uploaded IFC file to a temp path on disk, since the
// Extractor reads from a path rather than an io.Reader.
func spoolUpload(r io.Reader, originalName string) (string, error) {
	f, err := os.CreateTemp("", "bimatlas-upload-*-"+filepath.Base(originalName))
	if err != nil {
		return "", fmt.Errorf("spooling upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("spooling upload: %w", err)
	}
	return f.Name(), nil
}

func removeSpooled(path string) {
	_ = os.Remove(path)
}
