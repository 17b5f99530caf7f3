// Package main implements an OpenAI-compatible mock model server for running
// specforge offline.
//
// Fixtures are plain-text answers named by model. "gpt-4o.md" is returned for
// every call to model gpt-4o; numbered files ("gpt-4o.1.md", "gpt-4o.2.md")
// are served in call order first, after which the base file repeats. A
// generate/review/repair run can therefore be scripted as three files.
//
// Point specforge at it with a keyless provider:
//
//	providers:
//	  - provider: ollama
//	    url: http://localhost:11434/v1
//	    model: gpt-4o
//	    keyless: true
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixtureDir string
		addr       string
	)

	cmd := &cobra.Command{
		Use:          "mock-model",
		Short:        "Serve canned chat-completion answers from fixture files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_MODEL_FIXTURES")
			}
			if fixtureDir == "" {
				return errors.New("--fixtures is required")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			fixtures, err := loadFixtures(fixtureDir)
			if err != nil {
				return err
			}
			for name, seq := range fixtures {
				logger.Info("Loaded fixtures", "model", name, "count", len(seq))
			}

			return serve(cmd.Context(), addr, newServer(fixtures, logger), logger)
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory of <model>[.N].md answer files")
	cmd.Flags().StringVar(&addr, "addr", ":11434", "Listen address")
	return cmd
}

func serve(ctx context.Context, addr string, s *server, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Mock model server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
