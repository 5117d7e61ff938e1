package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/kozaktomas/facemood/internal/recognition"
	"github.com/kozaktomas/facemood/internal/reporting"
	"github.com/kozaktomas/facemood/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the facemood HTTP API.

The API exposes enrollment, recognition and reporting under /api/v1. Identity
changes made through the API are visible to recognition immediately; changes
made by other processes appear after POST /api/v1/index/refresh.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Printf("Using %s backend\n", cfg.Database.Backend())

	collab, err := newCollaborators(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer collab.Close()

	index := recognition.NewIdentityIndex(store)
	if err := index.Refresh(ctx); err != nil {
		return err
	}
	fmt.Printf("Loaded %d enrolled identities\n", index.Len())

	server := web.NewServer(cfg, web.Services{
		Store:      store,
		Pipeline:   collab.pipeline,
		Index:      index,
		Enrollment: enrollment.NewService(store, collab.pipeline, cfg.Embedding.Dim, cfg.Matching.DuplicateThreshold),
		Reporting:  reporting.NewService(store),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facemood API on http://%s:%d/api/v1\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-done
	collab.printUsage()
	return nil
}
