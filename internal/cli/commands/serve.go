package commands

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/meetmind/internal/api/handlers"
	"github.com/cloo-solutions/meetmind/internal/api/middleware"
	"github.com/cloo-solutions/meetmind/internal/jobs"
	"github.com/cloo-solutions/meetmind/internal/server"
	"github.com/cloo-solutions/meetmind/internal/service"
	"github.com/cloo-solutions/meetmind/internal/storage"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the meetmind API server with the chunk sweeper running in the background",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides MEETMIND_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, shutdownTelemetry, err := loadConfig()
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	a, err := buildApp(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer a.close()

	sweeper := jobs.NewWorker("sweeper",
		jobs.NewChunkSweeper(cfg.TempDir, cfg.ChunkMaxAge,
			service.ChunkFilePrefix+"*",
			handlers.UploadFilePrefix+"*",
			storage.DownloadFilePrefix+"*",
		),
		cfg.ChunkSweepInterval)
	go sweeper.Start(ctx)

	var validator middleware.AuthValidator
	if cfg.APIToken != "" {
		validator = middleware.StaticToken{Token: cfg.APIToken}
	} else {
		log.Println("warning: MEETMIND_API_TOKEN not set, API is unauthenticated")
	}

	var source handlers.AudioSource
	if a.audio != nil {
		source = a.audio
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:        validator,
		TranscriptionHandler: handlers.NewTranscriptionHandler(a.transcription, source, cfg.TempDir, cfg.MaxUploadBytes()),
		MeetingHandler:       handlers.NewMeetingHandler(a.indexer),
		QueryHandler:         handlers.NewQueryHandler(a.retrieval, cfg.TopK),
		MaxUploadBytes:       cfg.MaxUploadBytes(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		sweeper.Stop()
		return fmt.Errorf("server failed: %w", err)
	}
	log.Println("shutting down...")

	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
