// Package commands implements the meetmind cobra commands.
package commands

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/meetmind/internal/chroma"
	"github.com/cloo-solutions/meetmind/internal/config"
	"github.com/cloo-solutions/meetmind/internal/database"
	"github.com/cloo-solutions/meetmind/internal/media"
	"github.com/cloo-solutions/meetmind/internal/openai"
	"github.com/cloo-solutions/meetmind/internal/repository"
	"github.com/cloo-solutions/meetmind/internal/service"
	"github.com/cloo-solutions/meetmind/internal/storage"
	"github.com/cloo-solutions/meetmind/internal/telemetry"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds the services built from configuration. close releases whatever
// the backends opened.
type app struct {
	cfg           *config.Config
	store         service.VectorStore
	transcription *service.TranscriptionService
	indexer       *service.IndexService
	retrieval     *service.RetrievalService
	audio         *storage.S3Client
	closers       []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig loads configuration and starts telemetry.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		shutdown = func() {}
	}
	return cfg, shutdown, nil
}

// buildApp wires every service. migrate applies pgvector migrations first.
func buildApp(ctx context.Context, cfg *config.Config, migrate bool) (*app, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("MEETMIND_OPENAI_API_KEY is required")
	}

	a := &app{cfg: cfg}

	store, closeStore, err := newVectorStore(ctx, cfg, migrate)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		EmbeddingModel: goopenai.EmbeddingModel(cfg.EmbeddingModel),
	})
	resolver := service.NewCollectionResolver(store)
	splitter := service.NewTextSplitter(service.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})

	a.transcription = service.NewTranscriptionService(
		openai.NewTranscriber(cfg.OpenAIAPIKey, cfg.TranscriptionModel),
		media.NewFFmpeg(),
		service.TranscriptionConfig{
			Language:       cfg.Language,
			MaxUploadBytes: cfg.MaxUploadBytes(),
			TempDir:        cfg.TempDir,
		},
	)
	a.indexer = service.NewIndexService(store, embedder, resolver, splitter)
	a.retrieval = service.NewRetrievalService(store, embedder, resolver,
		openai.NewChatClient(cfg.OpenAIAPIKey, cfg.ChatModel))

	if cfg.HasS3() {
		audio, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
			MaxObjectBytes:  cfg.MaxUploadBytes(),
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		a.audio = audio
	}

	return a, nil
}

// newVectorStore returns the configured backend and a release function.
func newVectorStore(ctx context.Context, cfg *config.Config, migrate bool) (service.VectorStore, func(), error) {
	if !cfg.UsePgvector() {
		log.Printf("vector store: chroma at %s (tenant %s, database %s)", cfg.ChromaURL, cfg.ChromaTenant, cfg.ChromaDatabase)
		return chroma.New(chroma.Config{
			BaseURL:  cfg.ChromaURL,
			APIKey:   cfg.ChromaAPIKey,
			Tenant:   cfg.ChromaTenant,
			Database: cfg.ChromaDatabase,
		}), func() {}, nil
	}

	if migrate {
		if err := database.Migrate(cfg.DatabaseURL, database.DefaultMigrationsURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, err
	}
	log.Println("vector store: pgvector")
	return repository.NewFragmentStore(pool), pool.Close, nil
}

// localAudio resolves an input argument to a local file. Remote inputs are
// downloaded and the returned cleanup removes them.
func (a *app) localAudio(ctx context.Context, input string) (string, func(), error) {
	if !storage.IsS3URI(input) {
		return input, func() {}, nil
	}
	if a.audio == nil {
		return "", nil, fmt.Errorf("%s requires S3 configuration (MEETMIND_S3_ENDPOINT and credentials)", input)
	}
	path, err := a.audio.Download(ctx, input, a.cfg.TempDir)
	if err != nil {
		return "", nil, err
	}
	return path, func() { removeQuietly(path) }, nil
}
