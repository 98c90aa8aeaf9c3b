package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendChroma   = "chroma"
	BackendPgvector = "pgvector"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	APIToken string `envconfig:"API_TOKEN"`

	OpenAIAPIKey       string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	ChatModel          string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	TranscriptionModel string `envconfig:"TRANSCRIPTION_MODEL" default:"whisper-1"`
	Language           string `envconfig:"LANGUAGE" default:"en"`

	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"chroma"`
	ChromaURL      string `envconfig:"CHROMA_URL" default:"https://api.trychroma.com"`
	ChromaAPIKey   string `envconfig:"CHROMA_API_KEY"`
	ChromaTenant   string `envconfig:"CHROMA_TENANT" default:"default_tenant"`
	ChromaDatabase string `envconfig:"CHROMA_DATABASE" default:"default_database"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`

	ChunkSize    int `envconfig:"RAG_CHUNK_SIZE" default:"1000"`
	ChunkOverlap int `envconfig:"RAG_CHUNK_OVERLAP" default:"200"`
	TopK         int `envconfig:"RAG_TOP_K" default:"5"`
	MaxUploadMB  int `envconfig:"MAX_UPLOAD_MB" default:"100"`

	// TempDir holds chunk and download files; empty means os.TempDir.
	TempDir string `envconfig:"TEMP_DIR"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"meetmind-recordings"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	ChunkSweepInterval time.Duration `envconfig:"CHUNK_SWEEP_INTERVAL" default:"10m"`
	ChunkMaxAge        time.Duration `envconfig:"CHUNK_MAX_AGE" default:"1h"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MEETMIND", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.VectorBackend {
	case BackendChroma:
	case BackendPgvector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("MEETMIND_DATABASE_URL is required when MEETMIND_VECTOR_BACKEND=pgvector")
		}
	default:
		return fmt.Errorf("unknown vector backend %q (want %s or %s)", c.VectorBackend, BackendChroma, BackendPgvector)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("MEETMIND_RAG_CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("MEETMIND_RAG_CHUNK_OVERLAP must be in [0, %d)", c.ChunkSize)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MEETMIND_MAX_UPLOAD_MB must be positive")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasChroma() bool {
	return c.ChromaURL != ""
}

func (c *Config) UsePgvector() bool {
	return c.VectorBackend == BackendPgvector
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}
