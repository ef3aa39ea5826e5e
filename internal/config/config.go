package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Debug bool `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL"`

	// Chunking policy
	MaxChunkSize     int `envconfig:"MAX_CHUNK_SIZE" default:"1000"`
	MinChunkSize     int `envconfig:"MIN_CHUNK_SIZE" default:"50"`
	ChunkOverlap     int `envconfig:"CHUNK_OVERLAP" default:"200"`
	MinContentLength int `envconfig:"MIN_CONTENT_LENGTH" default:"50"`

	// Retrieval policy. The ranking weights were tuned empirically in
	// production and are deliberately configuration, not constants.
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.7"`
	PriorityWeight      float64 `envconfig:"PRIORITY_WEIGHT" default:"0.4"`
	DiversityWeight     float64 `envconfig:"DIVERSITY_WEIGHT" default:"0.3"`
	MaxContextTokens    int     `envconfig:"MAX_CONTEXT_TOKENS" default:"2000"`
	MaxContextChunks    int     `envconfig:"MAX_CONTEXT_CHUNKS" default:"5"`

	// Rate-limit contract with the embedding provider during ingestion
	EmbedDelay time.Duration `envconfig:"EMBED_DELAY" default:"100ms"`
	ItemDelay  time.Duration `envconfig:"ITEM_DELAY" default:"500ms"`

	// Reprocess worker
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`

	// TTL for the bot-to-company resolution cache
	BotCacheTTL time.Duration `envconfig:"BOT_CACHE_TTL" default:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RAGCORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
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

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
