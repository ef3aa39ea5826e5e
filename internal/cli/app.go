// Package cli implements the ragcored commands.
package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voxloop/ragcore/internal/config"
	"github.com/voxloop/ragcore/internal/database"
	"github.com/voxloop/ragcore/internal/openai"
	"github.com/voxloop/ragcore/internal/repository"
	"github.com/voxloop/ragcore/internal/service"
)

// app bundles the wired services every command operates on.
type app struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	logger    *zap.Logger
	items     *repository.KnowledgeItemRepository
	admin     *service.KnowledgeAdminService
	rag       *service.RAGService
	analytics *service.AsyncAnalyticsRecorder
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	items := repository.NewKnowledgeItemRepository(pool)
	assignments := repository.NewAssignmentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	a := &app{
		cfg:    cfg,
		pool:   pool,
		logger: logger,
		items:  items,
		admin:  service.NewKnowledgeAdminService(items, assignments, txRunner, logger),
	}

	if cfg.HasOpenAI() {
		provider := openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: goopenai.EmbeddingModel(cfg.EmbeddingModel),
		})
		a.analytics = service.NewAsyncAnalyticsRecorder(repository.NewAnalyticsRepository(pool), logger)
		a.rag = service.NewRAGService(
			items,
			repository.NewKnowledgeChunkRepository(pool),
			repository.NewSimilaritySearchRepository(pool),
			repository.NewBotRepository(pool),
			provider,
			service.NewLocalChunker(),
			a.analytics,
			ragConfig(cfg),
			logger,
		)
	}

	return a, nil
}

func (a *app) Close() {
	if a.analytics != nil {
		a.analytics.Close()
	}
	a.pool.Close()
	_ = a.logger.Sync()
}

// requireRAG guards commands that need the embedding provider.
func (a *app) requireRAG() (*service.RAGService, error) {
	if a.rag == nil {
		return nil, fmt.Errorf("embedding provider not configured: RAGCORE_OPENAI_API_KEY required")
	}
	return a.rag, nil
}

func ragConfig(cfg *config.Config) service.RAGConfig {
	return service.RAGConfig{
		Chunking: service.ChunkConfig{
			MaxSize: cfg.MaxChunkSize,
			MinSize: cfg.MinChunkSize,
			Overlap: cfg.ChunkOverlap,
		},
		Ranker: service.RankerConfig{
			PriorityWeight:  cfg.PriorityWeight,
			DiversityWeight: cfg.DiversityWeight,
		},
		Assembler: service.AssemblerConfig{
			MaxContextTokens: cfg.MaxContextTokens,
			MaxContextChunks: cfg.MaxContextChunks,
		},
		MinContentLength:    cfg.MinContentLength,
		SimilarityThreshold: cfg.SimilarityThreshold,
		EmbedDelay:          cfg.EmbedDelay,
		ItemDelay:           cfg.ItemDelay,
		BotCacheTTL:         cfg.BotCacheTTL,
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
