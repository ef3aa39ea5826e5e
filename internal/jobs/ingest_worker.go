package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/service"
)

// DefaultBatchSize is how many pending items one poll cycle claims.
const DefaultBatchSize = 20

// PendingItemSource lists knowledge items awaiting embedding.
type PendingItemSource interface {
	ListPendingEmbedding(ctx context.Context, limit int) ([]*domain.KnowledgeItem, error)
}

// Ingestor runs the embedding pipeline for one knowledge item.
type Ingestor interface {
	Ingest(ctx context.Context, knowledgeItemID, companyID, text string) (*service.IngestResult, error)
}

// IngestWorker drains the pending-embedding backlog. Items that fail are
// moved to the error state by the ingestion pipeline itself and stay out of
// the pending queue until explicitly reprocessed, so one poisoned item
// cannot wedge the worker.
type IngestWorker struct {
	items     PendingItemSource
	ingestor  Ingestor
	batchSize int
	logger    *zap.Logger
}

func NewIngestWorker(items PendingItemSource, ingestor Ingestor, logger *zap.Logger) *IngestWorker {
	return &IngestWorker{
		items:     items,
		ingestor:  ingestor,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	items, err := w.items.ListPendingEmbedding(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	w.logger.Info("processing pending knowledge items", zap.Int("count", len(items)))

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := w.ingestor.Ingest(ctx, item.ID, item.CompanyID, item.Content)
		if err != nil {
			w.logger.Error("failed to ingest knowledge item",
				zap.String("knowledge_item_id", item.ID),
				zap.String("company_id", item.CompanyID),
				zap.Error(err),
			)
			continue
		}

		w.logger.Info("knowledge item embedded",
			zap.String("knowledge_item_id", item.ID),
			zap.Int("chunks", result.ChunkCount),
			zap.Int("cache_hits", result.CachedCount),
		)
	}

	return nil
}
