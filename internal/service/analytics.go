package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/ragcore/internal/domain"
)

// AnalyticsRepository persists retrieval analytics rows.
type AnalyticsRepository interface {
	Insert(ctx context.Context, rec *domain.AnalyticsRecord) error
}

// AnalyticsRecorder records per-query retrieval metrics. Recording is
// best-effort: it never blocks the retrieval path and never surfaces an
// error to the caller.
type AnalyticsRecorder interface {
	Record(rec *domain.AnalyticsRecord)
}

const defaultAnalyticsQueueSize = 256

// AsyncAnalyticsRecorder writes analytics records through a bounded queue
// drained by a single worker goroutine. When the queue is full the record is
// dropped and the drop logged; retrieval correctness never depends on
// analytics succeeding.
type AsyncAnalyticsRecorder struct {
	repo    AnalyticsRepository
	logger  *zap.Logger
	queue   chan *domain.AnalyticsRecord
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewAsyncAnalyticsRecorder(repo AnalyticsRepository, logger *zap.Logger) *AsyncAnalyticsRecorder {
	r := &AsyncAnalyticsRecorder{
		repo:    repo,
		logger:  logger,
		queue:   make(chan *domain.AnalyticsRecord, defaultAnalyticsQueueSize),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record submits a record for asynchronous persistence. It never blocks and
// never returns an error.
func (r *AsyncAnalyticsRecorder) Record(rec *domain.AnalyticsRecord) {
	if rec == nil {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("analytics queue full, dropping record",
			zap.String("company_id", rec.CompanyID),
			zap.String("query_hash", rec.QueryHash),
		)
	}
}

// Close stops the worker after draining queued records.
func (r *AsyncAnalyticsRecorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *AsyncAnalyticsRecorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.repo.Insert(ctx, rec); err != nil {
			r.logger.Warn("failed to persist analytics record",
				zap.String("company_id", rec.CompanyID),
				zap.String("query_hash", rec.QueryHash),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// NopAnalyticsRecorder discards all records. Used when analytics is disabled.
type NopAnalyticsRecorder struct{}

func (NopAnalyticsRecorder) Record(*domain.AnalyticsRecord) {}
