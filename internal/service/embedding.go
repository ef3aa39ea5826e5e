package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// EmbeddingProvider is the capability that turns text into a fixed-dimension
// vector. Implementations are pure from the caller's point of view; errors
// propagate unwrapped and retries are the orchestrator's responsibility.
type EmbeddingProvider interface {
	// Embed embeds document text during ingestion.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedQuery embeds query text. Same operation as Embed, kept distinct
	// because query text is never chunked and sits on the latency-sensitive
	// path (no ingestion pacing applies).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// CountTokens returns the token count for text, estimated when the
	// provider exposes no exact tokenizer.
	CountTokens(text string) int
	// Provider and Model identify the embedding space of produced vectors.
	Provider() string
	Model() string
	// Dimensions is the fixed vector length this provider produces.
	Dimensions() int
}

// embedPacer enforces the minimum spacing between consecutive ingestion
// embedding calls. This is a rate-limit contract with the upstream provider,
// not a correctness requirement; query-time embedding is never paced.
type embedPacer struct {
	limiter *rate.Limiter
}

func newEmbedPacer(minDelay time.Duration) *embedPacer {
	if minDelay <= 0 {
		return &embedPacer{}
	}
	return &embedPacer{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

func (p *embedPacer) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
