package service

import (
	"context"
	"fmt"
	"unicode"

	"go.uber.org/zap"
)

// Chunk is one bounded segment of normalized text. Index is 1-based and
// contiguous; offsets are rune positions into the input text.
type Chunk struct {
	Text        string
	Index       int
	StartOffset int
	EndOffset   int
}

// ChunkConfig controls chunking for knowledge embeddings.
type ChunkConfig struct {
	MaxSize int
	MinSize int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxSize: 1000,
		MinSize: 50,
		Overlap: 200,
	}
}

// Validate checks that the configuration can terminate and produce chunks
// within the size invariants.
func (cfg ChunkConfig) Validate() error {
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("chunk MaxSize must be positive, got %d", cfg.MaxSize)
	}
	if cfg.MinSize < 0 || cfg.MinSize > cfg.MaxSize {
		return fmt.Errorf("chunk MinSize must be in [0, MaxSize], got %d", cfg.MinSize)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxSize {
		return fmt.Errorf("chunk Overlap must be in [0, MaxSize), got %d", cfg.Overlap)
	}
	return nil
}

// Chunker splits normalized text into overlapping, size-bounded segments.
type Chunker interface {
	Chunk(ctx context.Context, text string, cfg ChunkConfig) ([]Chunk, error)
}

// LocalChunker is the in-process chunking implementation. It advances a
// window of MaxSize runes, backing off to the nearest preceding whitespace
// when the natural cut falls mid-word, provided the backoff loses no more
// than 30% of the window. The next window starts Overlap runes before the
// previous breakpoint; a trailing fragment shorter than MinSize is discarded.
type LocalChunker struct{}

func NewLocalChunker() *LocalChunker {
	return &LocalChunker{}
}

func (c *LocalChunker) Chunk(_ context.Context, text string, cfg ChunkConfig) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	if n <= cfg.MaxSize {
		return []Chunk{{Text: text, Index: 1, StartOffset: 0, EndOffset: n}}, nil
	}

	chunks := make([]Chunk, 0, n/cfg.MaxSize+1)
	start := 0
	index := 1
	for {
		end := start + cfg.MaxSize
		if end >= n {
			end = n
		} else if midWord(runes, end) {
			// Back off to a word boundary, but never below 70% of the window.
			floor := start + (cfg.MaxSize*7+9)/10
			for i := end; i > floor; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		chunks = append(chunks, Chunk{
			Text:        string(runes[start:end]),
			Index:       index,
			StartOffset: start,
			EndOffset:   end,
		})
		index++

		if end >= n || n-end < cfg.MinSize {
			break
		}
		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

func midWord(runes []rune, cut int) bool {
	return !unicode.IsSpace(runes[cut]) && !unicode.IsSpace(runes[cut-1])
}

// FallbackChunker tries a primary chunker (for example a store-side one) and
// falls back to a local equivalent when the primary is unavailable. Both
// produce chunks satisfying the same invariants, so callers cannot tell them
// apart. Using the fallback is not an error; it is logged and counted.
type FallbackChunker struct {
	primary  Chunker
	fallback Chunker
	logger   *zap.Logger
}

func NewFallbackChunker(primary, fallback Chunker, logger *zap.Logger) *FallbackChunker {
	return &FallbackChunker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FallbackChunker) Chunk(ctx context.Context, text string, cfg ChunkConfig) ([]Chunk, error) {
	chunks, err := c.primary.Chunk(ctx, text, cfg)
	if err == nil {
		return chunks, nil
	}

	c.logger.Warn("primary chunker failed, using local fallback",
		zap.Error(err),
	)
	return c.fallback.Chunk(ctx, text, cfg)
}
