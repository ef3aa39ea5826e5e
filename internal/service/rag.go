package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/voxloop/ragcore/internal/cache"
	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/telemetry"
)

const (
	candidateMultiplier = 4
	minCandidateLimit   = 20
	maxCandidateLimit   = 200

	// DefaultSimilarityThreshold excludes weakly related chunks.
	DefaultSimilarityThreshold = 0.7
	// DefaultMinContentLength is the shortest content accepted for ingestion.
	DefaultMinContentLength = 50
	// DefaultEmbedDelay spaces consecutive embedding calls in one ingestion job.
	DefaultEmbedDelay = 100 * time.Millisecond
	// DefaultItemDelay spaces items during bulk reprocessing.
	DefaultItemDelay = 500 * time.Millisecond
)

// KnowledgeItemRepository is the persistence interface for knowledge items
// consumed by the orchestrator.
type KnowledgeItemRepository interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	SetEmbeddingStatus(ctx context.Context, id string, status domain.EmbeddingStatus, errMsg string) error
	ListRequiringEmbedding(ctx context.Context, companyID string) ([]*domain.KnowledgeItem, error)
}

// ChunkStore persists chunk+vector records and answers dedup queries.
type ChunkStore interface {
	// FindByHash returns the chunk with the given content hash for an item,
	// or domain.ErrChunkNotFound.
	FindByHash(ctx context.Context, knowledgeItemID, contentHash string) (*domain.KnowledgeChunk, error)
	// Save persists a chunk. Saving the same (item, hash) twice upserts;
	// duplicates are forbidden by the store.
	Save(ctx context.Context, c *domain.KnowledgeChunk) (*domain.KnowledgeChunk, error)
	ListByItem(ctx context.Context, knowledgeItemID string) ([]*domain.KnowledgeChunk, error)
	DeleteByItem(ctx context.Context, knowledgeItemID string) (int64, error)
	// DeleteStale removes an item's chunks whose hash is not in keepHashes.
	// Used when edited content is re-ingested.
	DeleteStale(ctx context.Context, knowledgeItemID string, keepHashes []string) (int64, error)
}

// BotDirectory resolves which company owns a bot. Lookups are cached with a
// TTL inside the orchestrator; InvalidateBot drops a cached entry early.
type BotDirectory interface {
	CompanyIDForBot(ctx context.Context, botID string) (string, error)
}

// RAGConfig bundles the orchestrator policy. Zero values fall back to the
// documented defaults.
type RAGConfig struct {
	Chunking            ChunkConfig
	Ranker              RankerConfig
	Assembler           AssemblerConfig
	MinContentLength    int
	SimilarityThreshold float64
	EmbedDelay          time.Duration
	ItemDelay           time.Duration
	BotCacheTTL         time.Duration
}

func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		Chunking:            DefaultChunkConfig(),
		Ranker:              DefaultRankerConfig(),
		Assembler:           DefaultAssemblerConfig(),
		MinContentLength:    DefaultMinContentLength,
		SimilarityThreshold: DefaultSimilarityThreshold,
		EmbedDelay:          DefaultEmbedDelay,
		ItemDelay:           DefaultItemDelay,
		BotCacheTTL:         time.Minute,
	}
}

// RAGService composes normalization, chunking, embedding, search, ranking,
// and assembly into the two public flows: ingest and retrieve.
type RAGService struct {
	items     KnowledgeItemRepository
	chunks    ChunkStore
	searcher  SimilaritySearcher
	bots      BotDirectory
	provider  EmbeddingProvider
	chunker   Chunker
	ranker    *Ranker
	assembler *Assembler
	analytics AnalyticsRecorder
	botCache  *cache.TTL[string, string]
	pacer     *embedPacer
	cfg       RAGConfig
	logger    *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRAGService(
	items KnowledgeItemRepository,
	chunks ChunkStore,
	searcher SimilaritySearcher,
	bots BotDirectory,
	provider EmbeddingProvider,
	chunker Chunker,
	analytics AnalyticsRecorder,
	cfg RAGConfig,
	logger *zap.Logger,
) *RAGService {
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = DefaultMinContentLength
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Chunking.MaxSize <= 0 {
		cfg.Chunking = DefaultChunkConfig()
	}
	if analytics == nil {
		analytics = NopAnalyticsRecorder{}
	}
	return &RAGService{
		items:     items,
		chunks:    chunks,
		searcher:  searcher,
		bots:      bots,
		provider:  provider,
		chunker:   chunker,
		ranker:    NewRanker(cfg.Ranker),
		assembler: NewAssembler(cfg.Assembler, provider),
		analytics: analytics,
		botCache:  cache.NewTTL[string, string](cfg.BotCacheTTL),
		pacer:     newEmbedPacer(cfg.EmbedDelay),
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// IngestResult reports the outcome of ingesting one knowledge item.
type IngestResult struct {
	ChunkCount    int
	EmbeddedCount int
	CachedCount   int
	Status        domain.EmbeddingStatus
}

// Ingest normalizes, chunks, embeds, and stores the given text for a
// knowledge item. Ingesting identical content twice is a no-op on the
// provider: every unchanged chunk is a dedup cache hit. A failure leaves the
// item in the error state with the message retained; chunks already saved
// stay valid so a retry skips completed work.
func (s *RAGService) Ingest(ctx context.Context, knowledgeItemID, companyID, text string) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.Ingest", telemetry.SpanAttributes{
		CompanyID:       companyID,
		KnowledgeItemID: knowledgeItemID,
		Operation:       "ingest",
	})
	defer span.End()

	item, err := s.items.GetByID(ctx, knowledgeItemID)
	if err != nil {
		return nil, err
	}
	if item.CompanyID != companyID {
		// Do not reveal the item's existence to another tenant.
		return nil, domain.ErrKnowledgeItemNotFound
	}

	if text == "" {
		text = item.Content
	}

	normalized := NormalizeText(text)
	if len(normalized) < s.cfg.MinContentLength {
		return nil, fmt.Errorf("%w: %d characters after normalization, minimum is %d",
			domain.ErrContentTooShort, len(normalized), s.cfg.MinContentLength)
	}

	if err := s.items.SetEmbeddingStatus(ctx, knowledgeItemID, domain.EmbeddingStatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("failed to mark item processing: %w", err)
	}

	result, err := s.ingestChunks(ctx, item, normalized)
	if err != nil {
		span.SetError(err)
		if statusErr := s.items.SetEmbeddingStatus(ctx, knowledgeItemID, domain.EmbeddingStatusError, err.Error()); statusErr != nil {
			s.logger.Error("failed to record ingestion error status",
				zap.String("knowledge_item_id", knowledgeItemID),
				zap.Error(statusErr),
			)
		}
		return nil, err
	}

	if err := s.items.SetEmbeddingStatus(ctx, knowledgeItemID, domain.EmbeddingStatusCompleted, ""); err != nil {
		return nil, fmt.Errorf("failed to mark item completed: %w", err)
	}
	result.Status = domain.EmbeddingStatusCompleted

	s.logger.Info("knowledge item ingested",
		zap.String("knowledge_item_id", knowledgeItemID),
		zap.String("company_id", companyID),
		zap.Int("chunks", result.ChunkCount),
		zap.Int("embedded", result.EmbeddedCount),
		zap.Int("cache_hits", result.CachedCount),
	)
	return result, nil
}

func (s *RAGService) ingestChunks(ctx context.Context, item *domain.KnowledgeItem, normalized string) (*IngestResult, error) {
	chunks, err := s.chunker.Chunk(ctx, normalized, s.cfg.Chunking)
	if err != nil {
		return nil, fmt.Errorf("chunking failed: %w", err)
	}

	result := &IngestResult{ChunkCount: len(chunks)}
	keepHashes := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		hash := ContentHash(chunk.Text)
		keepHashes = append(keepHashes, hash)

		existing, err := s.chunks.FindByHash(ctx, item.ID, hash)
		if err == nil && existing != nil {
			// A surviving chunk may sit at a new position after an edit.
			// Re-save it with the stored embedding so the 1-based index
			// sequence stays contiguous; the store's upsert refreshes the
			// index and metadata without touching the provider.
			if existing.ChunkIndex != chunk.Index ||
				existing.Provider != s.provider.Provider() ||
				existing.Model != s.provider.Model() {
				existing.ChunkIndex = chunk.Index
				existing.TokenCount = s.provider.CountTokens(chunk.Text)
				existing.Provider = s.provider.Provider()
				existing.Model = s.provider.Model()
				if _, err := s.chunks.Save(ctx, existing); err != nil {
					return nil, fmt.Errorf("failed to refresh chunk %d: %w", chunk.Index, err)
				}
			}
			result.CachedCount++
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrChunkNotFound) {
			return nil, fmt.Errorf("dedup lookup failed: %w", err)
		}

		// Rate-limit contract with the provider; applies only to ingestion.
		if err := s.pacer.wait(ctx); err != nil {
			return nil, err
		}

		embedding, err := s.provider.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider,
				fmt.Sprintf("failed to embed chunk %d", chunk.Index), err)
		}

		// The per-chunk save is atomic: either a fully-embedded chunk is
		// stored or nothing is.
		if _, err := s.chunks.Save(ctx, &domain.KnowledgeChunk{
			KnowledgeItemID: item.ID,
			CompanyID:       item.CompanyID,
			ChunkIndex:      chunk.Index,
			Content:         chunk.Text,
			ContentHash:     hash,
			TokenCount:      s.provider.CountTokens(chunk.Text),
			Embedding:       embedding,
			Provider:        s.provider.Provider(),
			Model:           s.provider.Model(),
		}); err != nil {
			return nil, fmt.Errorf("failed to save chunk %d: %w", chunk.Index, err)
		}
		result.EmbeddedCount++
	}

	// Edited content replaces the chunk set: drop hashes no longer present.
	if _, err := s.chunks.DeleteStale(ctx, item.ID, keepHashes); err != nil {
		return nil, fmt.Errorf("failed to delete stale chunks: %w", err)
	}

	return result, nil
}

// RetrieveOptions override the retrieval policy per call. A nil threshold
// and a zero MaxResults use the service defaults; an explicit zero threshold
// disables similarity filtering for the call.
type RetrieveOptions struct {
	SimilarityThreshold *float64
	MaxResults          int
}

// RetrievalResult is the assembled context plus per-call timings.
type RetrievalResult struct {
	*domain.RetrievalContext
	CandidateCount int
	EmbedDuration  time.Duration
	SearchDuration time.Duration
}

// RetrieveForBot retrieves a ranked, token-bounded context for a bot's query.
// The bot's own assignments are annotated with priority; company-wide
// knowledge serves as fallback.
func (s *RAGService) RetrieveForBot(ctx context.Context, botID, query string, opts RetrieveOptions) (*RetrievalResult, error) {
	companyID, err := s.companyForBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "RAGService.RetrieveForBot", telemetry.SpanAttributes{
		CompanyID: companyID,
		BotID:     botID,
		Operation: "retrieve",
	})
	defer span.End()

	return s.retrieve(ctx, SearchScope{CompanyID: companyID, BotID: botID}, query, opts)
}

// RetrieveForCompany retrieves context across all of a company's knowledge,
// with no assignment priorities.
func (s *RAGService) RetrieveForCompany(ctx context.Context, companyID, query string, opts RetrieveOptions) (*RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.RetrieveForCompany", telemetry.SpanAttributes{
		CompanyID: companyID,
		Operation: "retrieve",
	})
	defer span.End()

	return s.retrieve(ctx, SearchScope{CompanyID: companyID}, query, opts)
}

func (s *RAGService) retrieve(ctx context.Context, scope SearchScope, query string, opts RetrieveOptions) (*RetrievalResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	threshold := s.cfg.SimilarityThreshold
	if opts.SimilarityThreshold != nil {
		threshold = *opts.SimilarityThreshold
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.assembler.cfg.MaxContextChunks
	}

	embedStart := time.Now()
	queryVector, err := s.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "failed to embed query", err)
	}
	embedDuration := time.Since(embedStart)

	searchStart := time.Now()
	candidates, err := s.searcher.Search(ctx, scope, queryVector, threshold, candidateLimit(maxResults))
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	searchDuration := time.Since(searchStart)

	if err := verifyScope(scope, candidates); err != nil {
		return nil, err
	}

	ranked := s.ranker.Rank(candidates)
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	assembled := s.assembler.Assemble(ranked)

	s.recordAnalytics(scope, queryVector, candidates, assembled, searchDuration, embedDuration)

	return &RetrievalResult{
		RetrievalContext: assembled,
		CandidateCount:   len(candidates),
		EmbedDuration:    embedDuration,
		SearchDuration:   searchDuration,
	}, nil
}

func (s *RAGService) recordAnalytics(
	scope SearchScope,
	queryVector []float32,
	candidates []domain.SearchCandidate,
	assembled *domain.RetrievalContext,
	searchDuration, embedDuration time.Duration,
) {
	var maxSim float64
	for _, c := range candidates {
		if c.Similarity > maxSim {
			maxSim = c.Similarity
		}
	}

	s.analytics.Record(&domain.AnalyticsRecord{
		CompanyID:      scope.CompanyID,
		BotID:          scope.BotID,
		QueryHash:      embeddingHash(queryVector),
		ResultCount:    assembled.ChunkCount,
		AvgSimilarity:  assembled.AvgSimilarity,
		MaxSimilarity:  maxSim,
		SearchDuration: searchDuration,
		EmbedDuration:  embedDuration,
		CreatedAt:      time.Now().UTC(),
	})
}

// ReprocessItemResult reports one item's outcome during bulk reprocessing.
type ReprocessItemResult struct {
	KnowledgeItemID string
	Title           string
	ChunkCount      int
	Error           string
}

// ReprocessReport summarizes a bulk reprocessing run.
type ReprocessReport struct {
	Items     []ReprocessItemResult
	Succeeded int
	Failed    int
}

// Reprocess re-ingests every knowledge item of a company that is missing
// embeddings. Items are processed one at a time with an inter-item delay;
// one item's failure never aborts the batch.
func (s *RAGService) Reprocess(ctx context.Context, companyID string) (*ReprocessReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "RAGService.Reprocess", telemetry.SpanAttributes{
		CompanyID: companyID,
		Operation: "reprocess",
	})
	defer span.End()

	items, err := s.items.ListRequiringEmbedding(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items requiring embedding: %w", err)
	}

	report := &ReprocessReport{Items: make([]ReprocessItemResult, 0, len(items))}
	for i, item := range items {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.ItemDelay); err != nil {
				return report, err
			}
		}

		entry := ReprocessItemResult{KnowledgeItemID: item.ID, Title: item.Title}
		result, err := s.Ingest(ctx, item.ID, companyID, item.Content)
		if err != nil {
			entry.Error = err.Error()
			report.Failed++
			s.logger.Warn("reprocess: item failed",
				zap.String("knowledge_item_id", item.ID),
				zap.Error(err),
			)
		} else {
			entry.ChunkCount = result.ChunkCount
			report.Succeeded++
		}
		report.Items = append(report.Items, entry)
	}

	return report, nil
}

// DeleteItem removes an item's chunks. Called when a knowledge item is
// soft-deleted; the item row itself is the owning repository's concern.
func (s *RAGService) DeleteItem(ctx context.Context, knowledgeItemID, companyID string) (int64, error) {
	item, err := s.items.GetByID(ctx, knowledgeItemID)
	if err != nil {
		return 0, err
	}
	if item.CompanyID != companyID {
		return 0, domain.ErrKnowledgeItemNotFound
	}
	return s.chunks.DeleteByItem(ctx, knowledgeItemID)
}

// InvalidateBot drops the cached bot-to-company resolution for a bot, for
// callers that reassign bots between companies.
func (s *RAGService) InvalidateBot(botID string) {
	s.botCache.Invalidate(botID)
}

func (s *RAGService) companyForBot(ctx context.Context, botID string) (string, error) {
	if botID == "" {
		return "", fmt.Errorf("bot ID is required")
	}
	if companyID, ok := s.botCache.Get(botID); ok {
		return companyID, nil
	}
	companyID, err := s.bots.CompanyIDForBot(ctx, botID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve bot company: %w", err)
	}
	s.botCache.Set(botID, companyID)
	return companyID, nil
}

func candidateLimit(maxResults int) int {
	limit := maxResults * candidateMultiplier
	if limit < minCandidateLimit {
		limit = minCandidateLimit
	}
	if limit > maxCandidateLimit {
		limit = maxCandidateLimit
	}
	return limit
}

// embeddingHash is the analytics query key: a sha256 over the query
// embedding rather than the raw query text, for dedup without retaining
// user content.
func embeddingHash(vec []float32) string {
	h := sha256.New()
	buf := make([]byte, 4)
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
