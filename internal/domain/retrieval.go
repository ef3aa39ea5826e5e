package domain

import "time"

// SearchCandidate is a chunk returned by similarity search for one query.
// Priority is nil when the search scope carries no bot assignment.
type SearchCandidate struct {
	ChunkID         string
	KnowledgeItemID string
	CompanyID       string
	Title           string
	ContentType     ContentType
	Tags            []string
	Content         string
	TokenCount      int
	Similarity      float64
	Priority        *int
}

// ContextSource describes one knowledge item used in an assembled context.
type ContextSource struct {
	KnowledgeItemID string
	Title           string
	ContentType     ContentType
	Similarity      float64
	Priority        *int
}

// RetrievalContext is the assembled, token-bounded context for one query.
// It is discarded after the retrieval response is returned.
type RetrievalContext struct {
	Text          string
	Sources       []ContextSource
	TokenCount    int
	ChunkCount    int
	AvgSimilarity float64
	ContentTypes  []string
	ItemIDs       []string
}

// AnalyticsRecord is an append-only log row for one retrieval query.
// QueryHash is a sha256 of the query embedding, not the raw query text.
type AnalyticsRecord struct {
	ID              string
	CompanyID       string
	BotID           string
	QueryHash       string
	ResultCount     int
	AvgSimilarity   float64
	MaxSimilarity   float64
	SearchDuration  time.Duration
	EmbedDuration   time.Duration
	CreatedAt       time.Time
}
