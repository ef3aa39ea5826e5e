package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voxloop/ragcore/internal/domain"
)

const (
	// DefaultMaxContextTokens bounds the assembled context size.
	DefaultMaxContextTokens = 2000
	// DefaultMaxContextChunks caps how many chunks one query may use.
	DefaultMaxContextChunks = 5
	// headerTokens approximates the cost of the "[Title (TYPE)]" attribution
	// line prepended to each chunk.
	headerTokens = 10
)

// AssemblerConfig holds the context packing policy.
type AssemblerConfig struct {
	MaxContextTokens int
	MaxContextChunks int
}

func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		MaxContextTokens: DefaultMaxContextTokens,
		MaxContextChunks: DefaultMaxContextChunks,
	}
}

// TokenCounter counts (or estimates) tokens for budget accounting.
type TokenCounter interface {
	CountTokens(text string) int
}

// Assembler packs ranked candidates into a token-bounded context string with
// source attribution.
type Assembler struct {
	cfg     AssemblerConfig
	counter TokenCounter
}

func NewAssembler(cfg AssemblerConfig, counter TokenCounter) *Assembler {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultMaxContextTokens
	}
	if cfg.MaxContextChunks <= 0 {
		cfg.MaxContextChunks = DefaultMaxContextChunks
	}
	return &Assembler{cfg: cfg, counter: counter}
}

// Assemble iterates ranked candidates in order and appends each one whose
// token cost (chunk text plus attribution header) still fits the budget.
// A chunk is never partially included; the first one that does not fit stops
// assembly. An empty candidate list yields an empty context, not an error.
func (a *Assembler) Assemble(ranked []RankedCandidate) *domain.RetrievalContext {
	result := &domain.RetrievalContext{
		Sources:      []domain.ContextSource{},
		ContentTypes: []string{},
		ItemIDs:      []string{},
	}

	var buf strings.Builder
	var similaritySum float64
	types := make(map[string]bool)
	items := make(map[string]bool)

	for _, c := range ranked {
		if len(result.Sources) >= a.cfg.MaxContextChunks {
			break
		}

		cost := a.counter.CountTokens(c.Content) + headerTokens
		if result.TokenCount+cost > a.cfg.MaxContextTokens {
			break
		}

		fmt.Fprintf(&buf, "[%s (%s)]\n%s\n", c.Title, strings.ToUpper(string(c.ContentType)), c.Content)
		result.TokenCount += cost
		result.Sources = append(result.Sources, domain.ContextSource{
			KnowledgeItemID: c.KnowledgeItemID,
			Title:           c.Title,
			ContentType:     c.ContentType,
			Similarity:      c.Similarity,
			Priority:        c.Priority,
		})
		similaritySum += c.Similarity
		types[string(c.ContentType)] = true
		items[c.KnowledgeItemID] = true
	}

	result.Text = buf.String()
	result.ChunkCount = len(result.Sources)
	if result.ChunkCount > 0 {
		result.AvgSimilarity = similaritySum / float64(result.ChunkCount)
	}
	for t := range types {
		result.ContentTypes = append(result.ContentTypes, t)
	}
	for id := range items {
		result.ItemIDs = append(result.ItemIDs, id)
	}
	sort.Strings(result.ContentTypes)
	sort.Strings(result.ItemIDs)

	return result
}
