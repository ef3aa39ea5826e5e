package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxloop/ragcore/internal/domain"
)

// fixedCounter charges one token per rune, keeping budget arithmetic exact.
type fixedCounter struct{}

func (fixedCounter) CountTokens(text string) int { return len([]rune(text)) }

func rankedChunk(itemID, title string, contentType domain.ContentType, content string, similarity float64) RankedCandidate {
	return RankedCandidate{
		SearchCandidate: domain.SearchCandidate{
			ChunkID:         itemID + "-chunk",
			KnowledgeItemID: itemID,
			CompanyID:       "company-1",
			Title:           title,
			ContentType:     contentType,
			Content:         content,
			Similarity:      similarity,
		},
		Score: similarity,
	}
}

func TestAssembler_EmptyCandidates(t *testing.T) {
	assembler := NewAssembler(DefaultAssemblerConfig(), fixedCounter{})

	result := assembler.Assemble(nil)

	assert.Empty(t, result.Text)
	assert.Zero(t, result.TokenCount)
	assert.Zero(t, result.ChunkCount)
	assert.Zero(t, result.AvgSimilarity)
	assert.Empty(t, result.Sources)
}

func TestAssembler_HeaderFormat(t *testing.T) {
	assembler := NewAssembler(DefaultAssemblerConfig(), fixedCounter{})

	result := assembler.Assemble([]RankedCandidate{
		rankedChunk("item-1", "Refund Policy", domain.ContentTypeFAQ, "Refunds take 14 days.", 0.9),
	})

	assert.Equal(t, "[Refund Policy (FAQ)]\nRefunds take 14 days.\n", result.Text)
	assert.Equal(t, 1, result.ChunkCount)
	// 21 content tokens plus the 10-token header.
	assert.Equal(t, 31, result.TokenCount)
}

// With a 1800-token budget, a second 900-token chunk plus its header would
// push the total to 1820, so only the first chunk is included.
func TestAssembler_SecondChunkExceedsBudget(t *testing.T) {
	assembler := NewAssembler(AssemblerConfig{MaxContextTokens: 1800, MaxContextChunks: 5}, fixedCounter{})
	body := strings.Repeat("a", 900)

	result := assembler.Assemble([]RankedCandidate{
		rankedChunk("item-1", "First", domain.ContentTypeDocument, body, 0.95),
		rankedChunk("item-2", "Second", domain.ContentTypeDocument, body, 0.90),
	})

	require.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, 910, result.TokenCount)
	assert.Equal(t, "item-1", result.Sources[0].KnowledgeItemID)
}

func TestAssembler_BothChunksFitExactBudget(t *testing.T) {
	assembler := NewAssembler(AssemblerConfig{MaxContextTokens: 1820, MaxContextChunks: 5}, fixedCounter{})
	body := strings.Repeat("a", 900)

	result := assembler.Assemble([]RankedCandidate{
		rankedChunk("item-1", "First", domain.ContentTypeDocument, body, 0.95),
		rankedChunk("item-2", "Second", domain.ContentTypeDocument, body, 0.90),
	})

	assert.Equal(t, 2, result.ChunkCount)
	assert.Equal(t, 1820, result.TokenCount)
}

func TestAssembler_NoPartialInclusion(t *testing.T) {
	assembler := NewAssembler(AssemblerConfig{MaxContextTokens: 100, MaxContextChunks: 5}, fixedCounter{})

	result := assembler.Assemble([]RankedCandidate{
		rankedChunk("item-1", "Big", domain.ContentTypeDocument, strings.Repeat("a", 200), 0.95),
	})

	// The chunk does not fit, so nothing of it appears.
	assert.Zero(t, result.ChunkCount)
	assert.Empty(t, result.Text)
}

func TestAssembler_ChunkCountCap(t *testing.T) {
	assembler := NewAssembler(AssemblerConfig{MaxContextTokens: 100000, MaxContextChunks: 5}, fixedCounter{})

	var ranked []RankedCandidate
	for i := 0; i < 8; i++ {
		ranked = append(ranked, rankedChunk(
			fmt.Sprintf("item-%d", i), fmt.Sprintf("Title %d", i),
			domain.ContentTypeArticle, "some content", 0.9,
		))
	}

	result := assembler.Assemble(ranked)

	assert.Equal(t, 5, result.ChunkCount)
	assert.Len(t, result.Sources, 5)
}

func TestAssembler_Metadata(t *testing.T) {
	assembler := NewAssembler(DefaultAssemblerConfig(), fixedCounter{})

	result := assembler.Assemble([]RankedCandidate{
		rankedChunk("item-b", "Doc", domain.ContentTypeDocument, "doc text", 0.8),
		rankedChunk("item-a", "FAQ", domain.ContentTypeFAQ, "faq text", 0.6),
	})

	assert.InDelta(t, 0.7, result.AvgSimilarity, 1e-9)
	assert.Equal(t, []string{"document", "faq"}, result.ContentTypes)
	assert.Equal(t, []string{"item-a", "item-b"}, result.ItemIDs)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "Doc", result.Sources[0].Title)
	assert.Equal(t, "FAQ", result.Sources[1].Title)
}
