//go:build integration

package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/testutil"
)

const embeddingDims = 1536

// unitVector returns a basis vector. Distinct axes are orthogonal, so their
// cosine similarity is exactly 0 and a vector's similarity with itself is 1.
func unitVector(axis int) []float32 {
	v := make([]float32, embeddingDims)
	v[axis%embeddingDims] = 1
	return v
}

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newChunk(itemID, companyID string, index int, content string, embedding []float32) *domain.KnowledgeChunk {
	return &domain.KnowledgeChunk{
		KnowledgeItemID: itemID,
		CompanyID:       companyID,
		ChunkIndex:      index,
		Content:         content,
		ContentHash:     hashOf(content),
		TokenCount:      (len(content) + 3) / 4,
		Embedding:       embedding,
		Provider:        "openai",
		Model:           "text-embedding-3-small",
	}
}

func TestKnowledgeChunkRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewKnowledgeItemRepository(pool)
	chunkRepo := NewKnowledgeChunkRepository(pool)

	item := seedItem(ctx, t, itemRepo, uuid.NewString(), "Refund Policy")
	chunk := newChunk(item.ID, item.CompanyID, 1, "Refunds take fourteen days.", unitVector(0))

	saved, err := chunkRepo.Save(ctx, chunk)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	found, err := chunkRepo.FindByHash(ctx, item.ID, chunk.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)
	assert.Equal(t, chunk.Content, found.Content)
	assert.Equal(t, chunk.TokenCount, found.TokenCount)
	assert.Equal(t, "openai", found.Provider)
	assert.Equal(t, "text-embedding-3-small", found.Model)
	assert.Len(t, found.Embedding, embeddingDims)
	assert.Equal(t, float32(1), found.Embedding[0])
}

func TestKnowledgeChunkRepository_FindByHash_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunkRepo := NewKnowledgeChunkRepository(pool)

	_, err := chunkRepo.FindByHash(ctx, uuid.NewString(), hashOf("nothing here"))
	assert.ErrorIs(t, err, domain.ErrChunkNotFound)
}

func TestKnowledgeChunkRepository_SaveUpsertsOnDuplicate(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewKnowledgeItemRepository(pool)
	chunkRepo := NewKnowledgeChunkRepository(pool)

	item := seedItem(ctx, t, itemRepo, uuid.NewString(), "Refund Policy")
	chunk := newChunk(item.ID, item.CompanyID, 1, "Refunds take fourteen days.", unitVector(0))

	first, err := chunkRepo.Save(ctx, chunk)
	require.NoError(t, err)

	// Same content re-ingested at a different position keeps the row and
	// the stored embedding, only the metadata moves.
	reingested := newChunk(item.ID, item.CompanyID, 3, "Refunds take fourteen days.", unitVector(5))
	second, err := chunkRepo.Save(ctx, reingested)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	chunks, err := chunkRepo.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 3, chunks[0].ChunkIndex)
	assert.Equal(t, float32(1), chunks[0].Embedding[0])
	assert.Equal(t, float32(0), chunks[0].Embedding[5])
}

func TestKnowledgeChunkRepository_ListByItemOrdered(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewKnowledgeItemRepository(pool)
	chunkRepo := NewKnowledgeChunkRepository(pool)

	item := seedItem(ctx, t, itemRepo, uuid.NewString(), "Refund Policy")

	for _, idx := range []int{3, 1, 2} {
		chunk := newChunk(item.ID, item.CompanyID, idx, "Section "+string(rune('0'+idx)), unitVector(idx))
		_, err := chunkRepo.Save(ctx, chunk)
		require.NoError(t, err)
	}

	chunks, err := chunkRepo.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 1, chunks[0].ChunkIndex)
	assert.Equal(t, 2, chunks[1].ChunkIndex)
	assert.Equal(t, 3, chunks[2].ChunkIndex)
}

func TestKnowledgeChunkRepository_DeleteByItem(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewKnowledgeItemRepository(pool)
	chunkRepo := NewKnowledgeChunkRepository(pool)

	item := seedItem(ctx, t, itemRepo, uuid.NewString(), "Refund Policy")
	other := seedItem(ctx, t, itemRepo, item.CompanyID, "Shipping Policy")

	for i := 1; i <= 2; i++ {
		_, err := chunkRepo.Save(ctx, newChunk(item.ID, item.CompanyID, i, "Refund section "+string(rune('0'+i)), unitVector(i)))
		require.NoError(t, err)
	}
	_, err := chunkRepo.Save(ctx, newChunk(other.ID, other.CompanyID, 1, "Shipping section", unitVector(9)))
	require.NoError(t, err)

	deleted, err := chunkRepo.DeleteByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := chunkRepo.ListByItem(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestKnowledgeChunkRepository_DeleteStale(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewKnowledgeItemRepository(pool)
	chunkRepo := NewKnowledgeChunkRepository(pool)

	item := seedItem(ctx, t, itemRepo, uuid.NewString(), "Refund Policy")

	kept := newChunk(item.ID, item.CompanyID, 1, "Kept section.", unitVector(1))
	stale := newChunk(item.ID, item.CompanyID, 2, "Stale section.", unitVector(2))
	_, err := chunkRepo.Save(ctx, kept)
	require.NoError(t, err)
	_, err = chunkRepo.Save(ctx, stale)
	require.NoError(t, err)

	deleted, err := chunkRepo.DeleteStale(ctx, item.ID, []string{kept.ContentHash})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	chunks, err := chunkRepo.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, kept.ContentHash, chunks[0].ContentHash)
}

func TestKnowledgeChunkRepository_DeleteStale_EmptyKeepSet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewKnowledgeItemRepository(pool)
	chunkRepo := NewKnowledgeChunkRepository(pool)

	item := seedItem(ctx, t, itemRepo, uuid.NewString(), "Refund Policy")
	_, err := chunkRepo.Save(ctx, newChunk(item.ID, item.CompanyID, 1, "Only section.", unitVector(1)))
	require.NoError(t, err)

	deleted, err := chunkRepo.DeleteStale(ctx, item.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	chunks, err := chunkRepo.ListByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
