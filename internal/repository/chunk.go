package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/voxloop/ragcore/internal/domain"
)

// KnowledgeChunkRepository persists chunked knowledge embeddings. The
// (knowledge_item_id, content_hash) pair is unique; Save upserts on it so
// re-ingesting identical content never duplicates a chunk.
type KnowledgeChunkRepository struct {
	db dbtx
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: pool}
}

func NewKnowledgeChunkRepositoryWithTx(tx pgx.Tx) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: tx}
}

func (r *KnowledgeChunkRepository) FindByHash(ctx context.Context, knowledgeItemID, contentHash string) (*domain.KnowledgeChunk, error) {
	var c domain.KnowledgeChunk
	var embedding pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, knowledge_item_id, company_id, chunk_index, content, content_hash,
		        token_count, embedding, provider, model, created_at
		 FROM knowledge_chunks
		 WHERE knowledge_item_id = $1 AND content_hash = $2`,
		knowledgeItemID, contentHash,
	).Scan(&c.ID, &c.KnowledgeItemID, &c.CompanyID, &c.ChunkIndex, &c.Content, &c.ContentHash,
		&c.TokenCount, &embedding, &c.Provider, &c.Model, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	c.Embedding = embedding.Slice()
	return &c, nil
}

// Save inserts a chunk, or refreshes its index and metadata when the same
// content already exists for the item. The stored embedding is kept on
// conflict; identical content in the same model yields the same vector.
func (r *KnowledgeChunkRepository) Save(ctx context.Context, c *domain.KnowledgeChunk) (*domain.KnowledgeChunk, error) {
	if err := domain.ValidateKnowledgeChunk(c); err != nil {
		return nil, err
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	saved := *c
	err := r.db.QueryRow(ctx,
		`INSERT INTO knowledge_chunks
			(knowledge_item_id, company_id, chunk_index, content, content_hash, token_count, embedding, provider, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (knowledge_item_id, content_hash)
		 DO UPDATE SET chunk_index = EXCLUDED.chunk_index,
		               token_count = EXCLUDED.token_count,
		               provider = EXCLUDED.provider,
		               model = EXCLUDED.model
		 RETURNING id, created_at`,
		c.KnowledgeItemID, c.CompanyID, c.ChunkIndex, c.Content, c.ContentHash,
		c.TokenCount, pgvector.NewVector(c.Embedding), c.Provider, c.Model, createdAt,
	).Scan(&saved.ID, &saved.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *KnowledgeChunkRepository) ListByItem(ctx context.Context, knowledgeItemID string) ([]*domain.KnowledgeChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, knowledge_item_id, company_id, chunk_index, content, content_hash,
		        token_count, embedding, provider, model, created_at
		 FROM knowledge_chunks
		 WHERE knowledge_item_id = $1
		 ORDER BY chunk_index ASC`,
		knowledgeItemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.KnowledgeChunk
	for rows.Next() {
		var c domain.KnowledgeChunk
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.KnowledgeItemID, &c.CompanyID, &c.ChunkIndex, &c.Content, &c.ContentHash,
			&c.TokenCount, &embedding, &c.Provider, &c.Model, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		results = append(results, &c)
	}
	return results, rows.Err()
}

func (r *KnowledgeChunkRepository) DeleteByItem(ctx context.Context, knowledgeItemID string) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE knowledge_item_id = $1`,
		knowledgeItemID,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// DeleteStale removes an item's chunks whose content hash is not in
// keepHashes. An empty keep set deletes everything the item has.
func (r *KnowledgeChunkRepository) DeleteStale(ctx context.Context, knowledgeItemID string, keepHashes []string) (int64, error) {
	if len(keepHashes) == 0 {
		return r.DeleteByItem(ctx, knowledgeItemID)
	}
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_chunks
		 WHERE knowledge_item_id = $1 AND content_hash != ALL($2)`,
		knowledgeItemID, keepHashes,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
