package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/pagination"
	"github.com/voxloop/ragcore/internal/service"
)

const knowledgeItemColumns = `id, company_id, title, content, content_type, tags, active,
	embedding_status, embedding_error, created_at, updated_at, deleted_at`

// KnowledgeItemRepository persists knowledge items. Every read excludes
// soft-deleted rows; a deleted item is indistinguishable from one that
// never existed.
type KnowledgeItemRepository struct {
	db dbtx
}

func NewKnowledgeItemRepository(pool *pgxpool.Pool) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: pool}
}

func NewKnowledgeItemRepositoryWithTx(tx pgx.Tx) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: tx}
}

func (r *KnowledgeItemRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	if err := domain.ValidateKnowledgeItem(k); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items
			(id, company_id, title, content, content_type, tags, active, embedding_status, embedding_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		k.ID, k.CompanyID, k.Title, k.Content, string(k.ContentType), k.Tags, k.Active,
		string(k.EmbeddingStatus), nullableString(k.EmbeddingError), k.CreatedAt, k.UpdatedAt,
	)
	return err
}

func (r *KnowledgeItemRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+knowledgeItemColumns+`
		 FROM knowledge_items WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	item, err := scanKnowledgeItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *KnowledgeItemRepository) ListByCompany(ctx context.Context, companyID string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeItemColumns+`
		 FROM knowledge_items
		 WHERE company_id = $1 AND deleted_at IS NULL
		 ORDER BY updated_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeItemRows(rows)
}

// ListByCompanyWithCursor pages through a company's items in keyset order
// (updated_at, id descending). It fetches limit+1 rows to detect whether a
// further page exists.
func (r *KnowledgeItemRepository) ListByCompanyWithCursor(ctx context.Context, companyID string, cursor *pagination.Cursor, limit int) (*service.KnowledgeItemPage, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+knowledgeItemColumns+`
			 FROM knowledge_items
			 WHERE company_id = $1 AND deleted_at IS NULL AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			companyID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+knowledgeItemColumns+`
			 FROM knowledge_items
			 WHERE company_id = $1 AND deleted_at IS NULL
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			companyID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanKnowledgeItemRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.UpdatedAt)
	}

	return &service.KnowledgeItemPage{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListRequiringEmbedding returns active items whose embeddings are missing or
// stale, oldest first so reprocessing drains the backlog in order.
func (r *KnowledgeItemRepository) ListRequiringEmbedding(ctx context.Context, companyID string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeItemColumns+`
		 FROM knowledge_items
		 WHERE company_id = $1 AND active = TRUE AND deleted_at IS NULL
		   AND embedding_status IN ($2, $3)
		 ORDER BY updated_at ASC`,
		companyID, string(domain.EmbeddingStatusPending), string(domain.EmbeddingStatusError),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeItemRows(rows)
}

// ListPendingEmbedding returns items awaiting their first embedding pass
// across all companies, for the background worker.
func (r *KnowledgeItemRepository) ListPendingEmbedding(ctx context.Context, limit int) ([]*domain.KnowledgeItem, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeItemColumns+`
		 FROM knowledge_items
		 WHERE embedding_status = $1 AND active = TRUE AND deleted_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $2`,
		string(domain.EmbeddingStatusPending), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeItemRows(rows)
}

// Update rewrites the editable fields and resets the embedding status to
// pending, since edited content invalidates existing embeddings.
func (r *KnowledgeItemRepository) Update(ctx context.Context, k *domain.KnowledgeItem) error {
	k.UpdatedAt = time.Now().UTC()
	k.EmbeddingStatus = domain.EmbeddingStatusPending
	k.EmbeddingError = ""
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET title = $1, content = $2, content_type = $3, tags = $4, active = $5,
		     embedding_status = $6, embedding_error = NULL, updated_at = $7
		 WHERE id = $8 AND deleted_at IS NULL`,
		k.Title, k.Content, string(k.ContentType), k.Tags, k.Active,
		string(k.EmbeddingStatus), k.UpdatedAt, k.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeItemNotFound
	}
	return nil
}

func (r *KnowledgeItemRepository) SetEmbeddingStatus(ctx context.Context, id string, status domain.EmbeddingStatus, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items
		 SET embedding_status = $1, embedding_error = $2, updated_at = $3
		 WHERE id = $4 AND deleted_at IS NULL`,
		string(status), nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeItemNotFound
	}
	return nil
}

// SoftDelete marks the item deleted. Chunk cleanup belongs to the same
// transaction; see TxRunner.
func (r *KnowledgeItemRepository) SoftDelete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET deleted_at = $1, active = FALSE, updated_at = $1
		 WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeItemNotFound
	}
	return nil
}

func scanKnowledgeItem(row pgx.Row) (*domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	var contentType, status string
	var embeddingError pgtype.Text
	var deletedAt pgtype.Timestamptz
	err := row.Scan(&k.ID, &k.CompanyID, &k.Title, &k.Content, &contentType, &k.Tags, &k.Active,
		&status, &embeddingError, &k.CreatedAt, &k.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	k.ContentType = domain.ContentType(contentType)
	k.EmbeddingStatus = domain.EmbeddingStatus(status)
	if embeddingError.Valid {
		k.EmbeddingError = embeddingError.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		k.DeletedAt = &t
	}
	return &k, nil
}

func scanKnowledgeItemRows(rows pgx.Rows) ([]*domain.KnowledgeItem, error) {
	var results []*domain.KnowledgeItem
	for rows.Next() {
		item, err := scanKnowledgeItem(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}
