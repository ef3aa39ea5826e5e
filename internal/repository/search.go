package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/service"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// SimilaritySearchRepository runs pgvector cosine searches over knowledge
// chunks. Tenant isolation lives in the WHERE clause: the company filter is
// part of every query this repository can build, so no call path can return
// another company's chunks.
type SimilaritySearchRepository struct {
	pool *pgxpool.Pool
}

func NewSimilaritySearchRepository(pool *pgxpool.Pool) *SimilaritySearchRepository {
	return &SimilaritySearchRepository{pool: pool}
}

var _ service.SimilaritySearcher = (*SimilaritySearchRepository)(nil)

// Search returns chunks above the similarity threshold for the scope,
// ordered by descending cosine similarity. In a bot scope, chunks of items
// assigned to the bot carry the assignment priority; unassigned items of the
// same company are still visible, with a NULL priority.
func (r *SimilaritySearchRepository) Search(
	ctx context.Context,
	scope service.SearchScope,
	queryVector []float32,
	threshold float64,
	limit int,
) ([]domain.SearchCandidate, error) {
	if limit <= 0 {
		limit = 20
	}

	vec := pgvector.NewVector(queryVector)

	query := psql.Select(
		"c.id", "c.knowledge_item_id", "c.company_id",
		"k.title", "k.content_type", "k.tags",
		"c.content", "c.token_count",
	).
		Column(squirrel.Expr("1 - (c.embedding <=> ?) AS similarity", vec)).
		From("knowledge_chunks c").
		Join("knowledge_items k ON k.id = c.knowledge_item_id").
		Where(squirrel.Eq{"c.company_id": scope.CompanyID}).
		Where("k.active = TRUE").
		Where("k.deleted_at IS NULL").
		Where(squirrel.Expr("1 - (c.embedding <=> ?) >= ?", vec, threshold)).
		OrderBy("similarity DESC").
		Limit(uint64(limit))

	if scope.BotID != "" {
		query = query.
			Column("a.priority").
			LeftJoin(
				"bot_knowledge_assignments a ON a.knowledge_item_id = k.id AND a.bot_id = ? AND a.active = TRUE",
				scope.BotID,
			)
	} else {
		query = query.Column("NULL::int AS priority")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := make([]domain.SearchCandidate, 0, limit)
	for rows.Next() {
		var c domain.SearchCandidate
		var contentType string
		if err := rows.Scan(&c.ChunkID, &c.KnowledgeItemID, &c.CompanyID,
			&c.Title, &contentType, &c.Tags,
			&c.Content, &c.TokenCount, &c.Similarity, &c.Priority); err != nil {
			return nil, err
		}
		c.ContentType = domain.ContentType(contentType)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
