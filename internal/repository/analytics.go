package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxloop/ragcore/internal/domain"
)

// AnalyticsRepository appends retrieval analytics rows. Rows are immutable
// once written; aggregation happens in SQL, outside this module.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) Insert(ctx context.Context, rec *domain.AnalyticsRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO retrieval_analytics
			(company_id, bot_id, query_hash, result_count, avg_similarity, max_similarity, search_duration_ms, embed_duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.CompanyID,
		nullableString(rec.BotID),
		rec.QueryHash,
		rec.ResultCount,
		rec.AvgSimilarity,
		rec.MaxSimilarity,
		rec.SearchDuration.Milliseconds(),
		rec.EmbedDuration.Milliseconds(),
		rec.CreatedAt,
	)
	return err
}
