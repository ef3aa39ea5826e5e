package service

import (
	"context"
	"fmt"

	"github.com/voxloop/ragcore/internal/domain"
)

// SearchScope bounds a similarity search to one tenant. When BotID is set,
// the scope is "chunks visible to that bot": items assigned to the bot
// (candidates annotated with the assignment priority) plus the company-wide
// fallback. CompanyID is always required; the core never infers tenant
// identity.
type SearchScope struct {
	CompanyID string
	BotID     string
}

func (s SearchScope) Validate() error {
	if s.CompanyID == "" {
		return fmt.Errorf("search scope CompanyID is required")
	}
	return nil
}

// SimilaritySearcher returns candidate chunks above the similarity threshold,
// ordered by descending similarity. limit bounds the candidate superset
// handed to re-ranking, not the final result count. Implementations own
// tenant isolation: a scope must never leak another tenant's chunks.
type SimilaritySearcher interface {
	Search(ctx context.Context, scope SearchScope, queryVector []float32, threshold float64, limit int) ([]domain.SearchCandidate, error)
}

// verifyScope re-checks tenant isolation on candidates returned by the
// searcher. A violation is a fatal bug in the search backend, not a
// recoverable condition.
func verifyScope(scope SearchScope, candidates []domain.SearchCandidate) error {
	for _, c := range candidates {
		if c.CompanyID != scope.CompanyID {
			return domain.NewDomainErrorWithCause(
				domain.ErrCodeTenantIsolation,
				fmt.Sprintf("candidate chunk %s belongs to company %s, scope is %s", c.ChunkID, c.CompanyID, scope.CompanyID),
				domain.ErrTenantIsolation,
			)
		}
	}
	return nil
}
