package service

import (
	"sort"

	"github.com/voxloop/ragcore/internal/domain"
)

const (
	// DefaultPriorityWeight scales the bonus a bot assignment priority adds
	// to the composite score.
	DefaultPriorityWeight = 0.4
	// DefaultDiversityWeight scales the penalty applied to candidates that
	// arrived later in the raw similarity ordering.
	DefaultDiversityWeight = 0.3
)

// RankerConfig holds the ranking policy weights. The defaults were tuned
// empirically; they are policy, not business rules, and callers may override
// them from configuration.
type RankerConfig struct {
	PriorityWeight  float64
	DiversityWeight float64
}

func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		PriorityWeight:  DefaultPriorityWeight,
		DiversityWeight: DefaultDiversityWeight,
	}
}

// RankedCandidate is a search candidate with its composite score.
type RankedCandidate struct {
	domain.SearchCandidate
	Score float64
}

// Ranker re-scores similarity search candidates and deduplicates them by
// source knowledge item.
type Ranker struct {
	cfg RankerConfig
}

func NewRanker(cfg RankerConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rank computes composite scores, sorts descending, and keeps only the
// highest-scoring chunk per knowledge item so one long document cannot
// monopolize the context window. Candidates must arrive in raw similarity
// order; their arrival index feeds the diversity penalty.
func (r *Ranker) Rank(candidates []domain.SearchCandidate) []RankedCandidate {
	if len(candidates) == 0 {
		return []RankedCandidate{}
	}

	scored := make([]RankedCandidate, 0, len(candidates))
	for i, c := range candidates {
		score := c.Similarity + r.priorityBonus(c.Priority) - r.diversityPenalty(i)
		scored = append(scored, RankedCandidate{SearchCandidate: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	seen := make(map[string]bool, len(scored))
	deduped := scored[:0]
	for _, c := range scored {
		if seen[c.KnowledgeItemID] {
			continue
		}
		seen[c.KnowledgeItemID] = true
		deduped = append(deduped, c)
	}

	return deduped
}

// priorityBonus maps priority 1..5 (1 = highest) onto a linear bonus:
// (6 - priority) * weight / 5. Candidates without an assignment get none.
func (r *Ranker) priorityBonus(priority *int) float64 {
	if priority == nil {
		return 0
	}
	return float64(6-*priority) * r.cfg.PriorityWeight / 5
}

func (r *Ranker) diversityPenalty(rankIndex int) float64 {
	return float64(rankIndex) * r.cfg.DiversityWeight * 0.1
}
