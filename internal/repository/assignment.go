package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxloop/ragcore/internal/domain"
)

var ErrBotNotFound = errors.New("bot not found")

// BotRepository resolves bot ownership. ragcore does not manage bot
// lifecycle; the bots table is written by the surrounding platform.
type BotRepository struct {
	pool *pgxpool.Pool
}

func NewBotRepository(pool *pgxpool.Pool) *BotRepository {
	return &BotRepository{pool: pool}
}

func (r *BotRepository) CompanyIDForBot(ctx context.Context, botID string) (string, error) {
	var companyID string
	err := r.pool.QueryRow(ctx,
		`SELECT company_id FROM bots WHERE id = $1 AND active = TRUE`,
		botID,
	).Scan(&companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrBotNotFound
		}
		return "", err
	}
	return companyID, nil
}

// AssignmentRepository manages bot-to-knowledge assignments. Assignments
// only influence ranking; a bot always sees all of its company's knowledge.
type AssignmentRepository struct {
	db dbtx
}

func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{db: pool}
}

// Assign creates or re-prioritizes an assignment. Re-assigning an existing
// (bot, item) pair updates the priority and reactivates it.
func (r *AssignmentRepository) Assign(ctx context.Context, a *domain.BotKnowledgeAssignment) error {
	if err := domain.ValidateAssignment(a); err != nil {
		return err
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO bot_knowledge_assignments (id, bot_id, knowledge_item_id, priority, active, created_at)
		 VALUES ($1, $2, $3, $4, TRUE, $5)
		 ON CONFLICT (bot_id, knowledge_item_id)
		 DO UPDATE SET priority = EXCLUDED.priority, active = TRUE`,
		a.ID, a.BotID, a.KnowledgeItemID, a.Priority, createdAt,
	)
	return err
}

func (r *AssignmentRepository) Unassign(ctx context.Context, botID, knowledgeItemID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE bot_knowledge_assignments SET active = FALSE
		 WHERE bot_id = $1 AND knowledge_item_id = $2`,
		botID, knowledgeItemID,
	)
	return err
}

func (r *AssignmentRepository) ListByBot(ctx context.Context, botID string) ([]*domain.BotKnowledgeAssignment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, bot_id, knowledge_item_id, priority, active, created_at
		 FROM bot_knowledge_assignments
		 WHERE bot_id = $1 AND active = TRUE
		 ORDER BY priority ASC, created_at ASC`,
		botID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.BotKnowledgeAssignment
	for rows.Next() {
		var a domain.BotKnowledgeAssignment
		if err := rows.Scan(&a.ID, &a.BotID, &a.KnowledgeItemID, &a.Priority, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &a)
	}
	return results, rows.Err()
}
