package domain

import (
	"fmt"
	"time"
)

const (
	// AssignmentPriorityHighest is the most important assignment priority.
	AssignmentPriorityHighest = 1
	// AssignmentPriorityLowest is the least important assignment priority.
	AssignmentPriorityLowest = 5
)

// BotKnowledgeAssignment links a bot to a knowledge item with a ranking
// priority (1 = highest). Assignments affect ranking only, never ingestion.
type BotKnowledgeAssignment struct {
	ID              string
	BotID           string
	KnowledgeItemID string
	Priority        int
	Active          bool
	CreatedAt       time.Time
}

// ValidateAssignment validates a BotKnowledgeAssignment instance
func ValidateAssignment(a *BotKnowledgeAssignment) error {
	if a == nil {
		return fmt.Errorf("assignment cannot be nil")
	}

	if a.BotID == "" {
		return fmt.Errorf("assignment BotID is required")
	}

	if a.KnowledgeItemID == "" {
		return fmt.Errorf("assignment KnowledgeItemID is required")
	}

	if a.Priority < AssignmentPriorityHighest || a.Priority > AssignmentPriorityLowest {
		return fmt.Errorf("assignment Priority must be in [%d, %d], got %d",
			AssignmentPriorityHighest, AssignmentPriorityLowest, a.Priority)
	}

	return nil
}
