package domain

import (
	"fmt"
	"time"
)

// KnowledgeChunk represents an embedded segment of a knowledge item.
// ChunkIndex is 1-based and contiguous within an item; (KnowledgeItemID,
// ContentHash) is unique so identical content is never embedded twice.
type KnowledgeChunk struct {
	ID              string
	KnowledgeItemID string
	CompanyID       string
	ChunkIndex      int
	Content         string
	ContentHash     string
	TokenCount      int
	Embedding       []float32
	Provider        string
	Model           string
	CreatedAt       time.Time
}

// ValidateKnowledgeChunk validates a KnowledgeChunk instance
func ValidateKnowledgeChunk(c *KnowledgeChunk) error {
	if c == nil {
		return fmt.Errorf("knowledge chunk cannot be nil")
	}

	if c.KnowledgeItemID == "" {
		return fmt.Errorf("knowledge chunk KnowledgeItemID is required")
	}

	if c.CompanyID == "" {
		return fmt.Errorf("knowledge chunk CompanyID is required")
	}

	if c.ChunkIndex < 1 {
		return fmt.Errorf("knowledge chunk ChunkIndex must be >= 1, got %d", c.ChunkIndex)
	}

	if c.Content == "" {
		return fmt.Errorf("knowledge chunk Content is required")
	}

	if c.ContentHash == "" {
		return fmt.Errorf("knowledge chunk ContentHash is required")
	}

	if len(c.Embedding) == 0 {
		return fmt.Errorf("knowledge chunk Embedding is required")
	}

	return nil
}
