package domain

import (
	"fmt"
	"time"
)

// ContentType represents the kind of content a knowledge item holds
type ContentType string

const (
	ContentTypeFAQ      ContentType = "faq"
	ContentTypeDocument ContentType = "document"
	ContentTypePolicy   ContentType = "policy"
	ContentTypeProduct  ContentType = "product"
	ContentTypeArticle  ContentType = "article"
)

// EmbeddingStatus tracks embedding generation for a knowledge item
type EmbeddingStatus string

const (
	EmbeddingStatusPending    EmbeddingStatus = "pending"
	EmbeddingStatusProcessing EmbeddingStatus = "processing"
	EmbeddingStatusCompleted  EmbeddingStatus = "completed"
	EmbeddingStatusError      EmbeddingStatus = "error"
)

// KnowledgeItem represents a company-owned piece of knowledge content
type KnowledgeItem struct {
	ID              string
	CompanyID       string
	Title           string
	Content         string
	ContentType     ContentType
	Tags            []string
	Active          bool
	EmbeddingStatus EmbeddingStatus
	EmbeddingError  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// NewKnowledgeItem creates a new KnowledgeItem in the pending embedding state
func NewKnowledgeItem(
	id, companyID, title, content string,
	contentType ContentType,
	tags []string,
	createdAt time.Time,
) *KnowledgeItem {
	return &KnowledgeItem{
		ID:              id,
		CompanyID:       companyID,
		Title:           title,
		Content:         content,
		ContentType:     contentType,
		Tags:            tags,
		Active:          true,
		EmbeddingStatus: EmbeddingStatusPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("knowledge item ID is required")
	}

	if k.CompanyID == "" {
		return fmt.Errorf("knowledge item CompanyID is required")
	}

	if k.Title == "" {
		return fmt.Errorf("knowledge item Title is required")
	}

	if k.Content == "" {
		return fmt.Errorf("knowledge item Content is required")
	}

	if !isValidContentType(k.ContentType) {
		return fmt.Errorf("knowledge item ContentType is invalid: %s", k.ContentType)
	}

	if !isValidEmbeddingStatus(k.EmbeddingStatus) {
		return fmt.Errorf("knowledge item EmbeddingStatus is invalid: %s", k.EmbeddingStatus)
	}

	return nil
}

// CanTransitionTo reports whether the item's embedding status may move to next.
// The lifecycle is pending -> processing -> {completed | error}; completed and
// errored items may be re-queued for reprocessing.
func (k *KnowledgeItem) CanTransitionTo(next EmbeddingStatus) bool {
	switch k.EmbeddingStatus {
	case EmbeddingStatusPending:
		return next == EmbeddingStatusProcessing
	case EmbeddingStatusProcessing:
		return next == EmbeddingStatusCompleted || next == EmbeddingStatusError
	case EmbeddingStatusCompleted, EmbeddingStatusError:
		return next == EmbeddingStatusPending || next == EmbeddingStatusProcessing
	}
	return false
}

// isValidContentType checks if a ContentType is valid
func isValidContentType(t ContentType) bool {
	switch t {
	case ContentTypeFAQ, ContentTypeDocument, ContentTypePolicy,
		ContentTypeProduct, ContentTypeArticle:
		return true
	}
	return false
}

// isValidEmbeddingStatus checks if an EmbeddingStatus is valid
func isValidEmbeddingStatus(s EmbeddingStatus) bool {
	switch s {
	case EmbeddingStatusPending, EmbeddingStatusProcessing,
		EmbeddingStatusCompleted, EmbeddingStatusError:
		return true
	}
	return false
}
