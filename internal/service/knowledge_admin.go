package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/pagination"
)

// UUIDGenerator generates unique identifiers.
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator generates UUIDs using google/uuid.
type DefaultUUIDGenerator struct{}

func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

var _ UUIDGenerator = (*DefaultUUIDGenerator)(nil)

// KnowledgeItemPage is one page of a company's knowledge items.
type KnowledgeItemPage struct {
	Items      []*domain.KnowledgeItem
	NextCursor string
	HasMore    bool
}

// KnowledgeItemAdminRepository extends the orchestrator's read-side interface
// with item lifecycle writes.
type KnowledgeItemAdminRepository interface {
	KnowledgeItemRepository
	Create(ctx context.Context, k *domain.KnowledgeItem) error
	Update(ctx context.Context, k *domain.KnowledgeItem) error
	SoftDelete(ctx context.Context, id string) error
	ListByCompany(ctx context.Context, companyID string) ([]*domain.KnowledgeItem, error)
	ListByCompanyWithCursor(ctx context.Context, companyID string, cursor *pagination.Cursor, limit int) (*KnowledgeItemPage, error)
}

// AssignmentRepositoryInterface manages bot-to-knowledge assignments.
type AssignmentRepositoryInterface interface {
	Assign(ctx context.Context, a *domain.BotKnowledgeAssignment) error
	Unassign(ctx context.Context, botID, knowledgeItemID string) error
	ListByBot(ctx context.Context, botID string) ([]*domain.BotKnowledgeAssignment, error)
}

// KnowledgeAdminService manages the knowledge item lifecycle: create, edit,
// assign, delete. Embedding work is left to the background worker; items
// created or edited here sit in the pending state until it picks them up.
type KnowledgeAdminService struct {
	items       KnowledgeItemAdminRepository
	assignments AssignmentRepositoryInterface
	txRunner    TxRunner
	uuidGen     UUIDGenerator
	logger      *zap.Logger
}

func NewKnowledgeAdminService(
	items KnowledgeItemAdminRepository,
	assignments AssignmentRepositoryInterface,
	txRunner TxRunner,
	logger *zap.Logger,
) *KnowledgeAdminService {
	return &KnowledgeAdminService{
		items:       items,
		assignments: assignments,
		txRunner:    txRunner,
		uuidGen:     &DefaultUUIDGenerator{},
		logger:      logger,
	}
}

func NewKnowledgeAdminServiceWithUUIDGen(
	items KnowledgeItemAdminRepository,
	assignments AssignmentRepositoryInterface,
	txRunner TxRunner,
	uuidGen UUIDGenerator,
	logger *zap.Logger,
) *KnowledgeAdminService {
	return &KnowledgeAdminService{
		items:       items,
		assignments: assignments,
		txRunner:    txRunner,
		uuidGen:     uuidGen,
		logger:      logger,
	}
}

type CreateItemInput struct {
	CompanyID   string
	Title       string
	Content     string
	ContentType domain.ContentType
	Tags        []string
}

func (s *KnowledgeAdminService) CreateItem(ctx context.Context, input CreateItemInput) (*domain.KnowledgeItem, error) {
	item := domain.NewKnowledgeItem(
		s.uuidGen.NewString(),
		input.CompanyID,
		input.Title,
		input.Content,
		input.ContentType,
		input.Tags,
		time.Now().UTC(),
	)
	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create knowledge item: %w", err)
	}

	s.logger.Info("knowledge item created",
		zap.String("knowledge_item_id", item.ID),
		zap.String("company_id", item.CompanyID),
	)
	return item, nil
}

type UpdateItemInput struct {
	Title       string
	Content     string
	ContentType domain.ContentType
	Tags        []string
	Active      *bool
}

// UpdateItem rewrites an item's content and queues it for re-embedding.
// Stale chunks survive until the next ingestion run, which replaces them.
func (s *KnowledgeAdminService) UpdateItem(ctx context.Context, id, companyID string, input UpdateItemInput) (*domain.KnowledgeItem, error) {
	item, err := s.getOwned(ctx, id, companyID)
	if err != nil {
		return nil, err
	}

	if input.Title != "" {
		item.Title = input.Title
	}
	if input.Content != "" {
		item.Content = input.Content
	}
	if input.ContentType != "" {
		item.ContentType = input.ContentType
	}
	if input.Tags != nil {
		item.Tags = input.Tags
	}
	if input.Active != nil {
		item.Active = *input.Active
	}
	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return nil, err
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update knowledge item: %w", err)
	}
	return item, nil
}

// DeleteItem soft-deletes an item and removes its chunks in one transaction,
// so a concurrent search never sees chunks of a deleted item.
func (s *KnowledgeAdminService) DeleteItem(ctx context.Context, id, companyID string) error {
	if _, err := s.getOwned(ctx, id, companyID); err != nil {
		return err
	}

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Items().SoftDelete(ctx, id); err != nil {
			return err
		}
		_, err := repos.Chunks().DeleteByItem(ctx, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete knowledge item: %w", err)
	}

	s.logger.Info("knowledge item deleted",
		zap.String("knowledge_item_id", id),
		zap.String("company_id", companyID),
	)
	return nil
}

func (s *KnowledgeAdminService) ListItems(ctx context.Context, companyID string) ([]*domain.KnowledgeItem, error) {
	return s.items.ListByCompany(ctx, companyID)
}

// ListItemsPage lists a company's items with keyset pagination. cursor is
// the opaque value from a previous page, or empty for the first page.
func (s *KnowledgeAdminService) ListItemsPage(ctx context.Context, companyID, cursor string, limit int) (*KnowledgeItemPage, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	return s.items.ListByCompanyWithCursor(ctx, companyID, decoded, limit)
}

// AssignToBot links a knowledge item to a bot with a ranking priority.
// The item must belong to the caller's company.
func (s *KnowledgeAdminService) AssignToBot(ctx context.Context, botID, knowledgeItemID, companyID string, priority int) (*domain.BotKnowledgeAssignment, error) {
	if _, err := s.getOwned(ctx, knowledgeItemID, companyID); err != nil {
		return nil, err
	}

	assignment := &domain.BotKnowledgeAssignment{
		ID:              s.uuidGen.NewString(),
		BotID:           botID,
		KnowledgeItemID: knowledgeItemID,
		Priority:        priority,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.assignments.Assign(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to assign knowledge to bot: %w", err)
	}
	return assignment, nil
}

func (s *KnowledgeAdminService) UnassignFromBot(ctx context.Context, botID, knowledgeItemID string) error {
	return s.assignments.Unassign(ctx, botID, knowledgeItemID)
}

func (s *KnowledgeAdminService) getOwned(ctx context.Context, id, companyID string) (*domain.KnowledgeItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.CompanyID != companyID {
		// Do not reveal the item's existence to another tenant.
		return nil, domain.ErrKnowledgeItemNotFound
	}
	return item, nil
}
