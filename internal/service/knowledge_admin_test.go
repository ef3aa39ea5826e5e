package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxloop/ragcore/internal/domain"
	"github.com/voxloop/ragcore/internal/pagination"
)

type MockKnowledgeItemAdminRepository struct {
	mock.Mock
}

func (m *MockKnowledgeItemAdminRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeItemAdminRepository) SetEmbeddingStatus(ctx context.Context, id string, status domain.EmbeddingStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

func (m *MockKnowledgeItemAdminRepository) ListRequiringEmbedding(ctx context.Context, companyID string) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeItemAdminRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	args := m.Called(ctx, k)
	return args.Error(0)
}

func (m *MockKnowledgeItemAdminRepository) Update(ctx context.Context, k *domain.KnowledgeItem) error {
	args := m.Called(ctx, k)
	return args.Error(0)
}

func (m *MockKnowledgeItemAdminRepository) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockKnowledgeItemAdminRepository) ListByCompany(ctx context.Context, companyID string) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeItemAdminRepository) ListByCompanyWithCursor(ctx context.Context, companyID string, cursor *pagination.Cursor, limit int) (*KnowledgeItemPage, error) {
	args := m.Called(ctx, companyID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*KnowledgeItemPage), args.Error(1)
}

type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) Assign(ctx context.Context, a *domain.BotKnowledgeAssignment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAssignmentRepository) Unassign(ctx context.Context, botID, knowledgeItemID string) error {
	args := m.Called(ctx, botID, knowledgeItemID)
	return args.Error(0)
}

func (m *MockAssignmentRepository) ListByBot(ctx context.Context, botID string) ([]*domain.BotKnowledgeAssignment, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.BotKnowledgeAssignment), args.Error(1)
}

type stubUUIDGenerator struct {
	id string
}

func (g *stubUUIDGenerator) NewString() string { return g.id }

// stubTxRepos hands the same mocks to the transactional callback that the
// service uses outside of it, so tests can assert on a single set of mocks.
type stubTxRepos struct {
	items  *MockKnowledgeItemAdminRepository
	chunks *MockChunkStore
}

func (r *stubTxRepos) Items() KnowledgeItemAdminRepository { return r.items }
func (r *stubTxRepos) Chunks() ChunkStore                  { return r.chunks }

type stubTxRunner struct {
	repos  *stubTxRepos
	called bool
}

func (t *stubTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}

type adminFixture struct {
	svc      *KnowledgeAdminService
	items    *MockKnowledgeItemAdminRepository
	assigns  *MockAssignmentRepository
	chunks   *MockChunkStore
	txRunner *stubTxRunner
}

func newAdminFixture(t *testing.T, id string) *adminFixture {
	t.Helper()

	items := new(MockKnowledgeItemAdminRepository)
	assigns := new(MockAssignmentRepository)
	chunks := new(MockChunkStore)
	txRunner := &stubTxRunner{repos: &stubTxRepos{items: items, chunks: chunks}}

	svc := NewKnowledgeAdminServiceWithUUIDGen(
		items, assigns, txRunner, &stubUUIDGenerator{id: id}, zap.NewNop(),
	)
	return &adminFixture{svc: svc, items: items, assigns: assigns, chunks: chunks, txRunner: txRunner}
}

func ownedItem(id, companyID string) *domain.KnowledgeItem {
	return domain.NewKnowledgeItem(
		id, companyID, "Refund Policy",
		"Refunds are processed within fourteen days of the request.",
		domain.ContentTypePolicy, []string{"billing"}, time.Now().UTC(),
	)
}

func TestKnowledgeAdminService_CreateItem(t *testing.T) {
	f := newAdminFixture(t, "item-1")

	f.items.On("Create", mock.Anything, mock.MatchedBy(func(k *domain.KnowledgeItem) bool {
		return k.ID == "item-1" &&
			k.CompanyID == "company-1" &&
			k.EmbeddingStatus == domain.EmbeddingStatusPending &&
			k.Active
	})).Return(nil)

	item, err := f.svc.CreateItem(context.Background(), CreateItemInput{
		CompanyID:   "company-1",
		Title:       "Refund Policy",
		Content:     "Refunds are processed within fourteen days of the request.",
		ContentType: domain.ContentTypePolicy,
		Tags:        []string{"billing"},
	})

	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, domain.EmbeddingStatusPending, item.EmbeddingStatus)
	f.items.AssertExpectations(t)
}

func TestKnowledgeAdminService_CreateItemValidation(t *testing.T) {
	f := newAdminFixture(t, "item-1")

	_, err := f.svc.CreateItem(context.Background(), CreateItemInput{
		CompanyID:   "company-1",
		Title:       "",
		Content:     "some content",
		ContentType: domain.ContentTypeFAQ,
	})

	require.Error(t, err)
	f.items.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKnowledgeAdminService_UpdateItemPartial(t *testing.T) {
	f := newAdminFixture(t, "ignored")
	existing := ownedItem("item-1", "company-1")

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)
	f.items.On("Update", mock.Anything, mock.MatchedBy(func(k *domain.KnowledgeItem) bool {
		return k.Title == "Returns and Refunds" &&
			k.Content == "Refunds are processed within fourteen days of the request."
	})).Return(nil)

	updated, err := f.svc.UpdateItem(context.Background(), "item-1", "company-1", UpdateItemInput{
		Title: "Returns and Refunds",
	})

	require.NoError(t, err)
	assert.Equal(t, "Returns and Refunds", updated.Title)
	f.items.AssertExpectations(t)
}

func TestKnowledgeAdminService_UpdateItemDeactivate(t *testing.T) {
	f := newAdminFixture(t, "ignored")
	existing := ownedItem("item-1", "company-1")
	inactive := false

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)
	f.items.On("Update", mock.Anything, mock.MatchedBy(func(k *domain.KnowledgeItem) bool {
		return !k.Active
	})).Return(nil)

	updated, err := f.svc.UpdateItem(context.Background(), "item-1", "company-1", UpdateItemInput{
		Active: &inactive,
	})

	require.NoError(t, err)
	assert.False(t, updated.Active)
}

func TestKnowledgeAdminService_UpdateItemWrongCompany(t *testing.T) {
	f := newAdminFixture(t, "ignored")
	existing := ownedItem("item-1", "company-1")

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)

	_, err := f.svc.UpdateItem(context.Background(), "item-1", "company-2", UpdateItemInput{
		Title: "Hijacked",
	})

	assert.ErrorIs(t, err, domain.ErrKnowledgeItemNotFound)
	f.items.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestKnowledgeAdminService_DeleteItemCascades(t *testing.T) {
	f := newAdminFixture(t, "ignored")
	existing := ownedItem("item-1", "company-1")

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)
	f.items.On("SoftDelete", mock.Anything, "item-1").Return(nil)
	f.chunks.On("DeleteByItem", mock.Anything, "item-1").Return(int64(3), nil)

	err := f.svc.DeleteItem(context.Background(), "item-1", "company-1")

	require.NoError(t, err)
	assert.True(t, f.txRunner.called)
	f.items.AssertExpectations(t)
	f.chunks.AssertExpectations(t)
}

func TestKnowledgeAdminService_DeleteItemTxFailure(t *testing.T) {
	f := newAdminFixture(t, "ignored")
	existing := ownedItem("item-1", "company-1")

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)
	f.items.On("SoftDelete", mock.Anything, "item-1").Return(errors.New("connection reset"))

	err := f.svc.DeleteItem(context.Background(), "item-1", "company-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete knowledge item")
	f.chunks.AssertNotCalled(t, "DeleteByItem", mock.Anything, mock.Anything)
}

func TestKnowledgeAdminService_DeleteItemWrongCompany(t *testing.T) {
	f := newAdminFixture(t, "ignored")
	existing := ownedItem("item-1", "company-1")

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)

	err := f.svc.DeleteItem(context.Background(), "item-1", "company-2")

	assert.ErrorIs(t, err, domain.ErrKnowledgeItemNotFound)
	assert.False(t, f.txRunner.called)
}

func TestKnowledgeAdminService_ListItemsPage(t *testing.T) {
	f := newAdminFixture(t, "ignored")
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	cursor := pagination.EncodeCursor("item-9", ts)

	f.items.On("ListByCompanyWithCursor", mock.Anything, "company-1",
		mock.MatchedBy(func(c *pagination.Cursor) bool {
			return c != nil && c.LastID == "item-9" && c.Timestamp.Equal(ts)
		}), 25,
	).Return(&KnowledgeItemPage{HasMore: false}, nil)

	page, err := f.svc.ListItemsPage(context.Background(), "company-1", cursor, 25)

	require.NoError(t, err)
	assert.False(t, page.HasMore)
	f.items.AssertExpectations(t)
}

func TestKnowledgeAdminService_ListItemsPageInvalidCursor(t *testing.T) {
	f := newAdminFixture(t, "ignored")

	_, err := f.svc.ListItemsPage(context.Background(), "company-1", "not!base64!", 25)

	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
	f.items.AssertNotCalled(t, "ListByCompanyWithCursor",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeAdminService_AssignToBot(t *testing.T) {
	f := newAdminFixture(t, "assignment-1")
	existing := ownedItem("item-1", "company-1")

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)
	f.assigns.On("Assign", mock.Anything, mock.MatchedBy(func(a *domain.BotKnowledgeAssignment) bool {
		return a.ID == "assignment-1" &&
			a.BotID == "bot-1" &&
			a.KnowledgeItemID == "item-1" &&
			a.Priority == 2 &&
			a.Active
	})).Return(nil)

	assignment, err := f.svc.AssignToBot(context.Background(), "bot-1", "item-1", "company-1", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, assignment.Priority)
	f.assigns.AssertExpectations(t)
}

func TestKnowledgeAdminService_AssignToBotWrongCompany(t *testing.T) {
	f := newAdminFixture(t, "assignment-1")
	existing := ownedItem("item-1", "company-1")

	f.items.On("GetByID", mock.Anything, "item-1").Return(existing, nil)

	_, err := f.svc.AssignToBot(context.Background(), "bot-1", "item-1", "company-2", 2)

	assert.ErrorIs(t, err, domain.ErrKnowledgeItemNotFound)
	f.assigns.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything)
}

func TestKnowledgeAdminService_UnassignFromBot(t *testing.T) {
	f := newAdminFixture(t, "ignored")

	f.assigns.On("Unassign", mock.Anything, "bot-1", "item-1").Return(nil)

	err := f.svc.UnassignFromBot(context.Background(), "bot-1", "item-1")

	require.NoError(t, err)
	f.assigns.AssertExpectations(t)
}
