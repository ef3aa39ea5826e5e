package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxloop/ragcore/internal/domain"
)

type capturingAnalyticsRepo struct {
	mu      sync.Mutex
	records []*domain.AnalyticsRecord
	err     error
}

func (r *capturingAnalyticsRepo) Insert(_ context.Context, rec *domain.AnalyticsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *capturingAnalyticsRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func TestAsyncAnalyticsRecorder_PersistsRecords(t *testing.T) {
	repo := &capturingAnalyticsRepo{}
	recorder := NewAsyncAnalyticsRecorder(repo, zap.NewNop())

	for i := 0; i < 3; i++ {
		recorder.Record(&domain.AnalyticsRecord{CompanyID: "company-1", QueryHash: "abc"})
	}
	recorder.Close()

	assert.Equal(t, 3, repo.count())
}

func TestAsyncAnalyticsRecorder_InsertFailureDoesNotPropagate(t *testing.T) {
	repo := &capturingAnalyticsRepo{err: errors.New("database down")}
	recorder := NewAsyncAnalyticsRecorder(repo, zap.NewNop())

	// Record never returns an error or panics, whatever the repository does.
	require.NotPanics(t, func() {
		recorder.Record(&domain.AnalyticsRecord{CompanyID: "company-1"})
		recorder.Close()
	})
}

func TestAsyncAnalyticsRecorder_NilRecordIgnored(t *testing.T) {
	repo := &capturingAnalyticsRepo{}
	recorder := NewAsyncAnalyticsRecorder(repo, zap.NewNop())

	recorder.Record(nil)
	recorder.Close()

	assert.Zero(t, repo.count())
}

func TestAsyncAnalyticsRecorder_CloseIsIdempotent(t *testing.T) {
	recorder := NewAsyncAnalyticsRecorder(&capturingAnalyticsRepo{}, zap.NewNop())

	require.NotPanics(t, func() {
		recorder.Close()
		recorder.Close()
	})
}

func TestNopAnalyticsRecorder(t *testing.T) {
	require.NotPanics(t, func() {
		NopAnalyticsRecorder{}.Record(&domain.AnalyticsRecord{})
		NopAnalyticsRecorder{}.Record(nil)
	})
}
