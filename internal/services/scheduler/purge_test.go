package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) PurgeUsageBefore(ctx context.Context, period string) (int64, error) {
	args := m.Called(ctx, period)
	return args.Get(0).(int64), args.Error(1)
}

type recorderStub struct {
	purged []int64
}

func (r *recorderStub) RecordPurge(rows int64) {
	r.purged = append(r.purged, rows)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestPurgeService_PurgeExpiredUsage(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		retention  int
		wantCutoff string
	}{
		{name: "keeps a year", retention: 12, wantCutoff: "2025-04"},
		{name: "keeps current month only", retention: 1, wantCutoff: "2026-03"},
		{name: "non-positive retention keeps current month", retention: 0, wantCutoff: "2026-03"},
		{name: "crosses year boundary", retention: 4, wantCutoff: "2025-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			recorder := &recorderStub{}
			repo.On("PurgeUsageBefore", mock.Anything, tt.wantCutoff).Return(int64(7), nil).Once()

			s := NewPurgeService(repo, recorder, tt.retention, newNoopLogger())
			s.now = func() time.Time { return now }

			rows, err := s.PurgeExpiredUsage(context.Background())
			require.NoError(t, err)
			assert.EqualValues(t, 7, rows)
			assert.Equal(t, []int64{7}, recorder.purged)
			repo.AssertExpectations(t)
		})
	}
}

func TestPurgeService_RepositoryError(t *testing.T) {
	repo := new(MockRepository)
	recorder := &recorderStub{}
	repo.On("PurgeUsageBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down")).Once()

	s := NewPurgeService(repo, recorder, 12, newNoopLogger())
	_, err := s.PurgeExpiredUsage(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "services.scheduler.PurgeExpiredUsage")
	assert.Empty(t, recorder.purged)
}
