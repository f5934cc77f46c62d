package card_review_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/events"
	"github.com/phrazzld/scry-scheduler/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockCardStore is a testify mock of store.CardStore. WithTx returns the
// mock itself so expectations apply inside transactions too.
type MockCardStore struct {
	mock.Mock
}

func (m *MockCardStore) Create(ctx context.Context, card *domain.Card) error {
	return m.Called(ctx, card).Error(0)
}

func (m *MockCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*domain.Card), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCardStore) GetNextReviewCard(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.DueCard, error) {
	args := m.Called(ctx, userID, now)
	if c := args.Get(0); c != nil {
		return c.(*domain.DueCard), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCardStore) ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]domain.DueCard, error) {
	args := m.Called(ctx, userID, now, limit)
	if c := args.Get(0); c != nil {
		return c.([]domain.DueCard), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCardStore) WithTx(tx *sql.Tx) store.CardStore { return m }

// MockReviewStateStore is a testify mock of store.ReviewStateStore.
type MockReviewStateStore struct {
	mock.Mock
}

func (m *MockReviewStateStore) Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	args := m.Called(ctx, userID, cardID)
	if s := args.Get(0); s != nil {
		return s.(*domain.ReviewState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockReviewStateStore) GetForUpdate(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewState, error) {
	args := m.Called(ctx, userID, cardID)
	if s := args.Get(0); s != nil {
		return s.(*domain.ReviewState), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockReviewStateStore) Upsert(ctx context.Context, state *domain.ReviewState) error {
	return m.Called(ctx, state).Error(0)
}

func (m *MockReviewStateStore) WithTx(tx *sql.Tx) store.ReviewStateStore { return m }

// MockReviewLogStore is a testify mock of store.ReviewLogStore.
type MockReviewLogStore struct {
	mock.Mock
}

func (m *MockReviewLogStore) Append(ctx context.Context, entry *domain.ReviewLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockReviewLogStore) ListByCard(ctx context.Context, userID, cardID uuid.UUID) ([]domain.ReviewLog, error) {
	args := m.Called(ctx, userID, cardID)
	if l := args.Get(0); l != nil {
		return l.([]domain.ReviewLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockReviewLogStore) WithTx(tx *sql.Tx) store.ReviewLogStore { return m }

// eventRecorder collects emitted review events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.ReviewEvent
}

func (r *eventRecorder) HandleEvent(ctx context.Context, event *events.ReviewEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Events() []*events.ReviewEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*events.ReviewEvent(nil), r.events...)
}
