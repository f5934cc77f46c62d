package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/phrazzld/scry-scheduler/internal/service/card_review"
	"github.com/stretchr/testify/mock"
)

// MockCardReviewService is a testify mock of card_review.CardReviewService.
// Nil pointer returns are allowed: configure them with Return(nil, err).
type MockCardReviewService struct {
	mock.Mock
}

var _ card_review.CardReviewService = (*MockCardReviewService)(nil)

func (m *MockCardReviewService) AddCard(ctx context.Context, userID uuid.UUID, content json.RawMessage) (*domain.DueCard, error) {
	args := m.Called(ctx, userID, content)
	dc, _ := args.Get(0).(*domain.DueCard)
	return dc, args.Error(1)
}

func (m *MockCardReviewService) GetNextCard(ctx context.Context, userID uuid.UUID) (*domain.DueCard, error) {
	args := m.Called(ctx, userID)
	dc, _ := args.Get(0).(*domain.DueCard)
	return dc, args.Error(1)
}

func (m *MockCardReviewService) ListDueCards(ctx context.Context, userID uuid.UUID, limit int) ([]domain.DueCard, error) {
	args := m.Called(ctx, userID, limit)
	due, _ := args.Get(0).([]domain.DueCard)
	return due, args.Error(1)
}

func (m *MockCardReviewService) SubmitAnswer(
	ctx context.Context,
	userID, cardID uuid.UUID,
	answer card_review.ReviewAnswer,
) (*card_review.ReviewResult, error) {
	args := m.Called(ctx, userID, cardID, answer)
	res, _ := args.Get(0).(*card_review.ReviewResult)
	return res, args.Error(1)
}

func (m *MockCardReviewService) PreviewAnswer(ctx context.Context, userID, cardID uuid.UUID) ([]srs.Preview, error) {
	args := m.Called(ctx, userID, cardID)
	p, _ := args.Get(0).([]srs.Preview)
	return p, args.Error(1)
}

func (m *MockCardReviewService) PostponeCard(ctx context.Context, userID, cardID uuid.UUID, days int) (*domain.ReviewState, error) {
	args := m.Called(ctx, userID, cardID, days)
	s, _ := args.Get(0).(*domain.ReviewState)
	return s, args.Error(1)
}

func (m *MockCardReviewService) GetCardHistory(ctx context.Context, userID, cardID uuid.UUID) (*card_review.CardHistory, error) {
	args := m.Called(ctx, userID, cardID)
	h, _ := args.Get(0).(*card_review.CardHistory)
	return h, args.Error(1)
}

func (m *MockCardReviewService) RecordReview(
	ctx context.Context,
	before, after domain.ReviewState,
	rating domain.Rating,
	interval time.Duration,
) error {
	return m.Called(ctx, before, after, rating, interval).Error(0)
}
