package card_review

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/phrazzld/scry-scheduler/internal/events"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/phrazzld/scry-scheduler/internal/store"
)

// Verify interface compliance at compile time
var _ CardReviewService = (*cardReviewServiceImpl)(nil)

// cardReviewServiceImpl implements the CardReviewService interface.
type cardReviewServiceImpl struct {
	db         *sql.DB
	cardStore  store.CardStore
	stateStore store.ReviewStateStore
	logStore   store.ReviewLogStore
	srsService srs.Service
	emitter    events.EventEmitter
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures the service.
type Option func(*cardReviewServiceImpl)

// WithClock replaces the wall clock used to timestamp reviews.
func WithClock(now func() time.Time) Option {
	return func(s *cardReviewServiceImpl) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEventEmitter publishes a ReviewEvent after every recorded, or failed,
// review.
func WithEventEmitter(emitter events.EventEmitter) Option {
	return func(s *cardReviewServiceImpl) {
		s.emitter = emitter
	}
}

// NewCardReviewService creates a new CardReviewService implementation.
func NewCardReviewService(
	db *sql.DB,
	cardStore store.CardStore,
	stateStore store.ReviewStateStore,
	logStore store.ReviewLogStore,
	srsService srs.Service,
	logger *slog.Logger,
	opts ...Option,
) (CardReviewService, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if cardStore == nil {
		return nil, errors.New("cardStore cannot be nil")
	}
	if stateStore == nil {
		return nil, errors.New("stateStore cannot be nil")
	}
	if logStore == nil {
		return nil, errors.New("logStore cannot be nil")
	}
	if srsService == nil {
		return nil, errors.New("srsService cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &cardReviewServiceImpl{
		db:         db,
		cardStore:  cardStore,
		stateStore: stateStore,
		logStore:   logStore,
		srsService: srsService,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(slog.String("component", "card_review_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AddCard implements CardReviewService.AddCard.
func (s *cardReviewServiceImpl) AddCard(
	ctx context.Context,
	userID uuid.UUID,
	content json.RawMessage,
) (*domain.DueCard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	card, err := domain.NewCard(userID, content, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}
	state, err := domain.NewReviewState(userID, card.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCard, err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.cardStore.WithTx(tx).Create(ctx, card); err != nil {
			return err
		}
		return s.stateStore.WithTx(tx).Upsert(ctx, state)
	})
	if err != nil {
		log.Error("failed to add card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("add_card", "failed to store card", err)
	}

	log.Debug("card added",
		slog.String("user_id", userID.String()),
		slog.String("card_id", card.ID.String()))
	return &domain.DueCard{Card: *card, State: *state}, nil
}

// GetNextCard implements CardReviewService.GetNextCard.
func (s *cardReviewServiceImpl) GetNextCard(ctx context.Context, userID uuid.UUID) (*domain.DueCard, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("retrieving next review card", slog.String("user_id", userID.String()))

	due, err := s.cardStore.GetNextReviewCard(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNoCardsDue) {
			log.Debug("no cards due for review", slog.String("user_id", userID.String()))
			return nil, ErrNoCardsDue
		}

		log.Error("failed to get next review card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("get_next_card", "failed to query due cards", err)
	}

	return due, nil
}

// ListDueCards implements CardReviewService.ListDueCards.
func (s *cardReviewServiceImpl) ListDueCards(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) ([]domain.DueCard, error) {
	due, err := s.cardStore.ListDue(ctx, userID, s.now(), limit)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewServiceError("list_due_cards", "failed to query due cards", err)
	}
	return due, nil
}

// SubmitAnswer implements CardReviewService.SubmitAnswer.
func (s *cardReviewServiceImpl) SubmitAnswer(
	ctx context.Context,
	userID uuid.UUID,
	cardID uuid.UUID,
	answer ReviewAnswer,
) (*ReviewResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !answer.Rating.IsValid() {
		log.Warn("invalid review rating",
			slog.String("card_id", cardID.String()),
			slog.Int("rating", int(answer.Rating)))
		return nil, fmt.Errorf("%w: %w", ErrInvalidAnswer, domain.ErrInvalidRating)
	}

	now := s.now()
	var result *ReviewResult

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.loadOwnedState(ctx, tx, userID, cardID, now, true)
		if err != nil {
			return err
		}

		next, interval, err := s.srsService.CalculateNextReview(current, answer.Rating, now)
		if err != nil {
			return fmt.Errorf("failed to calculate next review: %w", err)
		}

		entry := domain.NewReviewLog(*current, *next, answer.Rating, interval, now)
		if err := s.stateStore.WithTx(tx).Upsert(ctx, next); err != nil {
			return err
		}
		if err := s.logStore.WithTx(tx).Append(ctx, &entry); err != nil {
			return err
		}

		result = &ReviewResult{State: *next, Interval: interval, Log: entry}
		return nil
	})
	if err != nil {
		if isClientError(err) {
			return nil, err
		}
		log.Error("failed to submit answer",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return nil, NewServiceError("submit_answer", "failed to record review", err)
	}

	s.emit(ctx, events.NewReviewRecordedEvent(result.State, answer.Rating, now))

	log.Debug("successfully processed review answer",
		slog.String("card_id", cardID.String()),
		slog.String("rating", answer.Rating.String()),
		slog.String("state", result.State.State.String()),
		slog.Duration("interval", result.Interval),
		slog.Time("due", result.State.Due))
	return result, nil
}

// PreviewAnswer implements CardReviewService.PreviewAnswer.
func (s *cardReviewServiceImpl) PreviewAnswer(
	ctx context.Context,
	userID, cardID uuid.UUID,
) ([]srs.Preview, error) {
	now := s.now()

	var current *domain.ReviewState
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		current, err = s.loadOwnedState(ctx, tx, userID, cardID, now, false)
		return err
	})
	if err != nil {
		if isClientError(err) {
			return nil, err
		}
		return nil, NewServiceError("preview_answer", "failed to load review state", err)
	}

	previews, err := s.srsService.PreviewReview(current, now)
	if err != nil {
		return nil, NewServiceError("preview_answer", "failed to compute previews", err)
	}
	return previews, nil
}

// PostponeCard implements CardReviewService.PostponeCard.
func (s *cardReviewServiceImpl) PostponeCard(
	ctx context.Context,
	userID, cardID uuid.UUID,
	days int,
) (*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	if days < 1 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAnswer, srs.ErrInvalidDays)
	}

	var postponed *domain.ReviewState
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.loadOwnedState(ctx, tx, userID, cardID, now, true)
		if err != nil {
			return err
		}
		if postponed, err = s.srsService.PostponeReview(current, days, now); err != nil {
			return err
		}
		return s.stateStore.WithTx(tx).Upsert(ctx, postponed)
	})
	if err != nil {
		if isClientError(err) {
			return nil, err
		}
		log.Error("failed to postpone card",
			slog.String("error", err.Error()),
			slog.String("card_id", cardID.String()))
		return nil, NewServiceError("postpone_card", "failed to postpone review", err)
	}

	log.Debug("card postponed",
		slog.String("card_id", cardID.String()),
		slog.Int("days", days),
		slog.Time("due", postponed.Due))
	return postponed, nil
}

// RecordReview implements CardReviewService.RecordReview.
func (s *cardReviewServiceImpl) RecordReview(
	ctx context.Context,
	before, after domain.ReviewState,
	rating domain.Rating,
	interval time.Duration,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	reviewedAt := s.now()
	if after.LastReview != nil {
		reviewedAt = *after.LastReview
	}

	err := s.recordReview(ctx, before, after, rating, interval, reviewedAt)
	if err != nil {
		log.Error("failed to record review",
			slog.String("error", err.Error()),
			slog.String("card_id", after.CardID.String()))
		s.emit(ctx, events.NewReviewRecordFailedEvent(after, rating, err, s.now()))
		return fmt.Errorf("%w: %w", ErrRecordFailed, err)
	}

	s.emit(ctx, events.NewReviewRecordedEvent(after, rating, reviewedAt))
	return nil
}

func (s *cardReviewServiceImpl) recordReview(
	ctx context.Context,
	before, after domain.ReviewState,
	rating domain.Rating,
	interval time.Duration,
	reviewedAt time.Time,
) error {
	if before.CardID != after.CardID || before.UserID != after.UserID {
		return fmt.Errorf("%w: before and after belong to different cards", store.ErrInvalidEntity)
	}

	entry := domain.NewReviewLog(before, after, rating, interval, reviewedAt)
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.stateStore.WithTx(tx).Upsert(ctx, &after); err != nil {
			return err
		}
		return s.logStore.WithTx(tx).Append(ctx, &entry)
	})
}

// GetCardHistory implements CardReviewService.GetCardHistory.
func (s *cardReviewServiceImpl) GetCardHistory(
	ctx context.Context,
	userID, cardID uuid.UUID,
) (*CardHistory, error) {
	now := s.now()

	var (
		current *domain.ReviewState
		logs    []domain.ReviewLog
	)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		current, err = s.loadOwnedState(ctx, tx, userID, cardID, now, false)
		if err != nil {
			return err
		}
		logs, err = s.logStore.WithTx(tx).ListByCard(ctx, userID, cardID)
		return err
	})
	if err != nil {
		if isClientError(err) {
			return nil, err
		}
		return nil, NewServiceError("get_card_history", "failed to load review history", err)
	}

	// A new card is due when created, which is when its first review can
	// happen at the earliest.
	start := current.Due
	if len(logs) > 0 {
		start = logs[0].ReviewedAt
	}
	initial, err := domain.NewReviewState(userID, cardID, start)
	if err != nil {
		return nil, NewServiceError("get_card_history", "failed to build initial state", err)
	}

	replayed, err := s.srsService.ReplayReviews(*initial, logs)
	if err != nil {
		return nil, NewServiceError("get_card_history", "failed to replay review log", err)
	}

	if logs == nil {
		logs = []domain.ReviewLog{}
	}
	return &CardHistory{State: *current, Replayed: *replayed, Logs: logs}, nil
}

// loadOwnedState checks that the card exists and belongs to userID, then
// returns its review state. A card whose state row is missing is treated as
// new.
func (s *cardReviewServiceImpl) loadOwnedState(
	ctx context.Context,
	tx *sql.Tx,
	userID, cardID uuid.UUID,
	now time.Time,
	forUpdate bool,
) (*domain.ReviewState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := s.cardStore.WithTx(tx).GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			log.Warn("card not found for review", slog.String("card_id", cardID.String()))
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	if card.UserID != userID {
		log.Warn("user does not own card",
			slog.String("user_id", userID.String()),
			slog.String("card_id", cardID.String()))
		return nil, ErrCardNotOwned
	}

	states := s.stateStore.WithTx(tx)
	var state *domain.ReviewState
	if forUpdate {
		state, err = states.GetForUpdate(ctx, userID, cardID)
	} else {
		state, err = states.Get(ctx, userID, cardID)
	}
	if err != nil {
		if errors.Is(err, store.ErrReviewStateNotFound) {
			log.Warn("review state missing, treating card as new", slog.String("card_id", cardID.String()))
			return domain.NewReviewState(userID, cardID, now)
		}
		return nil, fmt.Errorf("failed to get review state: %w", err)
	}
	return state, nil
}

func (s *cardReviewServiceImpl) emit(ctx context.Context, event *events.ReviewEvent) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("review event handler failed",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
	}
}

func isClientError(err error) bool {
	return errors.Is(err, ErrCardNotFound) ||
		errors.Is(err, ErrCardNotOwned) ||
		errors.Is(err, ErrInvalidAnswer)
}
