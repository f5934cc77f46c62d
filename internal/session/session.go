package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
)

var (
	// ErrSessionComplete is returned when every card has been rated.
	ErrSessionComplete = errors.New("session complete: no cards left")

	// ErrSessionCancelled is returned after Cancel.
	ErrSessionCancelled = errors.New("session cancelled")
)

// Outcome is what the caller shows after a rating.
type Outcome struct {
	Card     domain.Card
	Rating   domain.Rating
	State    domain.ReviewState
	Interval time.Duration

	// DispatchErr is set when the write could not even be queued. The
	// session has advanced regardless.
	DispatchErr error
}

// Session is an ordered list of due cards and a cursor into it. It is safe
// for concurrent use, though a single driver is the normal case.
type Session struct {
	mu        sync.Mutex
	id        uuid.UUID
	userID    uuid.UUID
	cards     []domain.DueCard
	cursor    int
	cancelled bool

	scheduler  srs.Service
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New starts a session over due, which must already be in presentation
// order. The slice is copied.
func New(
	userID uuid.UUID,
	due []domain.DueCard,
	scheduler srs.Service,
	dispatcher Dispatcher,
	logger *slog.Logger,
) *Session {
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if dispatcher == nil {
		panic("dispatcher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New()
	return &Session{
		id:         id,
		userID:     userID,
		cards:      append([]domain.DueCard(nil), due...),
		scheduler:  scheduler,
		dispatcher: dispatcher,
		logger: logger.With(
			slog.String("component", "review_session"),
			slog.String("session_id", id.String()),
		),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Current returns the card to present, or false when the session is over.
func (s *Session) Current() (domain.DueCard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled || s.cursor >= len(s.cards) {
		return domain.DueCard{}, false
	}
	return s.cards[s.cursor], true
}

// Preview returns the outcome of every rating for the current card.
func (s *Session) Preview(now time.Time) ([]srs.Preview, error) {
	card, ok := s.Current()
	if !ok {
		return nil, s.endErr()
	}
	return s.scheduler.PreviewReview(&card.State, now)
}

// Rate applies rating to the current card at now. The next state is
// computed before returning; persisting it is dispatched and not awaited.
// An invalid rating leaves the cursor where it is.
func (s *Session) Rate(ctx context.Context, rating domain.Rating, now time.Time) (*Outcome, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return nil, ErrSessionCancelled
	}
	if s.cursor >= len(s.cards) {
		s.mu.Unlock()
		return nil, ErrSessionComplete
	}
	card := s.cards[s.cursor]

	next, interval, err := s.scheduler.CalculateNextReview(&card.State, rating, now)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.cursor++
	s.mu.Unlock()

	out := &Outcome{
		Card:     card.Card,
		Rating:   rating,
		State:    *next,
		Interval: interval,
	}

	out.DispatchErr = s.dispatcher.Dispatch(ctx, Review{
		Before:   card.State,
		After:    *next,
		Rating:   rating,
		Interval: interval,
	})
	if out.DispatchErr != nil {
		log.Warn("review not queued for persistence",
			slog.String("card_id", card.Card.ID.String()),
			slog.String("error", out.DispatchErr.Error()))
	}

	log.Debug("card rated",
		slog.String("card_id", card.Card.ID.String()),
		slog.String("rating", rating.String()),
		slog.String("state", next.State.String()),
		slog.String("next_review", srs.FormatInterval(interval)))
	return out, nil
}

// Cancel ends the session immediately. Writes already dispatched are left
// to complete or fail on their own; none are retried or rolled back.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cancelled {
		s.cancelled = true
		s.logger.Debug("session cancelled",
			slog.Int("reviewed", s.cursor),
			slog.Int("remaining", len(s.cards)-s.cursor))
	}
}

// Reviewed returns the number of cards rated so far.
func (s *Session) Reviewed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Remaining returns the number of cards not yet rated. It is zero after
// Cancel.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return 0
	}
	return len(s.cards) - s.cursor
}

// Done reports whether the session has nothing left to present.
func (s *Session) Done() bool {
	return s.Remaining() == 0
}

func (s *Session) endErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return ErrSessionCancelled
	}
	return ErrSessionComplete
}
