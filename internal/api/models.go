package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/phrazzld/scry-scheduler/internal/service/card_review"
)

// AddCardRequest is the body of POST /api/cards.
type AddCardRequest struct {
	Content json.RawMessage `json:"content" validate:"required"`
}

// AnswerRequest is the body of POST /api/cards/{id}/answer. Rating accepts a
// name ("good") or its number (3).
type AnswerRequest struct {
	Rating domain.Rating `json:"rating" validate:"required"`
}

// PostponeRequest is the body of POST /api/cards/{id}/postpone.
type PostponeRequest struct {
	Days int `json:"days" validate:"required,gte=1,lte=36500"`
}

// CardResponse is a card as returned to clients.
type CardResponse struct {
	ID        string          `json:"id"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ReviewStateResponse is the scheduling state of a card.
type ReviewStateResponse struct {
	State       domain.State `json:"state"`
	Step        int          `json:"step"`
	Stability   float64      `json:"stability"`
	Difficulty  float64      `json:"difficulty"`
	Due         time.Time    `json:"due"`
	LastReview  *time.Time   `json:"last_review,omitempty"`
	ReviewCount int          `json:"review_count"`
}

// DueCardResponse pairs a card with its state.
type DueCardResponse struct {
	Card        CardResponse        `json:"card"`
	ReviewState ReviewStateResponse `json:"review_state"`
}

// DueListResponse is the body of GET /api/cards/due.
type DueListResponse struct {
	Cards []DueCardResponse `json:"cards"`
	Count int               `json:"count"`
}

// AnswerResponse is the body returned after a rating is recorded.
type AnswerResponse struct {
	CardID          string              `json:"card_id"`
	Rating          domain.Rating       `json:"rating"`
	ReviewState     ReviewStateResponse `json:"review_state"`
	IntervalSeconds int64               `json:"interval_seconds"`
	Interval        string              `json:"interval"`
}

// PreviewResponse is one entry of GET /api/cards/{id}/preview.
type PreviewResponse struct {
	Rating          domain.Rating `json:"rating"`
	State           domain.State  `json:"state"`
	Due             time.Time     `json:"due"`
	IntervalSeconds int64         `json:"interval_seconds"`
	Interval        string        `json:"interval"`
}

// ReviewLogResponse is one recorded rating.
type ReviewLogResponse struct {
	Rating          domain.Rating `json:"rating"`
	StateBefore     domain.State  `json:"state_before"`
	StateAfter      domain.State  `json:"state_after"`
	IntervalSeconds int64         `json:"interval_seconds"`
	Interval        string        `json:"interval"`
	ReviewedAt      time.Time     `json:"reviewed_at"`
}

// HistoryResponse is the body of GET /api/cards/{id}/history.
type HistoryResponse struct {
	CardID      string              `json:"card_id"`
	ReviewState ReviewStateResponse `json:"review_state"`
	Replayed    ReviewStateResponse `json:"replayed_state"`
	Logs        []ReviewLogResponse `json:"logs"`
}

func cardToResponse(card domain.Card) CardResponse {
	return CardResponse{
		ID:        card.ID.String(),
		Content:   card.Content,
		CreatedAt: card.CreatedAt,
		UpdatedAt: card.UpdatedAt,
	}
}

func stateToResponse(s domain.ReviewState) ReviewStateResponse {
	return ReviewStateResponse{
		State:       s.State,
		Step:        s.Step,
		Stability:   s.Stability,
		Difficulty:  s.Difficulty,
		Due:         s.Due,
		LastReview:  s.LastReview,
		ReviewCount: s.ReviewCount,
	}
}

func dueCardToResponse(dc domain.DueCard) DueCardResponse {
	return DueCardResponse{
		Card:        cardToResponse(dc.Card),
		ReviewState: stateToResponse(dc.State),
	}
}

func resultToResponse(res *card_review.ReviewResult) AnswerResponse {
	return AnswerResponse{
		CardID:          res.State.CardID.String(),
		Rating:          res.Log.Rating,
		ReviewState:     stateToResponse(res.State),
		IntervalSeconds: int64(res.Interval / time.Second),
		Interval:        srs.FormatInterval(res.Interval),
	}
}

func previewsToResponse(previews []srs.Preview) []PreviewResponse {
	out := make([]PreviewResponse, 0, len(previews))
	for _, p := range previews {
		out = append(out, PreviewResponse{
			Rating:          p.Rating,
			State:           p.State.State,
			Due:             p.State.Due,
			IntervalSeconds: int64(p.Interval / time.Second),
			Interval:        srs.FormatInterval(p.Interval),
		})
	}
	return out
}

func historyToResponse(cardID string, h *card_review.CardHistory) HistoryResponse {
	logs := make([]ReviewLogResponse, 0, len(h.Logs))
	for _, l := range h.Logs {
		logs = append(logs, ReviewLogResponse{
			Rating:          l.Rating,
			StateBefore:     l.StateBefore,
			StateAfter:      l.StateAfter,
			IntervalSeconds: int64(l.Interval / time.Second),
			Interval:        srs.FormatInterval(l.Interval),
			ReviewedAt:      l.ReviewedAt,
		})
	}
	return HistoryResponse{
		CardID:      cardID,
		ReviewState: stateToResponse(h.State),
		Replayed:    stateToResponse(h.Replayed),
		Logs:        logs,
	}
}
