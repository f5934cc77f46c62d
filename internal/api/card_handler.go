package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-scheduler/internal/api/shared"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/phrazzld/scry-scheduler/internal/service/card_review"
)

// CardHandler serves the card review endpoints.
type CardHandler struct {
	cardReviewService card_review.CardReviewService
	logger            *slog.Logger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(
	cardReviewService card_review.CardReviewService,
	logger *slog.Logger,
) *CardHandler {
	if cardReviewService == nil {
		panic("cardReviewService cannot be nil for CardHandler")
	}
	if logger == nil {
		panic("logger cannot be nil for CardHandler")
	}

	return &CardHandler{
		cardReviewService: cardReviewService,
		logger:            logger.With(slog.String("component", "card_handler")),
	}
}

// AddCard handles POST /api/cards.
func (h *CardHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AddCardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	dc, err := h.cardReviewService.AddCard(r.Context(), userID, req.Content)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create card")
		return
	}

	log.Debug("card created", slog.String("card_id", dc.Card.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, dueCardToResponse(*dc))
}

// GetNextReviewCard handles GET /api/cards/next. It answers 204 when nothing
// is due.
func (h *CardHandler) GetNextReviewCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	dc, err := h.cardReviewService.GetNextCard(r.Context(), userID)
	if errors.Is(err, card_review.ErrNoCardsDue) {
		log.Debug("no cards due for review")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get next review card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, dueCardToResponse(*dc))
}

// ListDueCards handles GET /api/cards/due?limit=n.
func (h *CardHandler) ListDueCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
		return
	}

	due, err := h.cardReviewService.ListDueCards(r.Context(), userID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list due cards")
		return
	}

	resp := DueListResponse{Cards: make([]DueCardResponse, 0, len(due)), Count: len(due)}
	for _, dc := range due {
		resp.Cards = append(resp.Cards, dueCardToResponse(dc))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// SubmitAnswer handles POST /api/cards/{id}/answer.
func (h *CardHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, cardID, ok := requireUserAndCard(w, r)
	if !ok {
		return
	}

	var req AnswerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.cardReviewService.SubmitAnswer(r.Context(), userID, cardID,
		card_review.ReviewAnswer{Rating: req.Rating})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit answer")
		return
	}

	log.Debug("answer submitted",
		slog.String("card_id", cardID.String()),
		slog.String("rating", req.Rating.String()),
		slog.String("state", res.State.State.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(res))
}

// PreviewAnswer handles GET /api/cards/{id}/preview.
func (h *CardHandler) PreviewAnswer(w http.ResponseWriter, r *http.Request) {
	userID, cardID, ok := requireUserAndCard(w, r)
	if !ok {
		return
	}

	previews, err := h.cardReviewService.PreviewAnswer(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to preview card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, previewsToResponse(previews))
}

// GetCardHistory handles GET /api/cards/{id}/history.
func (h *CardHandler) GetCardHistory(w http.ResponseWriter, r *http.Request) {
	userID, cardID, ok := requireUserAndCard(w, r)
	if !ok {
		return
	}

	history, err := h.cardReviewService.GetCardHistory(r.Context(), userID, cardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load card history")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, historyToResponse(cardID.String(), history))
}

// PostponeCard handles POST /api/cards/{id}/postpone.
func (h *CardHandler) PostponeCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, cardID, ok := requireUserAndCard(w, r)
	if !ok {
		return
	}

	var req PostponeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	state, err := h.cardReviewService.PostponeCard(r.Context(), userID, cardID, req.Days)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to postpone card")
		return
	}

	log.Debug("card postponed",
		slog.String("card_id", cardID.String()),
		slog.Int("days", req.Days))
	shared.RespondWithJSON(w, r, http.StatusOK, stateToResponse(*state))
}
