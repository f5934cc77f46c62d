package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/api/shared"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/phrazzld/scry-scheduler/internal/mocks"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/phrazzld/scry-scheduler/internal/service/card_review"
	"github.com/phrazzld/scry-scheduler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestRouter mounts the card routes, authenticating every request as
// userID. A nil userID leaves the request unauthenticated.
func newTestRouter(t *testing.T, svc card_review.CardReviewService, userID uuid.UUID) http.Handler {
	t.Helper()
	_, log := logger.NewTestLogger(t)
	h := NewCardHandler(svc, log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.SetTraceID(req.Context(), "trace-test")
			if userID != uuid.Nil {
				ctx = shared.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Post("/api/cards", h.AddCard)
	r.Get("/api/cards/next", h.GetNextReviewCard)
	r.Get("/api/cards/due", h.ListDueCards)
	r.Post("/api/cards/{id}/answer", h.SubmitAnswer)
	r.Get("/api/cards/{id}/preview", h.PreviewAnswer)
	r.Post("/api/cards/{id}/postpone", h.PostponeCard)
	r.Get("/api/cards/{id}/history", h.GetCardHistory)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func sampleDueCard(userID uuid.UUID) *domain.DueCard {
	card, _ := domain.NewCard(userID, json.RawMessage(`{"front":"q","back":"a"}`), fixedNow)
	state, _ := domain.NewReviewState(userID, card.ID, fixedNow)
	return &domain.DueCard{Card: *card, State: *state}
}

func TestAddCard(t *testing.T) {
	userID := uuid.New()
	dc := sampleDueCard(userID)

	tests := []struct {
		name       string
		body       string
		setup      func(m *mocks.MockCardReviewService)
		wantStatus int
		wantError  string
	}{
		{
			name: "created",
			body: `{"content":{"front":"q","back":"a"}}`,
			setup: func(m *mocks.MockCardReviewService) {
				m.On("AddCard", mock.Anything, userID, json.RawMessage(`{"front":"q","back":"a"}`)).
					Return(dc, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing content",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid Content: required field",
		},
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantError:  "Request body is required",
		},
		{
			name:       "unknown field",
			body:       `{"content":{},"deck_id":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request format",
		},
		{
			name: "rejected content",
			body: `{"content":"plain text"}`,
			setup: func(m *mocks.MockCardReviewService) {
				m.On("AddCard", mock.Anything, userID, mock.Anything).
					Return(nil, card_review.ErrInvalidCard)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Card content must be a non-empty JSON value",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mocks.MockCardReviewService)
			if tc.setup != nil {
				tc.setup(svc)
			}

			rec := do(newTestRouter(t, svc, userID), http.MethodPost, "/api/cards", tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError != "" {
				resp := decodeError(t, rec)
				assert.Equal(t, tc.wantError, resp.Error)
				assert.Equal(t, "trace-test", resp.TraceID)
			} else {
				var got DueCardResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, dc.Card.ID.String(), got.Card.ID)
				assert.Equal(t, domain.StateNew, got.ReviewState.State)
				assert.JSONEq(t, `{"front":"q","back":"a"}`, string(got.Card.Content))
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestGetNextReviewCard(t *testing.T) {
	userID := uuid.New()

	t.Run("returns card", func(t *testing.T) {
		dc := sampleDueCard(userID)
		svc := new(mocks.MockCardReviewService)
		svc.On("GetNextCard", mock.Anything, userID).Return(dc, nil)

		rec := do(newTestRouter(t, svc, userID), http.MethodGet, "/api/cards/next", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got DueCardResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, dc.Card.ID.String(), got.Card.ID)
		assert.True(t, got.ReviewState.Due.Equal(fixedNow))
	})

	t.Run("nothing due", func(t *testing.T) {
		svc := new(mocks.MockCardReviewService)
		svc.On("GetNextCard", mock.Anything, userID).Return(nil, card_review.ErrNoCardsDue)

		rec := do(newTestRouter(t, svc, userID), http.MethodGet, "/api/cards/next", "")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("store failure is not leaked", func(t *testing.T) {
		svc := new(mocks.MockCardReviewService)
		svc.On("GetNextCard", mock.Anything, userID).
			Return(nil, card_review.NewServiceError("get_next_card", "query failed",
				errors.New("pq: SELECT id FROM cards failed at postgres://u:p@db:5432")))

		rec := do(newTestRouter(t, svc, userID), http.MethodGet, "/api/cards/next", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to get next review card", decodeError(t, rec).Error)
		assert.NotContains(t, rec.Body.String(), "postgres")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(mocks.MockCardReviewService)
		rec := do(newTestRouter(t, svc, uuid.Nil), http.MethodGet, "/api/cards/next", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		svc.AssertNotCalled(t, "GetNextCard", mock.Anything, mock.Anything)
	})
}

func TestListDueCards(t *testing.T) {
	userID := uuid.New()
	due := []domain.DueCard{*sampleDueCard(userID), *sampleDueCard(userID)}

	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantStatus int
		call       bool
	}{
		{"no limit", "", 0, http.StatusOK, true},
		{"with limit", "?limit=2", 2, http.StatusOK, true},
		{"negative", "?limit=-1", 0, http.StatusBadRequest, false},
		{"not a number", "?limit=ten", 0, http.StatusBadRequest, false},
		{"too large", "?limit=501", 0, http.StatusBadRequest, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mocks.MockCardReviewService)
			if tc.call {
				svc.On("ListDueCards", mock.Anything, userID, tc.wantLimit).Return(due, nil)
			}

			rec := do(newTestRouter(t, svc, userID), http.MethodGet, "/api/cards/due"+tc.query, "")

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.call {
				var got DueListResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, 2, got.Count)
				assert.Equal(t, due[0].Card.ID.String(), got.Cards[0].Card.ID)
			}
			svc.AssertExpectations(t)
		})
	}

	t.Run("empty list is an array", func(t *testing.T) {
		svc := new(mocks.MockCardReviewService)
		svc.On("ListDueCards", mock.Anything, userID, 0).Return([]domain.DueCard(nil), nil)

		rec := do(newTestRouter(t, svc, userID), http.MethodGet, "/api/cards/due", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"cards":[],"count":0}`, rec.Body.String())
	})
}

func TestSubmitAnswer(t *testing.T) {
	userID := uuid.New()
	cardID := uuid.New()
	path := "/api/cards/" + cardID.String() + "/answer"

	reviewedAt := fixedNow
	result := &card_review.ReviewResult{
		State: domain.ReviewState{
			UserID: userID, CardID: cardID, State: domain.StateLearning, Step: 1,
			Stability: 1.2, Difficulty: 4.8, Due: fixedNow.Add(10 * time.Minute),
			LastReview: &reviewedAt, ReviewCount: 1,
		},
		Interval: 10 * time.Minute,
		Log:      domain.ReviewLog{CardID: cardID, Rating: domain.RatingGood},
	}

	tests := []struct {
		name       string
		path       string
		body       string
		setup      func(m *mocks.MockCardReviewService)
		wantStatus int
		wantError  string
	}{
		{
			name: "rating by name",
			path: path,
			body: `{"rating":"good"}`,
			setup: func(m *mocks.MockCardReviewService) {
				m.On("SubmitAnswer", mock.Anything, userID, cardID,
					card_review.ReviewAnswer{Rating: domain.RatingGood}).Return(result, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "rating by number",
			path: path,
			body: `{"rating":3}`,
			setup: func(m *mocks.MockCardReviewService) {
				m.On("SubmitAnswer", mock.Anything, userID, cardID,
					card_review.ReviewAnswer{Rating: domain.RatingGood}).Return(result, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "rating out of range",
			path:       path,
			body:       `{"rating":5}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Rating must be again, hard, good, easy or 1-4",
		},
		{
			name:       "unknown rating name",
			path:       path,
			body:       `{"rating":"perfect"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Rating must be again, hard, good, easy or 1-4",
		},
		{
			name:       "missing rating",
			path:       path,
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid Rating: required field",
		},
		{
			name:       "bad card id",
			path:       "/api/cards/not-a-uuid/answer",
			body:       `{"rating":"good"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid card ID format",
		},
		{
			name: "card not found",
			path: path,
			body: `{"rating":"again"}`,
			setup: func(m *mocks.MockCardReviewService) {
				m.On("SubmitAnswer", mock.Anything, userID, cardID, mock.Anything).
					Return(nil, card_review.ErrCardNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantError:  "Card not found",
		},
		{
			name: "not owned",
			path: path,
			body: `{"rating":"again"}`,
			setup: func(m *mocks.MockCardReviewService) {
				m.On("SubmitAnswer", mock.Anything, userID, cardID, mock.Anything).
					Return(nil, card_review.ErrCardNotOwned)
			},
			wantStatus: http.StatusForbidden,
			wantError:  "You do not own this card",
		},
		{
			name: "store failure",
			path: path,
			body: `{"rating":"again"}`,
			setup: func(m *mocks.MockCardReviewService) {
				m.On("SubmitAnswer", mock.Anything, userID, cardID, mock.Anything).
					Return(nil, card_review.NewServiceError("submit_answer", "failed", store.ErrTransactionFailed))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to submit answer",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mocks.MockCardReviewService)
			if tc.setup != nil {
				tc.setup(svc)
			}

			rec := do(newTestRouter(t, svc, userID), http.MethodPost, tc.path, tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, decodeError(t, rec).Error)
			} else {
				var got AnswerResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, cardID.String(), got.CardID)
				assert.Equal(t, domain.RatingGood, got.Rating)
				assert.Equal(t, domain.StateLearning, got.ReviewState.State)
				assert.Equal(t, int64(600), got.IntervalSeconds)
				assert.Equal(t, "10m", got.Interval)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestPreviewAnswer(t *testing.T) {
	userID := uuid.New()
	dc := sampleDueCard(userID)

	previews, err := srs.NewDefaultService().PreviewReview(&dc.State, fixedNow)
	require.NoError(t, err)

	svc := new(mocks.MockCardReviewService)
	svc.On("PreviewAnswer", mock.Anything, userID, dc.Card.ID).Return(previews, nil)

	rec := do(newTestRouter(t, svc, userID), http.MethodGet,
		"/api/cards/"+dc.Card.ID.String()+"/preview", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got []PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 4)

	labels := make([]string, 0, len(got))
	for _, p := range got {
		labels = append(labels, p.Interval)
	}
	assert.Equal(t, []string{"1m", "1m", "10m", "2d"}, labels)
	assert.Equal(t, domain.RatingEasy, got[3].Rating)
	assert.Equal(t, domain.StateReview, got[3].State)
}

func TestPostponeCard(t *testing.T) {
	userID := uuid.New()
	dc := sampleDueCard(userID)
	path := "/api/cards/" + dc.Card.ID.String() + "/postpone"

	postponed := dc.State.Clone()
	postponed.Due = fixedNow.AddDate(0, 0, 3)

	t.Run("postponed", func(t *testing.T) {
		svc := new(mocks.MockCardReviewService)
		svc.On("PostponeCard", mock.Anything, userID, dc.Card.ID, 3).Return(&postponed, nil)

		rec := do(newTestRouter(t, svc, userID), http.MethodPost, path, `{"days":3}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var got ReviewStateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.True(t, got.Due.Equal(postponed.Due))
	})

	for _, body := range []string{`{"days":0}`, `{"days":-2}`, `{"days":"three"}`} {
		t.Run("rejects "+body, func(t *testing.T) {
			svc := new(mocks.MockCardReviewService)
			rec := do(newTestRouter(t, svc, userID), http.MethodPost, path, body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			svc.AssertNotCalled(t, "PostponeCard", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGetCardHistory(t *testing.T) {
	userID := uuid.New()
	dc := sampleDueCard(userID)
	path := "/api/cards/" + dc.Card.ID.String() + "/history"

	t.Run("history", func(t *testing.T) {
		after := dc.State.Clone()
		after.State = domain.StateLearning
		history := &card_review.CardHistory{
			State:    after,
			Replayed: after,
			Logs: []domain.ReviewLog{
				domain.NewReviewLog(dc.State, after, domain.RatingGood, 10*time.Minute, fixedNow),
			},
		}
		svc := new(mocks.MockCardReviewService)
		svc.On("GetCardHistory", mock.Anything, userID, dc.Card.ID).Return(history, nil)

		rec := do(newTestRouter(t, svc, userID), http.MethodGet, path, "")

		require.Equal(t, http.StatusOK, rec.Code)
		var got HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, dc.Card.ID.String(), got.CardID)
		assert.Equal(t, domain.StateLearning, got.Replayed.State)
		require.Len(t, got.Logs, 1)
		assert.Equal(t, domain.RatingGood, got.Logs[0].Rating)
		assert.Equal(t, domain.StateNew, got.Logs[0].StateBefore)
		assert.Equal(t, "10m", got.Logs[0].Interval)
		assert.Equal(t, int64(600), got.Logs[0].IntervalSeconds)
	})

	t.Run("not owned", func(t *testing.T) {
		svc := new(mocks.MockCardReviewService)
		svc.On("GetCardHistory", mock.Anything, userID, dc.Card.ID).Return(nil, card_review.ErrCardNotOwned)

		rec := do(newTestRouter(t, svc, userID), http.MethodGet, path, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		svc := new(mocks.MockCardReviewService)
		rec := do(newTestRouter(t, svc, userID), http.MethodGet, "/api/cards/nope/history", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "GetCardHistory", mock.Anything, mock.Anything, mock.Anything)
	})
}
