package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCard(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	content := json.RawMessage(`{"front": "What is Go?", "back": "A programming language"}`)

	card, err := NewCard(userID, content, now)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, card.ID)
	assert.Equal(t, userID, card.UserID)
	assert.JSONEq(t, string(content), string(card.Content))
	assert.Equal(t, now, card.CreatedAt)
	assert.Equal(t, now, card.UpdatedAt)

	tests := []struct {
		name    string
		userID  uuid.UUID
		content json.RawMessage
		wantErr error
	}{
		{"nil user", uuid.Nil, content, ErrCardUserIDEmpty},
		{"empty content", userID, nil, ErrCardContentEmpty},
		{"broken json", userID, json.RawMessage(`{"front": "broken`), ErrInvalidCardContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCard(tc.userID, tc.content, now)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCardValidate_EmptyID(t *testing.T) {
	t.Parallel()

	card := Card{UserID: uuid.New(), Content: json.RawMessage(`{}`)}
	assert.ErrorIs(t, card.Validate(), ErrCardIDEmpty)
}
