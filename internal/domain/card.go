package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Card-specific validation errors
var (
	ErrCardIDEmpty      = errors.New("card ID cannot be empty")
	ErrCardUserIDEmpty  = errors.New("card user ID cannot be empty")
	ErrCardContentEmpty = errors.New("card content cannot be empty")
)

// Card is an opaque study item owned by one user. The scheduler never looks
// inside Content; it only needs the ID to address the card's ReviewState.
type Card struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CardContent is the conventional shape of Content for front/back cards.
// Other shapes are allowed as long as they are valid JSON.
type CardContent struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Hint  string   `json:"hint,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// NewCard creates a card with a fresh ID. Timestamps are taken from now.
func NewCard(userID uuid.UUID, content json.RawMessage, now time.Time) (*Card, error) {
	card := &Card{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

// Validate checks if the Card has valid data.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}
	if c.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}
	if len(c.Content) == 0 {
		return ErrCardContentEmpty
	}
	if !json.Valid(c.Content) {
		return ErrInvalidCardContent
	}
	return nil
}

// DueCard pairs a card with the review state that made it due. It is the
// unit a review session iterates over.
type DueCard struct {
	Card  Card        `json:"card"`
	State ReviewState `json:"review_state"`
}
