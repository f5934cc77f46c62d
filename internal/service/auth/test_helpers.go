package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/config"
)

// DefaultJWTConfig returns a configuration for JWT authentication suitable
// for tests and local development.
func DefaultJWTConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            "test-jwt-secret-that-is-32-chars-long",
		TokenLifetimeMinutes: 60,
	}
}

// NewTestJWTService creates a JWT service with an injected clock.
func NewTestJWTService(secret string, lifetime time.Duration, now func() time.Time) JWTService {
	return newHMACJWTService(secret, lifetime, now)
}

// MockJWTService is a function-field mock of JWTService.
type MockJWTService struct {
	GenerateTokenFunc func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateTokenFunc func(ctx context.Context, tokenString string) (*Claims, error)
}

var _ JWTService = (*MockJWTService)(nil)

// GenerateToken calls GenerateTokenFunc, or returns "mock-jwt-token".
func (m *MockJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.GenerateTokenFunc != nil {
		return m.GenerateTokenFunc(ctx, userID)
	}
	return "mock-jwt-token", nil
}

// ValidateToken calls ValidateTokenFunc, or rejects every token.
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, tokenString)
	}
	return nil, ErrInvalidToken
}
