package auth

import (
	"context"
	"time"
)

// JWTService issues and validates bearer tokens for API clients.
type JWTService interface {
	// GenerateToken creates a signed access token for subject, typically a
	// client or deployment name.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken checks the signature and time claims of tokenString and
	// returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated contents of an access token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
