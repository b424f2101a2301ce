package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docstream/internal/config"
)

const (
	testSecret  = "test-secret-that-is-long-enough-for-testing"
	wrongSecret = "wrong-secret-that-is-long-enough-for-testing"
)

func newTestService(t *testing.T, secret string, now time.Time) *hmacJWTService {
	t.Helper()
	svc, err := newHMACService(secret, time.Hour, func() time.Time { return now })
	require.NoError(t, err)
	return svc
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.ErrorIs(t, err, ErrWeakSecret)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, testSecret, fixed)

	token, err := svc.GenerateToken(context.Background(), "ingest-worker")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ingest-worker", claims.Subject)
	assert.Equal(t, fixed.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixed.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		at      time.Time
		wantErr error
	}{
		{
			name: "valid token",
			token: func(t *testing.T) string {
				tok, err := newTestService(t, testSecret, fixed).GenerateToken(context.Background(), "client")
				require.NoError(t, err)
				return tok
			},
			at: fixed.Add(30 * time.Minute),
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				tok, err := newTestService(t, testSecret, fixed).GenerateToken(context.Background(), "client")
				require.NoError(t, err)
				return tok
			},
			at:      fixed.Add(2 * time.Hour),
			wantErr: ErrExpiredToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, err := newTestService(t, wrongSecret, fixed).GenerateToken(context.Background(), "client")
				require.NoError(t, err)
				return tok
			},
			at:      fixed,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "malformed token",
			token:   func(*testing.T) string { return "not.a.token" },
			at:      fixed,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty token",
			token:   func(*testing.T) string { return "" },
			at:      fixed,
			wantErr: ErrMissingToken,
		},
		{
			name: "missing token type",
			token: func(t *testing.T) string {
				claims := jwt.RegisteredClaims{
					Subject:   "client",
					ExpiresAt: jwt.NewNumericDate(fixed.Add(time.Hour)),
				}
				tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return tok
			},
			at:      fixed,
			wantErr: ErrInvalidToken,
		},
		{
			name: "unexpected algorithm",
			token: func(t *testing.T) string {
				tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwtCustomClaims{TokenType: tokenTypeAccess}).
					SignedString([]byte(testSecret))
				require.NoError(t, err)
				return tok
			},
			at:      fixed,
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := newTestService(t, testSecret, tt.at)
			claims, err := svc.ValidateToken(context.Background(), tt.token(t))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "client", claims.Subject)
		})
	}
}
