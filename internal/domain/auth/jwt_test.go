package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "stockline/internal/core/context"
	"stockline/internal/core/id"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	actorID := id.New()

	token, expiresAt, err := svc.GenerateAccessToken(actorID, []string{appctx.RoleDealer})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actorID, actor.ID)
	assert.True(t, actor.IsDealer())
	assert.False(t, actor.IsAdmin())
}

func TestJWT_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	other := NewJWTService(DefaultJWTConfig("other-secret"))
	forged, _, err := other.GenerateAccessToken(id.New(), nil)
	require.NoError(t, err)

	cfg := DefaultJWTConfig("secret")
	cfg.AccessTokenTTL = -time.Minute
	expired, _, err := NewJWTService(cfg).GenerateAccessToken(id.New(), nil)
	require.NoError(t, err)

	cfg = DefaultJWTConfig("secret")
	cfg.Issuer = "someone-else"
	foreign, _, err := NewJWTService(cfg).GenerateAccessToken(id.New(), nil)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "stockline",
			Subject:   "not-a-uuid",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":     "abc.def.ghi",
		"signature":   forged,
		"expired":     expired,
		"issuer":      foreign,
		"bad subject": badSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
