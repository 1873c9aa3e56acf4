package shared

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	_ "github.com/brickworks-erp/brickworks/internal/testing/guard"
)

func newTokenManager(t *testing.T, ttl time.Duration) (*TokenManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTokenManager(client, "secret", ttl), mr
}

func TestTokenRoundTrip(t *testing.T) {
	tm, _ := newTokenManager(t, time.Hour)
	ctx := context.Background()

	token, err := tm.Issue(ctx, 42, "user@brickworks.test")
	require.NoError(t, err)
	require.Contains(t, token, ".")

	principal, err := tm.Verify(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), principal.UserID)
	require.Equal(t, "user@brickworks.test", principal.Email)
}

func TestTokenRejectsForgedSignature(t *testing.T) {
	tm, _ := newTokenManager(t, time.Hour)
	ctx := context.Background()

	token, err := tm.Issue(ctx, 42, "user@brickworks.test")
	require.NoError(t, err)

	id, _, _ := strings.Cut(token, ".")
	_, err = tm.Verify(ctx, id+".forged-signature")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenExpiresWithTTL(t *testing.T) {
	tm, mr := newTokenManager(t, time.Minute)
	ctx := context.Background()

	token, err := tm.Issue(ctx, 42, "user@brickworks.test")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = tm.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	tm, _ := newTokenManager(t, time.Hour)
	ctx := context.Background()

	token, err := tm.Issue(ctx, 42, "user@brickworks.test")
	require.NoError(t, err)
	principal, err := tm.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, tm.Revoke(ctx, principal.TokenID))
	_, err = tm.Verify(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)
}
