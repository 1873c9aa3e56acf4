package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brickworks-erp/brickworks/internal/shared"
	_ "github.com/brickworks-erp/brickworks/internal/testing/guard"
)

type memoryUserRepo struct {
	users map[string]*User
}

func (m *memoryUserRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (m *memoryUserRepo) FindByID(_ context.Context, id int64) (*User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func newAuthFixture(t *testing.T) (*Handler, *shared.TokenManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := shared.NewTokenManager(client, "test-secret", time.Hour)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &memoryUserRepo{users: map[string]*User{
		"owner@brickworks.test": {
			ID:           1,
			Email:        "owner@brickworks.test",
			Name:         "Owner",
			PasswordHash: string(hash),
			IsActive:     true,
		},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, NewService(repo), tokens)
	return handler, tokens
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	handler, tokens := newAuthFixture(t)

	body := `{"email":"owner@brickworks.test","password":"password123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, int64(1), resp.User.ID)

	principal, err := tokens.Verify(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, int64(1), principal.UserID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	handler, _ := newAuthFixture(t)

	body := `{"email":"owner@brickworks.test","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyWithoutPrincipalAnswers401(t *testing.T) {
	handler, _ := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify", nil)
	rec := httptest.NewRecorder()
	handler.verify(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	handler, tokens := newAuthFixture(t)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, 1, "owner@brickworks.test")
	require.NoError(t, err)
	principal, err := tokens.Verify(ctx, token)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	rec := httptest.NewRecorder()
	handler.logout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err = tokens.Verify(ctx, token)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}
