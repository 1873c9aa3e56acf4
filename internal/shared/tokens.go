package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenManager issues and verifies opaque bearer tokens backed by Redis.
// A token is "<id>.<signature>": the id keys the Redis record, the HMAC
// signature stops forged ids from generating Redis lookups.
type TokenManager struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
}

type tokenPayload struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	IssuedAt int64  `json:"issued_at"`
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *redis.Client, secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{client: client, ttl: ttl, secret: []byte(secret)}
}

// Issue creates a token for the user and stores it with the configured TTL.
func (tm *TokenManager) Issue(ctx context.Context, userID int64, email string) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(tokenPayload{UserID: userID, Email: email, IssuedAt: time.Now().Unix()})
	if err != nil {
		return "", err
	}
	if err := tm.client.Set(ctx, tm.redisKey(id), payload, tm.ttl).Err(); err != nil {
		return "", fmt.Errorf("shared: store token: %w", err)
	}
	return id + "." + tm.sign(id), nil
}

// Verify resolves a token into a Principal, sliding the TTL on success.
func (tm *TokenManager) Verify(ctx context.Context, token string) (*Principal, error) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(tm.sign(id))) {
		return nil, ErrTokenExpired
	}
	raw, err := tm.client.Get(ctx, tm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}
	var stored tokenPayload
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	_ = tm.client.Expire(ctx, tm.redisKey(id), tm.ttl).Err()
	return &Principal{UserID: stored.UserID, Email: stored.Email, TokenID: id}, nil
}

// Revoke deletes the token record; subsequent verifies fail.
func (tm *TokenManager) Revoke(ctx context.Context, tokenID string) error {
	return tm.client.Del(ctx, tm.redisKey(tokenID)).Err()
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

func (tm *TokenManager) redisKey(id string) string {
	return "brickworks:token:" + id
}

func (tm *TokenManager) sign(id string) string {
	mac := hmac.New(sha256.New, tm.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
