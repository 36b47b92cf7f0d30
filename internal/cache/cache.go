// Package cache keeps resolved token claims so repeated requests with the
// same bearer token skip the identity provider round trip.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/everest/authsvc/internal/idp"
)

const keyPrefix = "authsvc:claims:"

// ClaimsCache stores claims keyed by access token. Implementations never
// fail the caller: a backend error behaves like a miss.
type ClaimsCache interface {
	Get(ctx context.Context, accessToken string) (*idp.Claims, bool)
	Set(ctx context.Context, accessToken string, claims *idp.Claims, ttl time.Duration)
	Delete(ctx context.Context, accessToken string)
}

// RedisCache implements ClaimsCache with go-redis.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

type entry struct {
	Subject       string `json:"sub"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	ExpiresAt     int64  `json:"exp,omitempty"`
}

// key hashes the token so raw bearer tokens never land in redis.
func key(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns cached claims for accessToken.
func (c *RedisCache) Get(ctx context.Context, accessToken string) (*idp.Claims, bool) {
	raw, err := c.rdb.Get(ctx, key(accessToken)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("claims cache read failed", "error", err)
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		slog.Warn("claims cache entry corrupt", "error", err)
		return nil, false
	}

	claims := &idp.Claims{
		Subject:       e.Subject,
		Username:      e.Username,
		Email:         e.Email,
		EmailVerified: e.EmailVerified,
	}
	if e.ExpiresAt > 0 {
		claims.ExpiresAt = time.Unix(e.ExpiresAt, 0)
		if !time.Now().Before(claims.ExpiresAt) {
			return nil, false
		}
	}
	return claims, true
}

// Set stores claims for at most ttl, and never past the token's own expiry.
func (c *RedisCache) Set(ctx context.Context, accessToken string, claims *idp.Claims, ttl time.Duration) {
	ttl = EffectiveTTL(claims, ttl, time.Now())
	if ttl <= 0 {
		return
	}

	e := entry{
		Subject:       claims.Subject,
		Username:      claims.Username,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}
	if !claims.ExpiresAt.IsZero() {
		e.ExpiresAt = claims.ExpiresAt.Unix()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, key(accessToken), data, ttl).Err(); err != nil {
		slog.Warn("claims cache write failed", "error", err)
	}
}

// Delete drops the entry for accessToken.
func (c *RedisCache) Delete(ctx context.Context, accessToken string) {
	if err := c.rdb.Del(ctx, key(accessToken)).Err(); err != nil {
		slog.Warn("claims cache delete failed", "error", err)
	}
}

// EffectiveTTL caps ttl at the time left before the claims expire.
func EffectiveTTL(claims *idp.Claims, ttl time.Duration, now time.Time) time.Duration {
	if claims == nil || claims.ExpiresAt.IsZero() {
		return ttl
	}
	if left := claims.ExpiresAt.Sub(now); left < ttl {
		return left
	}
	return ttl
}

// Noop is used when no redis is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (*idp.Claims, bool) { return nil, false }

func (Noop) Set(context.Context, string, *idp.Claims, time.Duration) {}

func (Noop) Delete(context.Context, string) {}
