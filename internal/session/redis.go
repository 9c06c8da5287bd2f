// Package session provides the Redis-backed revocation store consulted on
// every access-token verification. Logout denylists individual token ids;
// suspending an organization records a cutoff instant that invalidates all
// sessions issued before it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"loomos.org/internal/auth"
)

const (
	tokenKeyPrefix  = "loomos:revoked:jti:"
	cutoffKeyPrefix = "loomos:revoked:org:"
)

// RedisRevoker implements auth.Revoker over a single Redis instance.
type RedisRevoker struct {
	client *redis.Client
}

var _ auth.Revoker = (*RedisRevoker)(nil)

// NewRedisRevoker connects to the given redis:// URL and verifies the
// connection with a short ping before returning.
func NewRedisRevoker(url string) (*RedisRevoker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisRevoker{client: client}, nil
}

// NewRedisRevokerWithClient wraps an existing client; tests use this with
// miniredis.
func NewRedisRevokerWithClient(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

// Close shuts down the underlying client.
func (r *RedisRevoker) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// RevokeToken denylists a token id until the token's own expiry; after that
// the entry is garbage and Redis drops it.
func (r *RedisRevoker) RevokeToken(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return errors.New("session: token id is required")
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		// Already expired; verification rejects it on its own.
		return nil
	}
	return r.client.Set(ctx, tokenKeyPrefix+tokenID, "1", ttl).Err()
}

// TokenRevoked reports whether the token id is on the denylist.
func (r *RedisRevoker) TokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, tokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeOrganizationBefore records a revocation cutoff for the organization.
// Tokens issued before the cutoff fail verification. The key carries no TTL;
// cutoffs are rare and tiny, and reinstating an organization does not clear
// sessions minted while it was suspended.
func (r *RedisRevoker) RevokeOrganizationBefore(ctx context.Context, orgID string, cutoff time.Time) error {
	if orgID == "" {
		return errors.New("session: organization id is required")
	}
	val := strconv.FormatInt(cutoff.UnixNano(), 10)
	return r.client.Set(ctx, cutoffKeyPrefix+orgID, val, 0).Err()
}

// OrganizationCutoff returns the organization's revocation cutoff, if any.
func (r *RedisRevoker) OrganizationCutoff(ctx context.Context, orgID string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, cutoffKeyPrefix+orgID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt cutoff for %s: %w", orgID, err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}
