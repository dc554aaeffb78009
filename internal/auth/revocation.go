package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker records tokens that were logged out before they expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RevocationList keeps revoked token ids in Redis until the token would have
// expired anyway.
type RevocationList struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRevocationList constructs a RevocationList.
func NewRevocationList(client *redis.Client, prefix string) *RevocationList {
	if prefix == "" {
		prefix = "portal:revoked:"
	}
	return &RevocationList{client: client, prefix: prefix, now: time.Now}
}

// Revoke marks tokenID as unusable until the given time.
func (l *RevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.prefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked.
func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("auth: check revocation: %w", err)
	}
	return n > 0, nil
}
