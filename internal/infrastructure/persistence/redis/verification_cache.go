package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learnflow/learnflow-progression-core/internal/domain/certificate"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFICATION CACHE
// The public verify endpoint is unauthenticated and hot. Results are
// cached for a short TTL; revocation invalidates both the number and the
// hash key of the certificate.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultVerificationTTL is how long a verification result is cached.
const DefaultVerificationTTL = 5 * time.Minute

// VerificationCache implements certificate.VerificationCache over Redis.
type VerificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVerificationCache creates a new VerificationCache.
// A non-positive ttl falls back to DefaultVerificationTTL.
func NewVerificationCache(client *redis.Client, ttl time.Duration) *VerificationCache {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &VerificationCache{client: client, ttl: ttl}
}

// Get returns a cached verification result. The second value is false on
// a cache miss.
func (c *VerificationCache) Get(ctx context.Context, ref string) (*certificate.VerificationResult, bool, error) {
	data, err := c.client.Get(ctx, PrefixVerification+ref).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get verification: %w", err)
	}

	var result certificate.VerificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry behaves like a miss.
		return nil, false, nil
	}
	return &result, true, nil
}

// Set stores a verification result.
func (c *VerificationCache) Set(ctx context.Context, ref string, result *certificate.VerificationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis: marshal verification: %w", err)
	}
	if err := c.client.Set(ctx, PrefixVerification+ref, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set verification: %w", err)
	}
	return nil
}

// Invalidate removes cached entries for the given refs.
func (c *VerificationCache) Invalidate(ctx context.Context, refs ...string) error {
	if len(refs) == 0 {
		return nil
	}
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = PrefixVerification + ref
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate verification: %w", err)
	}
	return nil
}
