// Package cache implements the shared result cache: deterministic
// fingerprinting of (operation, input), redis-backed storage with TTL, and
// per-fingerprint coalescing of concurrent computations.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/common/metrics"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "analysis:result:"

// Fingerprint derives the deterministic cache/coalescing key for an
// operation and its input payload. The payload is canonicalized through a
// JSON round trip (object keys sorted) so semantically equal inputs with
// different key order fingerprint identically.
func Fingerprint(operation string, payload []byte) (string, error) {
	canonical := []byte("null")
	if len(payload) > 0 {
		var v interface{}
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("canonicalize payload: %w", err)
		}
		var err error
		canonical, err = json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("canonicalize payload: %w", err)
		}
	}

	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Cache is safe for concurrent use. Redis failures are soft: reads fall back
// to direct computation and writes are skipped, never failing the request.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   logger.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		redis: rdb,
		ttl:   ttl,
		log:   log.WithFields(map[string]interface{}{"component": "result-cache"}),
	}
}

func (c *Cache) key(fingerprint string) string {
	return keyPrefix + fingerprint
}

// TTL is the freshness bound entries are cached under. Consumers recovering
// results from elsewhere apply the same bound.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// GetOrCompute returns the cached result for fingerprint, or runs compute
// exactly once per fingerprint no matter how many callers arrive
// concurrently. A caller whose context is cancelled while waiting gets its
// context error, but the shared computation keeps running for the benefit of
// the remaining waiters and the cache.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if val, err := c.redis.Get(ctx, c.key(fingerprint)).Result(); err == nil {
		metrics.CacheHits.Inc()
		return []byte(val), true, nil
	} else if err != redis.Nil {
		cacheErr := errors.NewCacheError(err)
		c.log.Warn("cache read failed, computing directly", map[string]interface{}{
			"fingerprint": fingerprint,
			"errorCode":   string(cacheErr.Code),
			"details":     cacheErr.Details,
		})
	}
	metrics.CacheMisses.Inc()

	ch := c.group.DoChan(fingerprint, func() (interface{}, error) {
		// Detached from the triggering caller: one abandoning caller must
		// not abort the computation for coalesced waiters.
		bctx := context.WithoutCancel(ctx)

		data, err := compute(bctx)
		if err != nil {
			return nil, err
		}

		if setErr := c.redis.Set(bctx, c.key(fingerprint), data, c.ttl).Err(); setErr != nil {
			c.log.Warn("cache write failed", map[string]interface{}{
				"fingerprint": fingerprint,
				"error":       setErr.Error(),
			})
		}
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			c.log.Debug("coalesced computation shared", map[string]interface{}{
				"fingerprint": fingerprint,
			})
		}
		return res.Val.([]byte), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
