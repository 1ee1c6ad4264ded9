package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
)

const DefaultTTL = time.Hour

// Artifact is generated source text held under a fingerprint key.
type Artifact struct {
	Key    string
	Source string
}

// Error wraps a store failure. It is reported, never fatal to generation.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Coordinator struct {
	store   Store
	ttl     time.Duration
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewCoordinator(store Store, ttl time.Duration, log *logger.Logger, metrics *observability.Metrics) *Coordinator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		store:   store,
		ttl:     ttl,
		log:     log.With("service", "CacheCoordinator"),
		metrics: metrics,
	}
}

func (c *Coordinator) TTL() time.Duration { return c.ttl }

// Lookup returns the artifact for key. Store failures are logged and reported
// as a miss so generation can proceed.
func (c *Coordinator) Lookup(ctx context.Context, key string) (Artifact, bool) {
	if c == nil || c.store == nil {
		return Artifact{}, false
	}
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.metrics.IncCacheLookup("error")
		c.log.Warn("Cache lookup failed; treating as miss", "error", &Error{Op: "get", Key: key, Err: err})
		return Artifact{}, false
	}
	if !ok {
		c.metrics.IncCacheLookup("miss")
		return Artifact{}, false
	}
	c.metrics.IncCacheLookup("hit")
	return Artifact{Key: key, Source: v}, true
}

// Store writes source under key and then assigns the TTL. Concurrent writers
// for the same key overwrite each other; the values are interchangeable.
func (c *Coordinator) Store(ctx context.Context, key, source string) error {
	if c == nil || c.store == nil {
		return nil
	}
	if err := c.store.Set(ctx, key, source); err != nil {
		c.metrics.IncCacheStore("error")
		return &Error{Op: "set", Key: key, Err: err}
	}
	if err := c.store.Expire(ctx, key, c.ttl); err != nil {
		c.metrics.IncCacheStore("error")
		return &Error{Op: "expire", Key: key, Err: err}
	}
	c.metrics.IncCacheStore("ok")
	c.log.Debug("Cached artifact", "key", key, "bytes", len(source), "ttl_seconds", int(c.ttl.Seconds()))
	return nil
}
