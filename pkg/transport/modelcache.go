package transport

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
)

// DefaultModelCacheTTL is how long a cached model listing stays fresh
// when no TTL is configured.
const DefaultModelCacheTTL = 5 * time.Minute

// ModelCache wraps a ModelLister with a TTL cache. Model catalogs change
// rarely, so the upstream is consulted at most once per TTL window, and
// concurrent cache misses share a single upstream call.
//
// A failed refresh does not evict a previously cached listing: the stale
// list is served until a refresh succeeds, so a transient upstream outage
// does not blank the model catalog.
type ModelCache struct {
	upstream ModelLister
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	models    []api.Model
	fetchedAt time.Time
	inflight  chan struct{}
}

// NewModelCache creates a cache around upstream. A non-positive ttl falls
// back to DefaultModelCacheTTL.
func NewModelCache(upstream ModelLister, ttl time.Duration) *ModelCache {
	if ttl <= 0 {
		ttl = DefaultModelCacheTTL
	}
	return &ModelCache{
		upstream: upstream,
		ttl:      ttl,
		now:      time.Now,
	}
}

// ListModels returns the cached listing when fresh, otherwise refreshes
// from the upstream. Callers racing on a cold cache wait for the single
// refresh in flight rather than issuing duplicate upstream requests.
func (c *ModelCache) ListModels(ctx context.Context) ([]api.Model, error) {
	for {
		c.mu.Lock()
		if c.models != nil && c.now().Sub(c.fetchedAt) < c.ttl {
			models := c.models
			c.mu.Unlock()
			return models, nil
		}
		if c.inflight != nil {
			wait := c.inflight
			stale := c.models
			c.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				if stale != nil {
					return stale, nil
				}
				return nil, api.NewServerError("model listing cancelled: " + ctx.Err().Error())
			}
		}
		done := make(chan struct{})
		c.inflight = done
		stale := c.models
		c.mu.Unlock()

		models, err := c.upstream.ListModels(ctx)

		c.mu.Lock()
		c.inflight = nil
		if err == nil {
			c.models = models
			c.fetchedAt = c.now()
		}
		c.mu.Unlock()
		close(done)

		if err != nil {
			if stale != nil {
				return stale, nil
			}
			return nil, err
		}
		return models, nil
	}
}

// Invalidate drops the cached listing so the next call refreshes.
func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = nil
	c.fetchedAt = time.Time{}
}
