package subscription

import (
	"context"
	"sync"
	"time"
)

// Named query keys every view of subscription status reads through. The
// coordinator invalidates all of them when a mutation settles, so each view
// observes the new state on its next read.
const (
	QueryUserSubscriptions = "user-subscriptions"
	QuerySubscriptionCheck = "enhanced-subscription-check"
	QueryCreatorTiers      = "creator-membership-tiers"
	QueryTierCheck         = "tier-subscription-check"
)

// DefaultQueryKeys lists the query names invalidated after a successful
// subscribe or cancel mutation.
var DefaultQueryKeys = []string{
	QueryUserSubscriptions,
	QuerySubscriptionCheck,
	QueryCreatorTiers,
	QueryTierCheck,
}

// FetchFunc loads the current value of a named query from the store.
type FetchFunc func(ctx context.Context) (interface{}, error)

// QueryCacheStats holds cache performance statistics
type QueryCacheStats struct {
	Hits          int64
	Misses        int64
	Refreshes     int64
	Invalidations int64
	Size          int
}

type cachedQuery struct {
	fetch     FetchFunc
	value     interface{}
	valid     bool
	fetchedAt time.Time
}

// QueryCache is an explicit registry of named cached query results. It
// replaces ambient global cache state: the coordinator receives a registry
// and invalidates names on it, and readers go through Get so a stale entry
// refetches on its next read.
type QueryCache struct {
	mu            sync.Mutex
	queries       map[string]*cachedQuery
	hits          int64
	misses        int64
	refreshes     int64
	invalidations int64
}

// NewQueryCache creates an empty query cache registry.
func NewQueryCache() *QueryCache {
	return &QueryCache{
		queries: make(map[string]*cachedQuery),
	}
}

// Register binds a fetch function to a query name. Registering an existing
// name replaces the fetch function and drops the cached value.
func (c *QueryCache) Register(name string, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries[name] = &cachedQuery{fetch: fetch}
}

// Get returns the cached value for a name, fetching when the entry is stale
// or has never been loaded. Returns ErrQueryNotRegistered for unknown names.
func (c *QueryCache) Get(ctx context.Context, name string) (interface{}, error) {
	c.mu.Lock()
	q, ok := c.queries[name]
	if !ok {
		c.mu.Unlock()
		return nil, ErrQueryNotRegistered
	}
	if q.valid {
		c.hits++
		value := q.value
		c.mu.Unlock()
		return value, nil
	}
	c.misses++
	fetch := q.fetch
	c.mu.Unlock()

	// Fetch outside the lock; a network round trip must not block
	// invalidation of other queries.
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	q.value = value
	q.valid = true
	q.fetchedAt = time.Now()
	c.mu.Unlock()
	return value, nil
}

// Invalidate marks the named queries stale. Unknown names are ignored so a
// caller can always invalidate the full default set.
func (c *QueryCache) Invalidate(names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		if q, ok := c.queries[name]; ok {
			q.valid = false
			c.invalidations++
		}
	}
}

// Refresh invalidates and immediately refetches the named queries, returning
// the first fetch error. Unregistered names are skipped: a view that never
// registered has nothing to go stale.
func (c *QueryCache) Refresh(ctx context.Context, names ...string) error {
	c.Invalidate(names...)

	var firstErr error
	for _, name := range names {
		c.mu.Lock()
		_, ok := c.queries[name]
		c.mu.Unlock()
		if !ok {
			continue
		}
		c.mu.Lock()
		c.refreshes++
		c.mu.Unlock()
		if _, err := c.Get(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns cache statistics
func (c *QueryCache) Stats() QueryCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return QueryCacheStats{
		Hits:          c.hits,
		Misses:        c.misses,
		Refreshes:     c.refreshes,
		Invalidations: c.invalidations,
		Size:          len(c.queries),
	}
}
