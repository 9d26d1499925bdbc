// Package cache stores rendered list pages so repeated reads skip the store.
// Pages are grouped by namespace (one per entity); invalidating a namespace
// bumps its generation so every page cached under the old generation is
// unreachable and ages out by TTL.
//
// A reader captures the generation in Get and hands it back to Set. Set is a
// no-op once the namespace has moved on, so a page read from the store before
// a mutation committed is never published after that mutation's invalidation.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryEntries bounds the in-process cache when no size is given.
const DefaultMemoryEntries = 1024

// Generation is the namespace version a page was looked up under.
type Generation uint64

// PageCache is implemented by RedisCache and MemoryCache.
type PageCache interface {
	// Get decodes the cached value into dst and reports whether it was found,
	// together with the generation to pass to Set on a miss.
	Get(ctx context.Context, namespace, key string, dst any) (Generation, bool, error)
	// Set stores v unless the namespace was invalidated after gen was read.
	Set(ctx context.Context, namespace, key string, gen Generation, v any) error
	Invalidate(ctx context.Context, namespace string) error
}

// MemoryCache is an in-process PageCache used when Redis is not configured.
// Entries are evicted least-recently-used beyond the size bound and swept in
// the background once their TTL passes.
type MemoryCache struct {
	mu          sync.Mutex
	generations map[string]Generation
	pages       *expirable.LRU[string, []byte]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	return &MemoryCache{
		generations: make(map[string]Generation),
		pages:       expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (c *MemoryCache) generation(namespace string) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[namespace]
}

func (c *MemoryCache) Get(_ context.Context, namespace, key string, dst any) (Generation, bool, error) {
	gen := c.generation(namespace)
	data, ok := c.pages.Get(versionedKey(namespace, uint64(gen), key))
	if !ok {
		return gen, false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return gen, false, err
	}
	return gen, true, nil
}

func (c *MemoryCache) Set(_ context.Context, namespace, key string, gen Generation, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[namespace] != gen {
		return nil
	}
	c.pages.Add(versionedKey(namespace, uint64(gen), key), data)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, namespace string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := versionedKey(namespace, uint64(c.generations[namespace]), "")
	c.generations[namespace]++
	for _, k := range c.pages.Keys() {
		if strings.HasPrefix(k, old) {
			c.pages.Remove(k)
		}
	}
	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.pages.Len()
}
