package rescache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Loader fetches a resource by key. Implementations may block; the cache
// calls Load at most once per key while a load is in flight and wanted.
type Loader[T any] interface {
	Load(ctx context.Context, key string) (T, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc[T any] func(ctx context.Context, key string) (T, error)

// Load calls f(ctx, key).
func (f LoaderFunc[T]) Load(ctx context.Context, key string) (T, error) {
	return f(ctx, key)
}

// SizeFunc estimates the memory cost of a resource. It is evaluated once,
// right after the load completes.
type SizeFunc[T any] func(T) int64

// Disposer is implemented by resources that hold memory outside the Go heap.
// The cache calls Dispose exactly once when the entry leaves the cache.
type Disposer interface {
	Dispose()
}

type entry[T any] struct {
	key      string
	resource T
	refCount int
	lastUsed uint64
	size     int64
}

// pendingLoad is shared by every caller waiting on the same key.
// waiters counts the references the entry will start with. The load is
// cancelled once waiters drops to zero.
type pendingLoad[T any] struct {
	done     chan struct{}
	cancel   context.CancelFunc
	waiters  int
	finished bool
	resource T
	err      error
}

// Cache is a reference-counted resource cache with a soft memory budget.
// Entries with refCount > 0 are never evicted. Concurrent Acquire calls for
// the same missing key share one load.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	pending map[string]*pendingLoad[T]

	loader Loader[T]
	sizeOf SizeFunc[T]
	cfg    Config

	clock uint64 // logical access clock for LRU ordering
	used  int64

	hits, misses, coalesced uint64
	loads, failures         uint64
	evictions               uint64
	invalidReleases         uint64
	overBudget              uint64
	abandoned               uint64
}

// New creates a cache. sizeOf may be nil, in which case every resource costs 0 bytes.
func New[T any](cfg Config, loader Loader[T], sizeOf SizeFunc[T]) (*Cache[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: loader is required", ErrInvalidConfig)
	}
	if sizeOf == nil {
		sizeOf = func(T) int64 { return 0 }
	}
	return &Cache[T]{
		entries: make(map[string]*entry[T], 64),
		pending: make(map[string]*pendingLoad[T]),
		loader:  loader,
		sizeOf:  sizeOf,
		cfg:     cfg,
	}, nil
}

// Acquire returns the resource for key and takes one reference on it.
// A resident entry is returned immediately. Otherwise the caller either
// joins an in-flight load or starts one and waits for it.
//
// The load runs in its own goroutine and outlives the caller that started
// it: it is cancelled only when every waiter has given up. If ctx is
// cancelled while waiting, the reference claim is withdrawn (or released,
// if the load already completed).
func (c *Cache[T]) Acquire(ctx context.Context, key string) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.refCount++
		e.lastUsed = c.tick()
		c.hits++
		res := e.resource
		c.mu.Unlock()
		return res, nil
	}

	if p, ok := c.pending[key]; ok {
		p.waiters++
		c.coalesced++
		c.mu.Unlock()
		return c.await(ctx, key, p)
	}

	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p := &pendingLoad[T]{done: make(chan struct{}), cancel: cancel, waiters: 1}
	c.pending[key] = p
	c.misses++
	c.mu.Unlock()

	go c.load(loadCtx, key, p)
	return c.await(ctx, key, p)
}

func (c *Cache[T]) load(ctx context.Context, key string, p *pendingLoad[T]) {
	defer p.cancel()

	res, err := c.loader.Load(ctx, key)
	var size int64
	if err == nil {
		size = c.sizeOf(res)
	}

	c.mu.Lock()
	if c.pending[key] == p {
		delete(c.pending, key)
	}
	p.finished = true

	if err != nil {
		cancelled := ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
		if !cancelled {
			c.failures++
		}
		p.err = &LoadError{Key: key, Err: err}
		c.mu.Unlock()
		close(p.done)

		if !cancelled {
			slog.Warn("resource load failed", "key", key, "error", err)
		}
		return
	}

	c.loads++

	if p.waiters == 0 {
		// every waiter gave up before completion
		c.abandoned++
		c.mu.Unlock()
		close(p.done)
		dispose(res)
		return
	}

	victims := c.makeRoom(size)
	c.entries[key] = &entry[T]{
		key:      key,
		resource: res,
		refCount: p.waiters,
		lastUsed: c.tick(),
		size:     size,
	}
	c.used += size
	if c.used > c.cfg.MemoryBudgetBytes {
		c.overBudget++
	}
	p.resource = res
	c.mu.Unlock()
	close(p.done)

	for _, v := range victims {
		dispose(v)
	}

	slog.Debug("resource loaded", "key", key, "size", size, "refs", p.waiters)
}

func (c *Cache[T]) await(ctx context.Context, key string, p *pendingLoad[T]) (T, error) {
	var zero T
	select {
	case <-p.done:
		if p.err != nil {
			return zero, p.err
		}
		return p.resource, nil

	case <-ctx.Done():
		c.mu.Lock()
		if !p.finished {
			p.waiters--
			if p.waiters == 0 {
				// a later Acquire starts a fresh load
				delete(c.pending, key)
				p.cancel()
			}
			c.mu.Unlock()
			return zero, ctx.Err()
		}
		loaded := p.err == nil
		c.mu.Unlock()

		if loaded {
			c.Release(key)
		}
		return zero, ctx.Err()
	}
}

// Release drops one reference on key. Releasing a key that holds no
// references is a no-op reported as a warning.
func (c *Cache[T]) Release(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.refCount == 0 {
		c.invalidReleases++
		c.mu.Unlock()
		slog.Warn("release of unreferenced resource", "key", key)
		return
	}

	e.refCount--
	e.lastUsed = c.tick()
	if e.refCount > 0 || c.cfg.RetainUnreferenced {
		c.mu.Unlock()
		return
	}

	c.remove(e)
	c.mu.Unlock()
	dispose(e.resource)
}

// EvictLRU disposes the least recently used unreferenced entry.
// Returns false if every entry is referenced.
func (c *Cache[T]) EvictLRU() bool {
	c.mu.Lock()
	victim := c.lruVictim()
	if victim == nil {
		c.mu.Unlock()
		return false
	}
	c.remove(victim)
	c.evictions++
	c.mu.Unlock()

	dispose(victim.resource)
	slog.Debug("resource evicted", "key", victim.key, "size", victim.size)
	return true
}

// Purge disposes every unreferenced entry and returns how many were removed.
func (c *Cache[T]) Purge() int {
	c.mu.Lock()
	var victims []*entry[T]
	for _, e := range c.entries {
		if e.refCount == 0 {
			victims = append(victims, e)
		}
	}
	for _, e := range victims {
		c.remove(e)
	}
	c.mu.Unlock()

	for _, e := range victims {
		dispose(e.resource)
	}
	return len(victims)
}

// Contains reports whether key is resident.
func (c *Cache[T]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// RefCount returns the reference count of key, or 0 if absent.
func (c *Cache[T]) RefCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.refCount
	}
	return 0
}

// Len returns the number of resident entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache counters.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:            c.hits,
		Misses:          c.misses,
		Coalesced:       c.coalesced,
		Loads:           c.loads,
		Errors:          c.failures,
		Evictions:       c.evictions,
		InvalidReleases: c.invalidReleases,
		OverBudget:      c.overBudget,
		Abandoned:       c.abandoned,
		Entries:         len(c.entries),
		InFlight:        len(c.pending),
		BytesUsed:       c.used,
		Capacity:        c.cfg.MemoryBudgetBytes,
	}
}

// makeRoom evicts unreferenced entries until size fits the budget or nothing
// evictable remains. Caller must hold c.mu and dispose the returned resources.
func (c *Cache[T]) makeRoom(size int64) []T {
	var victims []T
	for c.used+size > c.cfg.MemoryBudgetBytes {
		victim := c.lruVictim()
		if victim == nil {
			break
		}
		c.remove(victim)
		c.evictions++
		victims = append(victims, victim.resource)
		slog.Debug("resource evicted", "key", victim.key, "size", victim.size)
	}
	return victims
}

// lruVictim returns the unreferenced entry with the oldest access. Caller must hold c.mu.
func (c *Cache[T]) lruVictim() *entry[T] {
	var victim *entry[T]
	for _, e := range c.entries {
		if e.refCount != 0 {
			continue
		}
		if victim == nil || e.lastUsed < victim.lastUsed {
			victim = e
		}
	}
	return victim
}

// remove deletes e from the index. Caller must hold c.mu.
func (c *Cache[T]) remove(e *entry[T]) {
	delete(c.entries, e.key)
	c.used -= e.size
}

func (c *Cache[T]) tick() uint64 {
	c.clock++
	return c.clock
}

func dispose[T any](res T) {
	if d, ok := any(res).(Disposer); ok {
		d.Dispose()
	}
}
