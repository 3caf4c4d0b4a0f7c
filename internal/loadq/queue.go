// Package loadq issues resource acquires without blocking the tick loop.
//
// Issue starts an acquire on its own goroutine; the result is parked until the
// owner calls Drain on a later tick. A result is therefore never observed in
// the tick that issued it.
package loadq

import (
	"context"
	"log/slog"
	"sync"
)

// Acquirer is the reference-counting side of a resource cache.
type Acquirer[T any] interface {
	Acquire(ctx context.Context, key string) (T, error)
	Release(key string)
}

// Result is a completed acquire. Tag is whatever the issuer attached to
// recognise the request (entity pointer, tile generation, ...).
type Result[T, Tag any] struct {
	Key      string
	Tag      Tag
	Resource T
	Err      error
}

// Queue tracks outstanding acquires for one owner.
type Queue[T, Tag any] struct {
	src    Acquirer[T]
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	done     []Result[T, Tag]
	inFlight int
	closed   bool

	wg sync.WaitGroup
}

// New creates a queue backed by src.
func New[T, Tag any](src Acquirer[T]) *Queue[T, Tag] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue[T, Tag]{
		src:    src,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Issue starts acquiring key. Returns false if the queue is closed.
func (q *Queue[T, Tag]) Issue(key string, tag Tag) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.inFlight++
	q.wg.Add(1)
	q.mu.Unlock()

	go q.run(key, tag)
	return true
}

func (q *Queue[T, Tag]) run(key string, tag Tag) {
	defer q.wg.Done()

	res, err := q.src.Acquire(q.ctx, key)

	q.mu.Lock()
	q.inFlight--
	if q.closed {
		q.mu.Unlock()
		if err == nil {
			q.src.Release(key)
		}
		return
	}
	q.done = append(q.done, Result[T, Tag]{Key: key, Tag: tag, Resource: res, Err: err})
	q.mu.Unlock()
}

// Drain returns every result completed since the previous Drain, in
// completion order. It never blocks on outstanding loads.
func (q *Queue[T, Tag]) Drain() []Result[T, Tag] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.done
	q.done = nil
	return out
}

// InFlight returns the number of acquires that have not completed yet.
func (q *Queue[T, Tag]) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Wait blocks until every issued acquire has completed. Results still have
// to be collected with Drain. Call it from the goroutine that issues loads.
func (q *Queue[T, Tag]) Wait() {
	q.wg.Wait()
}

// Close cancels outstanding acquires, waits for them, and releases every
// successful result that was never drained.
func (q *Queue[T, Tag]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	undelivered := q.Drain()
	released := 0
	for _, r := range undelivered {
		if r.Err == nil {
			q.src.Release(r.Key)
			released++
		}
	}
	if released > 0 {
		slog.Debug("load queue closed with undelivered results", "released", released)
	}
}
