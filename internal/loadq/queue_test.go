package loadq

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	gate     chan struct{}
	fail     map[string]bool
	acquired map[string]int
	released map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		fail:     make(map[string]bool),
		acquired: make(map[string]int),
		released: make(map[string]int),
	}
}

func (s *fakeSource) Acquire(ctx context.Context, key string) (string, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[key] {
		return "", errors.New("unavailable")
	}
	s.acquired[key]++
	return "res:" + key, nil
}

func (s *fakeSource) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released[key]++
}

func TestQueue_ResultsOnlyAfterDrain(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	q := New[string, int](src)
	defer q.Close()

	require.True(t, q.Issue("a", 1))
	require.True(t, q.Issue("b", 2))

	assert.Empty(t, q.Drain(), "nothing completes while the gate is shut")
	assert.Equal(t, 2, q.InFlight())

	close(src.gate)
	q.Wait()

	results := q.Drain()
	require.Len(t, results, 2)
	tags := map[int]string{}
	for _, r := range results {
		require.NoError(t, r.Err)
		tags[r.Tag] = r.Resource
	}
	assert.Equal(t, map[int]string{1: "res:a", 2: "res:b"}, tags)
	assert.Equal(t, 0, q.InFlight())
	assert.Empty(t, q.Drain())
}

func TestQueue_ReportsErrors(t *testing.T) {
	src := newFakeSource()
	src.fail["bad"] = true
	q := New[string, string](src)
	defer q.Close()

	q.Issue("bad", "billboard-7")
	q.Wait()

	results := q.Drain()
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, "billboard-7", results[0].Tag)
}

func TestQueue_CloseReleasesUndelivered(t *testing.T) {
	src := newFakeSource()
	q := New[string, int](src)

	q.Issue("a", 1)
	q.Issue("b", 2)
	q.Wait()

	q.Close()

	assert.Equal(t, 1, src.released["a"])
	assert.Equal(t, 1, src.released["b"])
	assert.False(t, q.Issue("c", 3))
}

func TestQueue_CloseCancelsStalledLoads(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{}) // never opened
	q := New[string, int](src)

	q.Issue("stalled", 1)
	q.Close()

	assert.Equal(t, 0, q.InFlight())
	assert.Zero(t, src.acquired["stalled"])
	assert.Zero(t, src.released["stalled"])
}
