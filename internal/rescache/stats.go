package rescache

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64 // Acquire served from a resident entry
	Misses    uint64 // Acquire that started a load
	Coalesced uint64 // Acquire that joined an in-flight load
	Loads     uint64 // successful loads
	Errors    uint64 // failed loads
	Evictions uint64 // entries removed by LRU eviction

	InvalidReleases uint64 // Release on a key with no references
	OverBudget      uint64 // inserts that left the cache above budget
	Abandoned       uint64 // loads discarded because every waiter gave up

	Entries   int
	InFlight  int
	BytesUsed int64
	Capacity  int64
}

// HitRatio returns hits / (hits + misses + coalesced), or 0 without traffic.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses + s.Coalesced
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// OverCapacity reports whether the soft budget is currently exceeded.
func (s Stats) OverCapacity() bool {
	return s.BytesUsed > s.Capacity
}
