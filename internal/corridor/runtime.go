package corridor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/udisondev/corridor/internal/billboard"
	"github.com/udisondev/corridor/internal/rescache"
	"github.com/udisondev/corridor/internal/streamer"
)

// Recorder receives one TickRecord per Step.
type Recorder interface {
	Write(v any) error
}

// TickRecord is a per-tick snapshot.
type TickRecord struct {
	Tick      uint64  `json:"tick"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Z         float64 `json:"z"`
	Speed     float64 `json:"speed"`

	Tiles      int    `json:"tiles"`
	TargetPool int    `json:"target_pool"`
	Overflows  uint64 `json:"overflows"`
	Uncovered  uint64 `json:"uncovered"`

	Loading int `json:"loading"`
	Loaded  int `json:"loaded"`
	Culled  int `json:"culled"`
	Errored int `json:"errored"`

	CacheEntries int   `json:"cache_entries"`
	CacheBytes   int64 `json:"cache_bytes"`
	OverBudget   bool  `json:"over_budget"`
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRecorder writes a TickRecord every step.
func WithRecorder(r Recorder) Option {
	return func(rt *Runtime) { rt.recorder = r }
}

// WithCacheStats includes cache statistics in tick records and summaries.
func WithCacheStats(fn func() rescache.Stats) Option {
	return func(rt *Runtime) { rt.cacheStats = fn }
}

// Runtime ticks the viewer, the tile streamer and the billboard manager in
// one goroutine. Components are owned by the caller; Close disposes them.
type Runtime struct {
	viewer     *Viewer
	streamer   *streamer.Streamer
	billboards *billboard.Manager

	recorder   Recorder
	cacheStats func() rescache.Stats

	ticks   uint64
	elapsed time.Duration

	lastMu sync.Mutex
	last   TickRecord
}

// NewRuntime wires the components together.
func NewRuntime(v *Viewer, s *streamer.Streamer, m *billboard.Manager, opts ...Option) *Runtime {
	rt := &Runtime{viewer: v, streamer: s, billboards: m}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Viewer returns the driven viewer.
func (rt *Runtime) Viewer() *Viewer { return rt.viewer }

// Ticks returns the number of completed steps.
func (rt *Runtime) Ticks() uint64 { return rt.ticks }

// Step advances the simulation by dt.
func (rt *Runtime) Step(dt time.Duration) TickRecord {
	rt.ticks++
	rt.elapsed += dt
	rt.viewer.Advance(dt)

	rt.streamer.Tick(rt.viewer.Z(), rt.viewer.Speed)
	rt.billboards.Tick(rt.viewer.Position, dt)

	rec := rt.record()
	rt.lastMu.Lock()
	rt.last = rec
	rt.lastMu.Unlock()

	if rt.recorder != nil {
		if err := rt.recorder.Write(rec); err != nil {
			slog.Warn("trace disabled after write error", "error", err)
			rt.recorder = nil
		}
	}
	return rec
}

func (rt *Runtime) record() TickRecord {
	ss := rt.streamer.Stats()
	bs := rt.billboards.Stats()
	rec := TickRecord{
		Tick:       rt.ticks,
		ElapsedMS:  rt.elapsed.Milliseconds(),
		Z:          rt.viewer.Z(),
		Speed:      rt.viewer.Speed,
		Tiles:      ss.Tiles,
		TargetPool: ss.Target,
		Overflows:  ss.Overflows,
		Uncovered:  ss.Uncovered,
		Loading:    bs.Loading,
		Loaded:     bs.Loaded,
		Culled:     bs.Culled,
		Errored:    bs.Errored,
	}
	if rt.cacheStats != nil {
		cs := rt.cacheStats()
		rec.CacheEntries = cs.Entries
		rec.CacheBytes = cs.BytesUsed
		rec.OverBudget = cs.OverCapacity()
	}
	return rec
}

// Run steps the runtime every interval until ctx is cancelled. Each step
// advances the simulation by exactly interval.
func (rt *Runtime) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("corridor runtime started", "interval", interval, "z", rt.viewer.Z())

	for {
		select {
		case <-ctx.Done():
			slog.Info("corridor runtime stopping", "ticks", rt.ticks, "z", rt.viewer.Z())
			return ctx.Err()

		case <-ticker.C:
			rt.Step(interval)
		}
	}
}

// Last returns the record of the latest step. Safe to call from any goroutine.
func (rt *Runtime) Last() TickRecord {
	rt.lastMu.Lock()
	defer rt.lastMu.Unlock()
	return rt.last
}

// LogSummary writes the end-of-run counters.
func (rt *Runtime) LogSummary() {
	ss := rt.streamer.Stats()
	bs := rt.billboards.Stats()

	slog.Info("streamer summary",
		"ticks", ss.Ticks,
		"tiles", ss.Tiles,
		"created", ss.Created,
		"recycled", ss.Recycled,
		"removed", ss.Removed,
		"overflows", ss.Overflows,
		"uncovered", ss.Uncovered)

	slog.Info("billboard summary",
		"entities", bs.Entities,
		"loaded", bs.Loaded,
		"culled", bs.Culled,
		"errored", bs.Errored,
		"loads", bs.LoadsIssued,
		"failures", bs.LoadFailures,
		"unloads", bs.Unloads)

	if rt.cacheStats != nil {
		cs := rt.cacheStats()
		slog.Info("cache summary",
			"entries", cs.Entries,
			"used", humanize.IBytes(uint64(max(cs.BytesUsed, 0))),
			"budget", humanize.IBytes(uint64(max(cs.Capacity, 0))),
			"hit_ratio", humanize.FormatFloat("#.##", cs.HitRatio()*100)+"%",
			"evictions", cs.Evictions,
			"over_budget_inserts", cs.OverBudget)
	}

	slog.Info("viewer summary",
		"z", humanize.FormatFloat("#,###.#", rt.viewer.Z()),
		"distance", humanize.SIWithDigits(rt.viewer.Odometer(), 1, "m"))
}

// Close disposes the streamer and the billboard manager.
func (rt *Runtime) Close() {
	rt.billboards.Dispose()
	rt.streamer.Dispose()
}
