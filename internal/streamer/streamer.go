package streamer

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/udisondev/corridor/internal/asset"
	"github.com/udisondev/corridor/internal/loadq"
)

// Stats is a snapshot of streamer counters.
type Stats struct {
	Tiles     int
	Target    int
	Required  int
	LODCounts [lodCount]int

	Ticks          uint64
	Created        uint64
	Recycled       uint64
	Removed        uint64
	Overflows      uint64 // tiles created above the target pool to avoid a gap
	Uncovered      uint64 // required positions left without a tile at the hard cap
	PeriodicTrims  uint64
	EmergencyTrims uint64
	LODChanges     uint64
	DetailLoads    uint64
	DetailFailures uint64
	StaleDetails   uint64
}

// detailTag identifies the tile position a detail load was issued for.
type detailTag struct {
	tile       *Tile
	generation uint64
}

// Streamer keeps a pool of road tiles covering a window around the viewer.
//
// Each Tick computes the window for the current speed, fills every missing
// grid position (recycling tiles outside the window first, then growing the
// pool), assigns LOD by distance, and periodically trims far tiles. The pool
// never exceeds HardPoolCap; below it, coverage wins over the target size.
//
// Like the billboard manager, Streamer is driven from one goroutine. Detail
// textures load off-tick and are applied on a later Tick.
type Streamer struct {
	cfg     Config
	builder TileBuilder
	cache   loadq.Acquirer[*asset.Texture]
	queue   *loadq.Queue[*asset.Texture, detailTag]

	tiles   []*Tile
	byIndex map[int]*Tile
	nextID  int

	z, speed float64
	lo, hi   int
	target   int
	disposed bool

	// scratch
	missing []int
	free    []*Tile

	ticks          uint64
	created        uint64
	recycled       uint64
	removed        uint64
	overflows      uint64
	uncovered      uint64
	periodicTrims  uint64
	emergencyTrims uint64
	lodChanges     uint64
	detailLoads    uint64
	detailFailures uint64
	staleDetails   uint64
}

// New creates a streamer. cache may be nil, in which case tiles get no
// detail textures.
func New(cfg Config, builder TileBuilder, cache loadq.Acquirer[*asset.Texture]) (*Streamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if builder == nil {
		return nil, fmt.Errorf("%w: builder is required", ErrInvalidConfig)
	}
	s := &Streamer{
		cfg:     cfg,
		builder: builder,
		cache:   cache,
		byIndex: make(map[int]*Tile, cfg.HardPoolCap),
	}
	if cache != nil {
		s.queue = loadq.New[*asset.Texture, detailTag](cache)
	}
	return s, nil
}

// Config returns the active configuration.
func (s *Streamer) Config() Config { return s.cfg }

// SetPoolLimits changes the pool bounds at runtime. If the pool is now above
// hardCap the next Tick trims it.
func (s *Streamer) SetPoolLimits(minPool, maxPool, hardCap int) error {
	cfg := s.cfg
	cfg.MinPool, cfg.MaxPool, cfg.HardPoolCap = minPool, maxPool, hardCap
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	slog.Info("streamer pool limits changed", "min", minPool, "max", maxPool, "hard_cap", hardCap)
	return nil
}

// Tick updates the pool for a viewer at progress z moving at speed.
func (s *Streamer) Tick(z, speed float64) {
	if s.disposed {
		return
	}
	s.ticks++
	s.z, s.speed = z, speed
	s.applyDetails()

	s.target = s.cfg.TargetPool(speed)
	s.lo, s.hi = s.cfg.gridRange(z, speed)

	if len(s.tiles) > s.cfg.HardPoolCap {
		s.emergencyTrims++
		n := s.trim(s.cfg.HardPoolCap, 0, true)
		slog.Warn("tile pool above hard cap, pruned", "removed", n, "hard_cap", s.cfg.HardPoolCap)
	}

	s.cover()
	s.assignLOD()

	if s.ticks%uint64(s.cfg.CleanupIntervalTicks) == 0 && len(s.tiles) > s.target {
		ahead, behind := s.cfg.Window(speed)
		if n := s.trim(s.target, s.cfg.CleanupDistanceFactor*(ahead+behind), false); n > 0 {
			s.periodicTrims++
			slog.Debug("tile pool trimmed", "removed", n, "tiles", len(s.tiles), "target", s.target)
		}
	}
}

func (s *Streamer) required(k int) bool {
	return k >= s.lo && k <= s.hi
}

// cover fills every missing grid position, nearest first.
func (s *Streamer) cover() {
	s.missing = s.missing[:0]
	for k := s.lo; k <= s.hi; k++ {
		if _, ok := s.byIndex[k]; !ok {
			s.missing = append(s.missing, k)
		}
	}
	if len(s.missing) == 0 {
		return
	}
	slices.SortStableFunc(s.missing, func(a, b int) int {
		return cmp.Compare(s.cfg.tileDistance(a, s.z), s.cfg.tileDistance(b, s.z))
	})

	// recyclable tiles, farthest last so they pop first
	s.free = s.free[:0]
	for _, t := range s.tiles {
		if !s.required(t.index) {
			t.distance = s.cfg.tileDistance(t.index, s.z)
			s.free = append(s.free, t)
		}
	}
	slices.SortFunc(s.free, func(a, b *Tile) int {
		return cmp.Compare(a.distance, b.distance)
	})

	for _, k := range s.missing {
		if _, ok := s.byIndex[k]; ok {
			continue
		}

		if n := len(s.free); n > 0 {
			t := s.free[n-1]
			s.free = s.free[:n-1]
			s.recycle(t, k)
			continue
		}

		if len(s.tiles) < s.target {
			s.create(k)
			continue
		}

		if len(s.tiles) < s.cfg.HardPoolCap {
			s.overflows++
			t := s.create(k)
			slog.Warn("coverage gap: overflow tile created",
				"position", t.position,
				"tiles", len(s.tiles),
				"target", s.target)
			continue
		}

		s.uncovered++
		if victim := s.farthestRequired(k); victim != nil {
			slog.Warn("coverage gap: pool at hard cap, recycling required tile",
				"from", victim.position,
				"to", float64(k)*s.cfg.TileLength,
				"hard_cap", s.cfg.HardPoolCap)
			s.recycle(victim, k)
			continue
		}
		slog.Warn("coverage gap: pool at hard cap, position left uncovered",
			"position", float64(k)*s.cfg.TileLength,
			"hard_cap", s.cfg.HardPoolCap)
	}
}

// farthestRequired returns the required tile farthest from the viewer, if it
// is farther than grid position k.
func (s *Streamer) farthestRequired(k int) *Tile {
	limit := s.cfg.tileDistance(k, s.z)
	var victim *Tile
	best := limit
	for _, t := range s.tiles {
		if d := s.cfg.tileDistance(t.index, s.z); d > best {
			victim, best = t, d
		}
	}
	return victim
}

func (s *Streamer) create(k int) *Tile {
	t := &Tile{id: s.nextID, lod: LODMinimal}
	s.nextID++
	s.place(t, k)

	plan := s.cfg.PlanDecor(k)
	t.content = s.builder.Build(t, plan)
	s.applyLOD(t, s.cfg.LODFor(s.cfg.tileDistance(k, s.z), s.speed), true)
	s.requestDetails(t, plan)

	s.tiles = append(s.tiles, t)
	s.created++
	return t
}

// recycle moves t to grid position k. Shared templates are left alone; the
// builder replaces only position-dependent content.
func (s *Streamer) recycle(t *Tile, k int) {
	if s.byIndex[t.index] == t {
		delete(s.byIndex, t.index)
	}
	s.releaseDetails(t)
	s.place(t, k)
	t.recycles++

	plan := s.cfg.PlanDecor(k)
	s.builder.Rebuild(t, plan)
	s.applyLOD(t, s.cfg.LODFor(s.cfg.tileDistance(k, s.z), s.speed), true)
	s.requestDetails(t, plan)
	s.recycled++
}

func (s *Streamer) place(t *Tile, k int) {
	t.index = k
	t.position = float64(k) * s.cfg.TileLength
	t.distance = s.cfg.tileDistance(k, s.z)
	t.generation++
	s.byIndex[k] = t
}

func (s *Streamer) assignLOD() {
	for _, t := range s.tiles {
		t.distance = s.cfg.tileDistance(t.index, s.z)
		s.applyLOD(t, s.cfg.LODFor(t.distance, s.speed), false)
	}
}

// applyLOD toggles sub-group visibility. Geometry is never rebuilt for a
// level change.
func (s *Streamer) applyLOD(t *Tile, level LOD, force bool) {
	if !force && level == t.lod {
		return
	}
	if level != t.lod {
		s.lodChanges++
	}
	t.lod = level
	for _, sub := range []string{SubSurface, SubMarkings, SubProps, SubDetail} {
		t.content.SetSubVisible(sub, level.shows(sub))
	}
}

func (s *Streamer) requestDetails(t *Tile, plan DecorPlan) {
	if s.queue == nil {
		return
	}
	for _, key := range plan.Details {
		if s.queue.Issue(key, detailTag{tile: t, generation: t.generation}) {
			t.pending++
			s.detailLoads++
		}
	}
}

// applyDetails attaches finished detail textures. Results for a tile that
// moved or was removed since the load was issued are released.
func (s *Streamer) applyDetails() {
	if s.queue == nil {
		return
	}
	for _, r := range s.queue.Drain() {
		t := r.Tag.tile
		current := !t.removed && t.generation == r.Tag.generation
		if current {
			t.pending--
		}

		if r.Err != nil {
			s.detailFailures++
			slog.Warn("tile detail texture failed", "tile", t.id, "texture", r.Key, "error", r.Err)
			continue
		}
		if !current {
			s.staleDetails++
			s.cache.Release(r.Key)
			continue
		}

		t.details = append(t.details, r.Key)
		s.builder.AttachDetail(t, r.Resource)
		t.content.SetSubVisible(SubDetail, t.lod.shows(SubDetail))
	}
}

func (s *Streamer) releaseDetails(t *Tile) {
	for _, key := range t.details {
		s.cache.Release(key)
	}
	t.details = t.details[:0]
	t.pending = 0
}

// remove drops t from the pool. Callers rebuild s.tiles.
func (s *Streamer) remove(t *Tile) {
	if s.byIndex[t.index] == t {
		delete(s.byIndex, t.index)
	}
	s.releaseDetails(t)
	s.builder.Teardown(t)
	t.content = nil
	t.removed = true
	s.removed++
}

// Wait blocks until every issued detail load has completed. Results are
// applied on the next Tick.
func (s *Streamer) Wait() {
	if s.queue != nil {
		s.queue.Wait()
	}
}

// Tiles returns the pool ordered by position.
func (s *Streamer) Tiles() []*Tile {
	out := slices.Clone(s.tiles)
	slices.SortFunc(out, func(a, b *Tile) int { return cmp.Compare(a.index, b.index) })
	return out
}

// TileAt returns the tile covering progress coordinate z.
func (s *Streamer) TileAt(z float64) (*Tile, bool) {
	t, ok := s.byIndex[int(math.Floor(z/s.cfg.TileLength))]
	return t, ok
}

// Len returns the pool size.
func (s *Streamer) Len() int { return len(s.tiles) }

// Stats returns current counters.
func (s *Streamer) Stats() Stats {
	st := Stats{
		Tiles:          len(s.tiles),
		Target:         s.target,
		Ticks:          s.ticks,
		Created:        s.created,
		Recycled:       s.recycled,
		Removed:        s.removed,
		Overflows:      s.overflows,
		Uncovered:      s.uncovered,
		PeriodicTrims:  s.periodicTrims,
		EmergencyTrims: s.emergencyTrims,
		LODChanges:     s.lodChanges,
		DetailLoads:    s.detailLoads,
		DetailFailures: s.detailFailures,
		StaleDetails:   s.staleDetails,
	}
	if s.ticks > 0 {
		st.Required = s.hi - s.lo + 1
	}
	for _, t := range s.tiles {
		st.LODCounts[t.lod]++
	}
	return st
}

// Dispose cancels detail loads, tears down every tile and releases every
// detail texture. Shared templates stay with their registry.
func (s *Streamer) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	if s.queue != nil {
		s.queue.Close()
	}
	for _, t := range s.tiles {
		s.remove(t)
	}
	s.tiles = nil
	slog.Debug("streamer disposed", "removed", s.removed)
}
