package streamer

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/corridor/internal/asset"
	"github.com/udisondev/corridor/internal/rescache"
	"github.com/udisondev/corridor/internal/scene"
)

// scenarioConfig gives a window of [-200, 800] at rest: six grid points for
// a target pool of five.
func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.TileLength = 200
	cfg.MinPool = 1
	cfg.MaxPool = 5
	cfg.HardPoolCap = 8
	cfg.BaseAhead = 800
	cfg.AheadPerSpeed = 0
	cfg.MaxAhead = 800
	cfg.Behind = 200
	cfg.DetailTextures = nil
	return cfg
}

type harness struct {
	s        *Streamer
	graph    *scene.MemGraph
	registry *scene.Registry
}

func newHarness(t *testing.T, cfg Config, cache *asset.Cache) *harness {
	t.Helper()
	graph := scene.NewMemGraph()
	registry := scene.NewRegistry()

	var s *Streamer
	var err error
	if cache == nil {
		s, err = New(cfg, NewRoadBuilder(graph, registry, cfg.TileLength), nil)
	} else {
		s, err = New(cfg, NewRoadBuilder(graph, registry, cfg.TileLength), cache)
	}
	require.NoError(t, err)
	t.Cleanup(s.Dispose)
	return &harness{s: s, graph: graph, registry: registry}
}

func newTextureCache(t *testing.T, loader rescache.Loader[*asset.Texture]) *asset.Cache {
	t.Helper()
	cache, err := asset.NewCache(rescache.DefaultConfig(), loader)
	require.NoError(t, err)
	return cache
}

// assertCovered checks that every required grid position maps to exactly one tile.
func assertCovered(t *testing.T, s *Streamer, z, speed float64) {
	t.Helper()
	seen := make(map[int]int, s.Len())
	for _, tile := range s.Tiles() {
		seen[tile.Index()]++
	}
	for k, n := range seen {
		require.Equal(t, 1, n, "grid index %d has %d tiles", k, n)
	}
	for _, pos := range s.Config().RequiredPositions(z, speed) {
		tile, ok := s.TileAt(pos)
		require.True(t, ok, "no tile at %g (z=%g speed=%g)", pos, z, speed)
		require.InDelta(t, pos, tile.Position(), 1e-9)
	}
}

func TestConfig_Window(t *testing.T) {
	cfg := DefaultConfig()

	ahead, behind := cfg.Window(0)
	assert.InDelta(t, 800, ahead, 1e-9)
	assert.InDelta(t, 200, behind, 1e-9)

	ahead, _ = cfg.Window(50)
	assert.InDelta(t, 1800, ahead, 1e-9)

	ahead, _ = cfg.Window(500)
	assert.InDelta(t, cfg.MaxAhead, ahead, 1e-9, "capped")

	ahead, _ = cfg.Window(-30)
	assert.InDelta(t, 800, ahead, 1e-9, "reverse speed uses the resting window")
}

func TestConfig_TargetPool(t *testing.T) {
	cfg := scenarioConfig()
	assert.Equal(t, 5, cfg.TargetPool(0))

	cfg.MaxPool = 3
	assert.Equal(t, 3, cfg.TargetPool(0), "clamped to max")

	cfg = DefaultConfig()
	cfg.BaseAhead, cfg.Behind, cfg.AheadPerSpeed = 0, 0, 0
	assert.Equal(t, cfg.MinPool, cfg.TargetPool(0), "clamped to min")
}

func TestConfig_TargetPoolMatchesRequiredCount(t *testing.T) {
	cfg := DefaultConfig()
	for _, speed := range []float64{0, 10, 33, 70, 200} {
		for _, z := range []float64{0, 1, 150, 199.5, 200, 1234.5} {
			required := len(cfg.RequiredPositions(z, speed))
			assert.GreaterOrEqual(t, cfg.TargetPool(speed), required, "speed %g z %g", speed, z)
		}
	}
	assert.Equal(t, 6, cfg.TargetPool(0))

	cfg.BaseAhead = 750 // span is not a whole number of tiles
	assert.Equal(t, 6, cfg.TargetPool(0))
	assert.Len(t, cfg.RequiredPositions(100, 0), 6)
	assert.Len(t, cfg.RequiredPositions(0, 0), 5)
}

func TestConfig_RequiredPositions(t *testing.T) {
	cfg := scenarioConfig()
	assert.Equal(t, []float64{-200, 0, 200, 400, 600, 800}, cfg.RequiredPositions(0, 0))
	assert.Equal(t, []float64{-200, 0, 200, 400, 600, 800}, cfg.RequiredPositions(150, 0))
	assert.Equal(t, []float64{0, 200, 400, 600, 800, 1000}, cfg.RequiredPositions(250, 0))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tile length", func(c *Config) { c.TileLength = 0 }},
		{"zero min pool", func(c *Config) { c.MinPool = 0 }},
		{"max below min", func(c *Config) { c.MaxPool = c.MinPool - 1 }},
		{"hard cap below max", func(c *Config) { c.HardPoolCap = c.MaxPool - 1 }},
		{"zero cleanup interval", func(c *Config) { c.CleanupIntervalTicks = 0 }},
		{"negative behind", func(c *Config) { c.Behind = -1 }},
		{"max ahead below base", func(c *Config) { c.MaxAhead = c.BaseAhead - 1 }},
		{"lod order", func(c *Config) { c.LODMedium = c.LODLow }},
		{"lod scale below one", func(c *Config) { c.MaxLODScale = 0.5 }},
		{"cleanup factor below one", func(c *Config) { c.CleanupDistanceFactor = 0.9 }},
		{"empty detail texture", func(c *Config) { c.DetailTextures = []string{"a.png", ""} }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	_, err := New(DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStreamer_OverflowTileInsteadOfGap(t *testing.T) {
	h := newHarness(t, scenarioConfig(), nil)

	h.s.Tick(0, 0)

	assert.Equal(t, 6, h.s.Len())
	assertCovered(t, h.s, 0, 0)

	st := h.s.Stats()
	assert.Equal(t, 5, st.Target)
	assert.Equal(t, 6, st.Required)
	assert.Equal(t, uint64(1), st.Overflows)
	assert.Zero(t, st.Uncovered)
	assert.Equal(t, 6, h.graph.Len())
}

func TestStreamer_AccelerationNeedsNoOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetailTextures = nil
	h := newHarness(t, cfg, nil)

	const hz = 60
	z, speed := 0.0, 0.0
	for range 60 * hz {
		speed = min(speed+33.0/(60*hz), 33)
		z += speed / hz

		h.s.Tick(z, speed)

		assertCovered(t, h.s, z, speed)
		require.LessOrEqual(t, h.s.Len(), h.s.Stats().Target)
	}

	st := h.s.Stats()
	assert.Zero(t, st.Overflows)
	assert.Zero(t, st.Uncovered)
	assert.LessOrEqual(t, st.Required, st.Target)
}

func TestStreamer_RecyclesOutsideTilesFirst(t *testing.T) {
	h := newHarness(t, scenarioConfig(), nil)

	h.s.Tick(0, 0)
	h.s.Tick(1000, 0)

	assertCovered(t, h.s, 1000, 0)
	st := h.s.Stats()
	assert.Equal(t, uint64(6), st.Created, "no tiles created while moving")
	assert.Equal(t, uint64(5), st.Recycled)
	assert.Equal(t, uint64(1), st.Overflows)
	assert.Equal(t, 6, h.graph.Len())

	added, removed := h.graph.Churn()
	assert.Equal(t, uint64(6), added)
	assert.Zero(t, removed)
}

func TestStreamer_RecycleNeverDisposesShared(t *testing.T) {
	h := newHarness(t, scenarioConfig(), nil)

	for z := 0.0; z < 20000; z += 170 {
		h.s.Tick(z, 0)
	}
	require.Positive(t, h.s.Stats().Recycled)

	unexpected := func() (*scene.Geometry, *scene.Material) {
		t.Fatal("template should already exist")
		return nil, nil
	}
	names := []string{"road/surface", "road/dash", "road/detail-overlay", "prop/tree", "prop/rock"}
	for _, name := range names {
		tmpl := h.registry.Template(name, unexpected)
		assert.False(t, tmpl.Geometry.Disposed(), name)
		assert.False(t, tmpl.Material.Disposed(), name)
	}

	h.s.Dispose()
	for _, name := range names {
		assert.False(t, h.registry.Template(name, unexpected).Geometry.Disposed(), name)
	}
	assert.Zero(t, h.graph.Len())

	h.registry.Shutdown()
	assert.True(t, h.registry.Template("road/surface", unexpected).Geometry.Disposed())
}

func TestStreamer_RecycledTileRebuildsDecoration(t *testing.T) {
	h := newHarness(t, scenarioConfig(), nil)

	h.s.Tick(0, 0)
	first, ok := h.s.TileAt(0)
	require.True(t, ok)
	propsAtZero := len(first.Content().Sub(SubProps).Children())
	assert.Equal(t, len(h.s.Config().PlanDecor(0).Props), propsAtZero)

	h.s.Tick(3000, 0) // every tile is recycled
	h.s.Tick(0, 0)    // and back

	again, ok := h.s.TileAt(0)
	require.True(t, ok)
	assert.Equal(t, propsAtZero, len(again.Content().Sub(SubProps).Children()))
	assert.Positive(t, again.Recycles())
	assert.InDelta(t, 0, again.Content().Position.Z(), 1e-9)

	surface := again.Content().Sub(SubSurface).Children()
	require.Len(t, surface, 1)
	mesh := surface[0].Get().(*scene.Mesh)
	assert.InDelta(t, 100, mesh.Position.Z(), 1e-9, "surface follows the tile")
	assert.False(t, mesh.Geometry.IsOwned())
}

func TestStreamer_CoverageRandomWalk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetailTextures = nil
	cfg.CleanupIntervalTicks = 5
	h := newHarness(t, cfg, nil)

	rng := rand.New(rand.NewPCG(11, 13))
	z, speed := 0.0, 0.0
	for step := range 2000 {
		switch r := rng.IntN(100); {
		case r < 2:
			z += rng.Float64()*20000 - 5000 // teleport
		case r < 5:
			speed = 0
		default:
			speed = min(max(speed+rng.Float64()*6-2.5, 0), 80)
		}
		z += speed * 0.1

		h.s.Tick(z, speed)

		assertCovered(t, h.s, z, speed)
		require.LessOrEqual(t, h.s.Len(), cfg.HardPoolCap, "step %d", step)
	}
	assert.Zero(t, h.s.Stats().Uncovered)
}

func TestStreamer_HardCapLeavesFarthestUncovered(t *testing.T) {
	cfg := scenarioConfig()
	cfg.MaxPool = 3
	cfg.HardPoolCap = 3
	h := newHarness(t, cfg, nil)

	h.s.Tick(0, 0)

	assert.Equal(t, 3, h.s.Len())
	for _, pos := range []float64{-200, 0, 200} {
		_, ok := h.s.TileAt(pos)
		assert.True(t, ok, "nearest position %g covered", pos)
	}
	assert.Equal(t, uint64(3), h.s.Stats().Uncovered)
}

func TestStreamer_EmergencyTrimAfterLimitsLowered(t *testing.T) {
	h := newHarness(t, scenarioConfig(), nil)
	h.s.Tick(0, 0)
	require.Equal(t, 6, h.s.Len())

	require.NoError(t, h.s.SetPoolLimits(1, 3, 4))
	h.s.Tick(0, 0)

	st := h.s.Stats()
	assert.Equal(t, 4, h.s.Len())
	assert.Equal(t, uint64(1), st.EmergencyTrims)
	assert.Equal(t, uint64(2), st.Removed)
	for _, pos := range []float64{-200, 0, 200, 400} {
		_, ok := h.s.TileAt(pos)
		assert.True(t, ok, "position %g kept", pos)
	}

	assert.ErrorIs(t, h.s.SetPoolLimits(5, 3, 4), ErrInvalidConfig)
}

func TestStreamer_PeriodicTrimDropsFarTiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetailTextures = nil
	cfg.CleanupIntervalTicks = 1
	h := newHarness(t, cfg, nil)

	h.s.Tick(0, 70) // window [-200, 2200]: 13 tiles
	require.Equal(t, 13, h.s.Len())

	h.s.Tick(0, 0) // window [-200, 800]; tiles past 2*1000 go
	st := h.s.Stats()
	assert.Equal(t, 11, h.s.Len())
	assert.Equal(t, uint64(2), st.Removed)
	assert.Equal(t, uint64(1), st.PeriodicTrims)
	assertCovered(t, h.s, 0, 0)

	_, ok := h.s.TileAt(2200)
	assert.False(t, ok)
	_, ok = h.s.TileAt(1800)
	assert.True(t, ok, "non-required tile within the cleanup distance is kept")
}

func TestStreamer_LODTogglesSubGroups(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetailTextures = nil
	h := newHarness(t, cfg, nil)

	h.s.Tick(0, 0)

	near, ok := h.s.TileAt(0)
	require.True(t, ok)
	assert.Equal(t, LODFull, near.LOD())
	assert.True(t, near.Content().Sub(SubDetail).Visible())
	assert.True(t, near.Content().Sub(SubProps).Visible())

	far, ok := h.s.TileAt(800) // centre 900
	require.True(t, ok)
	assert.Equal(t, LODLow, far.LOD())
	assert.True(t, far.Content().Sub(SubSurface).Visible())
	assert.True(t, far.Content().Sub(SubMarkings).Visible())
	assert.False(t, far.Content().Sub(SubProps).Visible())
	assert.False(t, far.Content().Sub(SubDetail).Visible())

	geometryBefore := far.Content().Sub(SubProps).Count()
	h.s.Tick(500, 0) // centre 900 is now 400 away
	assert.Equal(t, LODMedium, far.LOD())
	assert.True(t, far.Content().Sub(SubProps).Visible())
	assert.Equal(t, geometryBefore, far.Content().Sub(SubProps).Count(), "level change does not rebuild")
	assert.Positive(t, h.s.Stats().LODChanges)
}

func TestConfig_LODFor(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		distance, speed float64
		want            LOD
	}{
		{0, 0, LODFull},
		{300, 0, LODFull},
		{301, 0, LODMedium},
		{700, 0, LODMedium},
		{1400, 0, LODLow},
		{1401, 0, LODMinimal},
		{400, 50, LODFull},      // scale 1.5
		{1050, 50, LODMedium},   // 700*1.5
		{2800, 500, LODLow},     // scale capped at 2
		{2801, 500, LODMinimal}, // 1400*2
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.LODFor(tt.distance, tt.speed), "distance %g speed %g", tt.distance, tt.speed)
	}
	assert.Equal(t, "minimal", LODMinimal.String())
}

func detailRefs(cache *asset.Cache, keys []string) int {
	n := 0
	for _, k := range keys {
		n += cache.RefCount(k)
	}
	return n
}

func heldDetails(s *Streamer) int {
	n := 0
	for _, t := range s.Tiles() {
		n += len(t.Details())
	}
	return n
}

func TestStreamer_DetailTexturesFollowTiles(t *testing.T) {
	cfg := scenarioConfig()
	cfg.DetailTextures = DefaultConfig().DetailTextures
	cache := newTextureCache(t, asset.NewProceduralLoader(64, 64, 0))
	h := newHarness(t, cfg, cache)

	h.s.Tick(0, 0)
	for _, tile := range h.s.Tiles() {
		assert.Empty(t, tile.Details(), "details arrive on a later tick")
	}
	h.s.Wait()
	h.s.Tick(0, 0)

	for _, tile := range h.s.Tiles() {
		assert.NotEmpty(t, tile.Details())
		assert.Zero(t, tile.PendingDetails())
		assert.Len(t, tile.Content().Sub(SubDetail).Children(), len(tile.Details()))
	}
	assert.Equal(t, heldDetails(h.s), detailRefs(cache, cfg.DetailTextures))

	h.s.Tick(5000, 0) // recycle everything
	for _, tile := range h.s.Tiles() {
		assert.Empty(t, tile.Details(), "recycled tiles released their details")
		assert.Positive(t, tile.PendingDetails())
	}

	h.s.Wait()
	h.s.Tick(5000, 0)
	assert.Equal(t, heldDetails(h.s), detailRefs(cache, cfg.DetailTextures))
	assert.Positive(t, heldDetails(h.s))

	h.s.Dispose()
	assert.Zero(t, detailRefs(cache, cfg.DetailTextures))
}

type gatedLoader struct {
	gate chan struct{}
	next *asset.ProceduralLoader
}

func (l *gatedLoader) Load(ctx context.Context, key string) (*asset.Texture, error) {
	select {
	case <-l.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return l.next.Load(ctx, key)
}

func TestStreamer_StaleDetailsReleased(t *testing.T) {
	cfg := scenarioConfig()
	cfg.DetailTextures = DefaultConfig().DetailTextures
	loader := &gatedLoader{gate: make(chan struct{}), next: asset.NewProceduralLoader(8, 8, 0)}
	cache := newTextureCache(t, loader)
	h := newHarness(t, cfg, cache)

	h.s.Tick(0, 0)
	issued := h.s.Stats().DetailLoads
	require.Positive(t, issued)

	h.s.Tick(5000, 0) // every tile moves before its details land
	close(loader.gate)
	h.s.Wait()
	h.s.Tick(5000, 0)

	st := h.s.Stats()
	assert.Equal(t, issued, st.StaleDetails)
	assert.Zero(t, st.DetailFailures)
	assert.Equal(t, heldDetails(h.s), detailRefs(cache, cfg.DetailTextures))
}

func TestStreamer_DetailFailureIsNotFatal(t *testing.T) {
	cfg := scenarioConfig()
	cfg.DetailTextures = []string{"missing/asphalt.png"}
	loader := asset.NewProceduralLoader(8, 8, 0)
	loader.FailPrefix = "missing/"
	h := newHarness(t, cfg, newTextureCache(t, loader))

	h.s.Tick(0, 0)
	h.s.Wait()
	h.s.Tick(0, 0)

	st := h.s.Stats()
	assert.Equal(t, uint64(6), st.DetailFailures)
	assertCovered(t, h.s, 0, 0)
	for _, tile := range h.s.Tiles() {
		assert.Empty(t, tile.Details())
	}
}

func TestDecorSeed_Deterministic(t *testing.T) {
	assert.Equal(t, DecorSeed(7, 42), DecorSeed(7, 42))
	assert.NotEqual(t, DecorSeed(7, 42), DecorSeed(7, 43))
	assert.NotEqual(t, DecorSeed(7, 42), DecorSeed(8, 42))
	assert.NotEqual(t, DecorSeed(7, -1), DecorSeed(7, 1))

	cfg := DefaultConfig()
	assert.Equal(t, cfg.PlanDecor(-12), cfg.PlanDecor(-12))

	for k := range 200 {
		plan := cfg.PlanDecor(k)
		require.GreaterOrEqual(t, len(plan.Props), minProps)
		require.LessOrEqual(t, len(plan.Props), maxProps)
		require.NotEmpty(t, plan.Details)
		if len(plan.Details) == 2 {
			require.NotEqual(t, plan.Details[0], plan.Details[1])
		}
		for _, p := range plan.Props {
			require.GreaterOrEqual(t, p.Along, 0.0)
			require.Less(t, p.Along, cfg.TileLength)
			require.Greater(t, math.Abs(p.Lateral), roadHalfWidth-1e-9)
		}
	}
}
