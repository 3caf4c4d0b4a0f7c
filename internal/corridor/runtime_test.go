package corridor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/corridor/internal/asset"
	"github.com/udisondev/corridor/internal/billboard"
	"github.com/udisondev/corridor/internal/rescache"
	"github.com/udisondev/corridor/internal/scene"
	"github.com/udisondev/corridor/internal/streamer"
	"github.com/udisondev/corridor/internal/testutil"
	"github.com/udisondev/corridor/internal/trace"
)

type rig struct {
	rt    *Runtime
	cache *asset.Cache
	graph *scene.MemGraph
}

func newRig(t *testing.T, opts ...Option) *rig {
	t.Helper()
	graph := scene.NewMemGraph()
	registry := scene.NewRegistry()

	cache, err := asset.NewCache(rescache.DefaultConfig(), asset.NewProceduralLoader(32, 32, 0))
	require.NoError(t, err)

	scfg := streamer.DefaultConfig()
	s, err := streamer.New(scfg, streamer.NewRoadBuilder(graph, registry, scfg.TileLength), cache)
	require.NoError(t, err)

	bcfg := billboard.DefaultConfig()
	bcfg.UpdateInterval = 0
	m, err := billboard.NewManager(bcfg, cache, billboard.NewSceneBuilder(graph, registry))
	require.NoError(t, err)

	for i := range 40 {
		side := 14.0
		if i%2 == 1 {
			side = -14
		}
		_, err := m.Add(billboard.Placement{
			ID:       fmt.Sprintf("bb-%02d", i),
			Kind:     billboard.Kinds()[i%3],
			Position: mgl64.Vec3{side, 0, float64(300 + i*250)},
			Texture:  fmt.Sprintf("ads/%d.png", i%7),
		})
		require.NoError(t, err)
	}

	opts = append([]Option{WithCacheStats(cache.Stats)}, opts...)
	rt := NewRuntime(NewViewer(DefaultViewerConfig()), s, m, opts...)
	t.Cleanup(func() {
		rt.Close()
		registry.Shutdown()
	})
	return &rig{rt: rt, cache: cache, graph: graph}
}

func TestViewer_Advance(t *testing.T) {
	v := NewViewer(ViewerConfig{CruiseSpeed: 10, Acceleration: 5})

	v.Advance(time.Second)
	assert.InDelta(t, 5, v.Speed, 1e-9)
	assert.InDelta(t, 5, v.Z(), 1e-9)

	v.Advance(time.Second)
	assert.InDelta(t, 10, v.Speed, 1e-9, "clamped at target")

	v.SetTarget(-2)
	for range 10 {
		v.Advance(time.Second)
	}
	assert.InDelta(t, -2, v.Speed, 1e-9)
	assert.Less(t, v.Z(), 15.0)
	assert.Greater(t, v.Odometer(), v.Z())

	v.Advance(0)
	assert.InDelta(t, -2, v.Speed, 1e-9)
}

func TestViewerConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultViewerConfig().Validate())

	cfg := DefaultViewerConfig()
	cfg.Acceleration = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultViewerConfig()
	cfg.CruiseSpeed = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestRuntime_DriveDownCorridor(t *testing.T) {
	r := newRig(t)
	dt := 50 * time.Millisecond

	maxLoaded := 0
	for step := range 3000 { // 150 s at up to 33 m/s
		rec := r.rt.Step(dt)
		require.Equal(t, uint64(step+1), rec.Tick)
		require.Zero(t, rec.Uncovered)
		require.LessOrEqual(t, rec.Loading+rec.Loaded+rec.Culled, billboard.DefaultConfig().MaxConcurrentLoaded)
		maxLoaded = max(maxLoaded, rec.Loaded)
		if step%20 == 0 {
			r.rt.billboards.Wait()
			r.rt.streamer.Wait()
		}
	}

	assert.Greater(t, r.rt.Viewer().Z(), 4000.0)
	assert.Positive(t, maxLoaded)

	st := r.rt.billboards.Stats()
	assert.Positive(t, st.Unloads, "billboards behind the viewer were unloaded")
	assert.Zero(t, st.Errored)
	assert.Positive(t, r.rt.streamer.Stats().Recycled)
	assert.NotPanics(t, r.rt.LogSummary)
}

func TestRuntime_CloseReleasesEverything(t *testing.T) {
	r := newRig(t)
	for range 200 {
		r.rt.Step(100 * time.Millisecond)
	}
	r.rt.billboards.Wait()
	r.rt.streamer.Wait()
	r.rt.Step(100 * time.Millisecond)
	require.Positive(t, r.graph.Len())

	r.rt.Close()

	assert.Zero(t, r.graph.Len())
	cs := r.cache.Stats()
	assert.Zero(t, cs.InFlight)
	for i := range 7 {
		assert.Zero(t, r.cache.RefCount(fmt.Sprintf("ads/%d.png", i)))
	}
	for _, key := range streamer.DefaultConfig().DetailTextures {
		assert.Zero(t, r.cache.RefCount(key))
	}
}

func TestRuntime_RecordsTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl.zst")
	w, err := trace.Create(path)
	require.NoError(t, err)

	r := newRig(t, WithRecorder(w))
	for range 100 {
		r.rt.Step(100 * time.Millisecond)
	}
	require.NoError(t, w.Close())

	recs, err := trace.ReadAll[TickRecord](path)
	require.NoError(t, err)
	require.Len(t, recs, 100)
	assert.Equal(t, uint64(100), recs[99].Tick)
	assert.Equal(t, int64(10000), recs[99].ElapsedMS)
	assert.Greater(t, recs[99].Z, recs[0].Z)
	assert.Equal(t, recs[99], r.rt.Last())
	assert.Positive(t, recs[99].Tiles)
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Write(any) error {
	f.calls++
	return testutil.ErrSimulated
}

func TestRuntime_RecorderErrorDisablesTrace(t *testing.T) {
	rec := &failingRecorder{}
	r := newRig(t, WithRecorder(rec))

	for range 5 {
		r.rt.Step(10 * time.Millisecond)
	}
	assert.Equal(t, 1, rec.calls)
}

func TestRuntime_RunStopsOnCancel(t *testing.T) {
	r := newRig(t)
	ctx := testutil.ContextWithTimeout(t, 100*time.Millisecond)

	err := r.rt.Run(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, r.rt.Ticks())
}
