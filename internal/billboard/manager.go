package billboard

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/corridor/internal/asset"
	"github.com/udisondev/corridor/internal/loadq"
)

// Stats is a snapshot of manager counters.
type Stats struct {
	Entities int
	Unloaded int
	Loading  int
	Loaded   int
	Culled   int
	Errored  int

	Scans        uint64
	LoadsIssued  uint64
	LoadFailures uint64
	Fallbacks    uint64
	Unloads      uint64
	StaleLoads   uint64 // completions that arrived after the entity left range
}

// Manager loads and unloads billboards by distance to the viewer.
//
// Loaded entities farther than UnloadDistance, or behind the viewer beyond
// CullDistance, are unloaded; behind but within CullDistance they are only
// hidden. Unloaded entities in front and closer than LoadDistance are load
// candidates, nearest first, limited so that at most MaxConcurrentLoaded
// entities are loading or resident.
//
// Manager is driven from a single tick goroutine and is not safe for
// concurrent use. Texture loads run off-tick; their results are applied at
// the start of a later Tick.
type Manager struct {
	cfg     Config
	cache   loadq.Acquirer[*asset.Texture]
	builder Builder
	queue   *loadq.Queue[*asset.Texture, *Entity]

	entities []*Entity
	byID     map[string]*Entity

	viewer    mgl64.Vec3
	sinceScan time.Duration
	scanned   bool
	disposed  bool

	candidates []*Entity

	scans        uint64
	loadsIssued  uint64
	loadFailures uint64
	fallbacks    uint64
	unloads      uint64
	staleLoads   uint64
}

// NewManager creates a manager. cache is usually an *asset.Cache.
func NewManager(cfg Config, cache loadq.Acquirer[*asset.Texture], builder Builder) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cache == nil || builder == nil {
		return nil, fmt.Errorf("%w: cache and builder are required", ErrInvalidConfig)
	}
	return &Manager{
		cfg:     cfg,
		cache:   cache,
		builder: builder,
		queue:   loadq.New[*asset.Texture, *Entity](cache),
		byID:    make(map[string]*Entity, 256),
	}, nil
}

// Add registers a placement as an unloaded entity.
func (m *Manager) Add(p Placement) (*Entity, error) {
	if !p.Kind.Valid() {
		return nil, fmt.Errorf("billboard %s: invalid kind %d", p.ID, p.Kind)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("billboard at %v: empty id", p.Position)
	}
	if _, ok := m.byID[p.ID]; ok {
		return nil, fmt.Errorf("billboard %s: duplicate id", p.ID)
	}

	key := p.Texture
	if key == "" {
		key = m.cfg.FallbackTexture
	}

	e := &Entity{
		ID:         p.ID,
		Kind:       p.Kind,
		Position:   p.Position,
		Texture:    p.Texture,
		index:      len(m.entities),
		textureKey: key,
	}
	m.entities = append(m.entities, e)
	m.byID[e.ID] = e
	return e, nil
}

// LoadPlacements adds every placement from repo.
func (m *Manager) LoadPlacements(ctx context.Context, repo Repository) error {
	placements, err := repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading billboard placements: %w", err)
	}

	for _, p := range placements {
		if _, err := m.Add(p); err != nil {
			return fmt.Errorf("adding placement: %w", err)
		}
	}

	slog.Info("billboards loaded", "count", len(placements), "total", len(m.entities))
	return nil
}

// Tick applies finished loads, then runs the distance scan if at least
// UpdateInterval has elapsed since the previous one. The first Tick always scans.
func (m *Manager) Tick(viewer mgl64.Vec3, dt time.Duration) {
	if m.disposed {
		return
	}
	m.viewer = viewer
	m.applyCompletions()

	m.sinceScan += dt
	if m.scanned && m.sinceScan < m.cfg.UpdateInterval {
		return
	}
	m.sinceScan = 0
	m.scanned = true
	m.scan()
}

// scan updates resident entities and issues loads for the nearest candidates.
func (m *Manager) scan() {
	m.scans++
	m.candidates = m.candidates[:0]
	active := 0

	for _, e := range m.entities {
		m.measure(e)

		switch e.state {
		case StateLoaded, StateCulled:
			m.updateResident(e)
		case StateUnloaded:
			if e.front && e.distance < m.cfg.LoadDistance {
				m.candidates = append(m.candidates, e)
			}
		}

		if e.resident() {
			active++
		}
	}

	slots := m.cfg.MaxConcurrentLoaded - active
	if slots <= 0 || len(m.candidates) == 0 {
		return
	}

	// entities are visited in insertion order, so a stable sort breaks ties by it
	slices.SortStableFunc(m.candidates, func(a, b *Entity) int {
		return cmp.Compare(a.distance, b.distance)
	})

	if len(m.candidates) > slots {
		m.candidates = m.candidates[:slots]
	}
	for _, e := range m.candidates {
		m.issue(e)
	}

	slog.Debug("billboard scan", "issued", len(m.candidates), "active", active+len(m.candidates))
}

func (m *Manager) measure(e *Entity) {
	e.distance = e.Position.Sub(m.viewer).Len()
	e.front = e.Position.Z() > m.viewer.Z()
}

func (m *Manager) updateResident(e *Entity) {
	switch {
	case e.distance > m.cfg.UnloadDistance:
		m.unload(e)
	case !e.front && e.distance <= m.cfg.CullDistance:
		if e.state == StateLoaded {
			e.content.SetVisible(false)
			e.state = StateCulled
		}
	case !e.front:
		m.unload(e)
	case e.state == StateCulled:
		e.content.SetVisible(true)
		e.state = StateLoaded
	}
}

func (m *Manager) issue(e *Entity) {
	e.state = StateLoading
	m.loadsIssued++
	if !m.queue.Issue(e.textureKey, e) {
		e.state = StateUnloaded
	}
}

// applyCompletions consumes finished loads. An entity that left range while
// loading releases its reference instead of building.
func (m *Manager) applyCompletions() {
	for _, r := range m.queue.Drain() {
		e := r.Tag
		if e.state != StateLoading {
			if r.Err == nil {
				m.cache.Release(r.Key)
			}
			continue
		}

		if r.Err != nil {
			m.fail(e, r.Err)
			continue
		}
		e.held = true

		m.measure(e)
		visible := e.front && e.distance <= m.cfg.UnloadDistance
		hidden := !e.front && e.distance <= m.cfg.CullDistance
		if !visible && !hidden {
			m.staleLoads++
			m.releaseTexture(e)
			e.state = StateUnloaded
			continue
		}

		node, err := m.builder.Build(e, r.Resource)
		if err != nil {
			m.releaseTexture(e)
			m.fail(e, err)
			continue
		}

		e.content = node
		if hidden {
			node.SetVisible(false)
			e.state = StateCulled
		} else {
			e.state = StateLoaded
		}
	}
}

// fail records a failed load and either swaps to the fallback texture or
// gives up on the entity for the session.
func (m *Manager) fail(e *Entity, err error) {
	m.loadFailures++
	e.attempts++
	e.state = StateError

	if e.attempts >= m.cfg.MaxLoadAttempts {
		slog.Warn("billboard load abandoned",
			"id", e.ID,
			"texture", e.textureKey,
			"attempts", e.attempts,
			"error", err)
		return
	}

	m.fallbacks++
	slog.Warn("billboard load failed, using fallback",
		"id", e.ID,
		"texture", e.textureKey,
		"fallback", m.cfg.FallbackTexture,
		"attempts", e.attempts,
		"error", err)
	e.textureKey = m.cfg.FallbackTexture
	e.state = StateUnloaded
}

func (m *Manager) unload(e *Entity) {
	if e.content != nil {
		m.builder.Teardown(e, e.content)
		e.content = nil
	}
	m.releaseTexture(e)
	e.state = StateUnloaded
	m.unloads++
}

func (m *Manager) releaseTexture(e *Entity) {
	if e.held {
		m.cache.Release(e.textureKey)
		e.held = false
	}
}

// Wait blocks until every issued load has completed. Completed loads are
// applied on the next Tick.
func (m *Manager) Wait() {
	m.queue.Wait()
}

// Entity returns the entity with the given id.
func (m *Manager) Entity(id string) (*Entity, bool) {
	e, ok := m.byID[id]
	return e, ok
}

// Entities returns all entities in insertion order.
func (m *Manager) Entities() []*Entity {
	return slices.Clone(m.entities)
}

// Len returns the number of entities.
func (m *Manager) Len() int {
	return len(m.entities)
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	st := Stats{
		Entities:     len(m.entities),
		Scans:        m.scans,
		LoadsIssued:  m.loadsIssued,
		LoadFailures: m.loadFailures,
		Fallbacks:    m.fallbacks,
		Unloads:      m.unloads,
		StaleLoads:   m.staleLoads,
	}
	for _, e := range m.entities {
		switch e.state {
		case StateUnloaded:
			st.Unloaded++
		case StateLoading:
			st.Loading++
		case StateLoaded:
			st.Loaded++
		case StateCulled:
			st.Culled++
		case StateError:
			st.Errored++
		}
	}
	return st
}

// Dispose cancels outstanding loads, tears down every built entity and
// releases all texture references. The manager is unusable afterwards.
func (m *Manager) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	m.queue.Close()

	for _, e := range m.entities {
		switch e.state {
		case StateLoaded, StateCulled:
			m.unload(e)
		case StateLoading:
			e.state = StateUnloaded
		}
	}
	slog.Debug("billboard manager disposed", "entities", len(m.entities))
}
