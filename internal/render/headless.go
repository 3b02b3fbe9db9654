package render

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// StaticSurface is a surface whose mounted state is toggled explicitly.
type StaticSurface struct {
	id      string
	mounted atomic.Bool
}

// NewSurface returns a mounted surface.
func NewSurface(id string) *StaticSurface {
	s := &StaticSurface{id: id}
	s.mounted.Store(true)
	return s
}

// ID returns the surface id.
func (s *StaticSurface) ID() string { return s.id }

// Mounted reports whether the surface is attached.
func (s *StaticSurface) Mounted() bool { return s.mounted.Load() }

// SetMounted attaches or detaches the surface.
func (s *StaticSurface) SetMounted(v bool) { s.mounted.Store(v) }

// Headless is an in-memory engine. It keeps the mounted scene so callers
// can inspect it and inject pointer events, and it rejects a second live
// instance on the same surface.
type Headless struct {
	mu        sync.Mutex
	live      map[string]*HeadlessInstance // by surface id
	created   int
	destroyed int
	mountErr  error
}

// NewHeadless creates an empty headless engine.
func NewHeadless() *Headless {
	return &Headless{live: make(map[string]*HeadlessInstance)}
}

// FailNextMount makes the next Mount call return err.
func (e *Headless) FailNextMount(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mountErr = err
}

// Mount constructs an instance on the surface.
func (e *Headless) Mount(ctx context.Context, surface Surface, spec Spec) (Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.mountErr; err != nil {
		e.mountErr = nil
		return nil, err
	}
	if _, busy := e.live[surface.ID()]; busy {
		return nil, ErrSurfaceBusy
	}

	inst := &HeadlessInstance{
		id:        uuid.New().String(),
		surfaceID: surface.ID(),
		spec:      spec,
		handlers:  make(map[EventType][]Handler),
		engine:    e,
	}
	e.live[surface.ID()] = inst
	e.created++
	return inst, nil
}

// Live returns the live instance on a surface, or nil.
func (e *Headless) Live(surfaceID string) *HeadlessInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live[surfaceID]
}

// LiveCount returns the number of live instances across all surfaces.
func (e *Headless) LiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

// Stats returns how many instances were created and destroyed.
func (e *Headless) Stats() (created, destroyed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.created, e.destroyed
}

func (e *Headless) release(inst *HeadlessInstance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live[inst.surfaceID] == inst {
		delete(e.live, inst.surfaceID)
	}
	e.destroyed++
}

// HeadlessInstance is an instance of the headless engine.
type HeadlessInstance struct {
	id        string
	surfaceID string
	spec      Spec
	engine    *Headless

	mu        sync.Mutex
	handlers  map[EventType][]Handler
	zoom      ZoomBounds
	destroyed bool
}

// ID returns the instance id.
func (i *HeadlessInstance) ID() string { return i.id }

// Spec returns the spec the instance was mounted with.
func (i *HeadlessInstance) Spec() Spec { return i.spec }

// On registers a handler.
func (i *HeadlessInstance) On(t EventType, h Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return
	}
	i.handlers[t] = append(i.handlers[t], h)
}

// SetZoomBounds records the zoom bounds.
func (i *HeadlessInstance) SetZoomBounds(z ZoomBounds) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return ErrInstanceDestroyed
	}
	i.zoom = z
	return nil
}

// Zoom returns the recorded zoom bounds.
func (i *HeadlessInstance) Zoom() ZoomBounds {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.zoom
}

// HandlerCount returns the number of registered handlers.
func (i *HeadlessInstance) HandlerCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, hs := range i.handlers {
		n += len(hs)
	}
	return n
}

// Destroyed reports whether the instance was released.
func (i *HeadlessInstance) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// Emit delivers an event to the registered handlers. Events on a
// destroyed instance are dropped.
func (i *HeadlessInstance) Emit(ev Event) {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	hs := append([]Handler(nil), i.handlers[ev.Type]...)
	i.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

// Destroy detaches handlers and frees the surface.
func (i *HeadlessInstance) Destroy() error {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return nil
	}
	i.destroyed = true
	i.handlers = make(map[EventType][]Handler)
	i.mu.Unlock()

	i.engine.release(i)
	return nil
}
