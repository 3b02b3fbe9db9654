// Package session owns the lifecycle of the engine instance bound to one
// drawing surface. At most one instance is live per session, and the
// previous instance is always released before its replacement is built.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/ringscope/internal/render"
)

var tracer = otel.Tracer("ringscope-session")

var (
	// ErrSurfaceNotMounted is returned when the surface is not attached.
	// No instance is built until it is.
	ErrSurfaceNotMounted = errors.New("surface not mounted")

	// ErrClosed is returned by a closed session.
	ErrClosed = errors.New("session closed")
)

// Binder registers handlers on a freshly constructed instance. The
// generation identifies the instance and is what handlers compare against
// to discard events from released instances.
type Binder func(inst render.Instance, generation uint64) error

// Stats counts instance lifecycle transitions.
type Stats struct {
	Live       int    `json:"live"`
	Created    uint64 `json:"created"`
	Released   uint64 `json:"released"`
	Generation uint64 `json:"generation"`
}

// Session binds engine instances to a surface.
type Session struct {
	engine  render.Engine
	surface render.Surface
	zoom    render.ZoomBounds

	mu         sync.Mutex
	current    render.Instance
	generation uint64
	created    uint64
	released   uint64
	closed     bool
}

// New creates a session. No instance exists until the first Rebuild.
func New(engine render.Engine, surface render.Surface, zoom render.ZoomBounds) *Session {
	return &Session{
		engine:  engine,
		surface: surface,
		zoom:    zoom,
	}
}

// Rebuild releases the current instance, constructs a new one from spec,
// applies the zoom bounds and runs bind. On any failure the new instance
// is released as well and the session is left with no live instance.
// It returns the generation of the new instance.
func (s *Session) Rebuild(ctx context.Context, spec render.Spec, bind Binder) (uint64, error) {
	ctx, span := tracer.Start(ctx, "session.Rebuild")
	defer span.End()
	span.SetAttributes(attribute.Int("elements", len(spec.Elements)))

	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.surface == nil || !s.surface.Mounted() {
		rebuilds.WithLabelValues("skipped").Inc()
		return 0, ErrSurfaceNotMounted
	}

	s.releaseLocked()

	inst, err := s.engine.Mount(ctx, s.surface, spec)
	if err != nil {
		if inst != nil {
			_ = inst.Destroy()
		}
		return 0, s.fail(span, fmt.Errorf("failed to mount instance: %w", err))
	}
	s.created++
	liveInstances.Inc()

	if err := inst.SetZoomBounds(s.zoom); err != nil {
		s.destroy(inst)
		return 0, s.fail(span, fmt.Errorf("failed to set zoom bounds: %w", err))
	}

	s.generation++
	next := s.generation
	if bind != nil {
		if err := bind(inst, next); err != nil {
			s.destroy(inst)
			return 0, s.fail(span, fmt.Errorf("failed to bind instance: %w", err))
		}
	}

	s.current = inst

	rebuilds.WithLabelValues("ok").Inc()
	rebuildDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("instance_id", inst.ID()),
		attribute.Int64("generation", int64(next)),
	)
	return next, nil
}

// Release destroys the current instance, if any.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// Close releases the current instance and rejects further rebuilds.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.closed = true
	return nil
}

// Generation returns the generation of the most recently constructed
// instance. It is zero before the first construction.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Live reports whether generation identifies the live instance.
func (s *Session) Live(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.generation == generation
}

// Current returns the live instance, or nil.
func (s *Session) Current() render.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stats returns lifecycle counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Created:    s.created,
		Released:   s.released,
		Generation: s.generation,
	}
	if s.current != nil {
		st.Live = 1
	}
	return st
}

func (s *Session) releaseLocked() {
	if s.current == nil {
		return
	}
	s.destroy(s.current)
	s.current = nil
}

// destroy releases an instance that was counted as created.
func (s *Session) destroy(inst render.Instance) {
	if err := inst.Destroy(); err != nil {
		slog.Warn("failed to destroy engine instance",
			"instance_id", inst.ID(),
			"error", err,
		)
	}
	s.released++
	releases.Inc()
	liveInstances.Dec()
}

func (s *Session) fail(span trace.Span, err error) error {
	rebuilds.WithLabelValues("error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
