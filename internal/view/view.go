// Package view composes projection, styling, the engine session and the
// interaction state into one interactive graph bound to a surface.
package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/opensource-finance/ringscope/internal/bus"
	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/focus"
	"github.com/opensource-finance/ringscope/internal/interaction"
	"github.com/opensource-finance/ringscope/internal/projector"
	"github.com/opensource-finance/ringscope/internal/render"
	"github.com/opensource-finance/ringscope/internal/session"
	"github.com/opensource-finance/ringscope/internal/style"
)

// Projector derives the graph for a filter. The default projects directly
// from the loaded result.
type Projector func(ctx context.Context, analysisID string, result *domain.AnalysisResult, ringFilter string) *domain.ProjectedGraph

// Snapshot is the externally visible state of a view.
type Snapshot struct {
	ViewID     string              `json:"viewId"`
	AnalysisID string              `json:"analysisId,omitempty"`
	Loaded     bool                `json:"loaded"`
	Filter     string              `json:"filter"`
	Actions    []focus.Action      `json:"actions"`
	Nodes      int                 `json:"nodes"`
	Edges      int                 `json:"edges"`
	Tooltip    interaction.Tooltip `json:"tooltip"`
	Detail     *interaction.Detail `json:"detail"`
	Session    session.Stats       `json:"session"`
}

// Option configures a View.
type Option func(*View)

// WithID sets the view id. A random id is used otherwise.
func WithID(id string) Option {
	return func(v *View) { v.id = id }
}

// WithBus publishes view events for a tenant.
func WithBus(b domain.EventBus, tenantID string) Option {
	return func(v *View) {
		v.bus = b
		v.tenantID = tenantID
	}
}

// WithProjector replaces the default projector.
func WithProjector(p Projector) Option {
	return func(v *View) { v.project = p }
}

// WithObserver registers a callback invoked with a fresh snapshot after
// every visible state change. It runs without the view lock held.
func WithObserver(fn func(Snapshot)) Option {
	return func(v *View) { v.observer = fn }
}

// View is one interactive graph. All transitions are serialized.
type View struct {
	id       string
	cfg      domain.ViewConfig
	sheet    *style.Sheet
	bus      domain.EventBus
	tenantID string
	project  Projector
	observer func(Snapshot)

	mu         sync.Mutex
	session    *session.Session
	controller *interaction.Controller
	focus      *focus.Selector
	analysisID string
	result     *domain.AnalysisResult
	index      *projector.Index
	graph      *domain.ProjectedGraph
	closed     bool
}

// New creates a view with nothing loaded.
func New(engine render.Engine, surface render.Surface, sheet *style.Sheet, cfg domain.ViewConfig, opts ...Option) *View {
	if sheet == nil {
		sheet = style.Default()
	}
	v := &View{
		cfg:        cfg,
		sheet:      sheet,
		session:    session.New(engine, surface, render.ZoomBounds{Min: cfg.MinZoom, Max: cfg.MaxZoom}),
		controller: interaction.NewController(cfg.TooltipOffset),
		focus:      focus.NewSelector(nil),
		index:      projector.NewIndex(nil),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.id == "" {
		v.id = uuid.New().String()
	}
	if v.project == nil {
		v.project = func(_ context.Context, _ string, result *domain.AnalysisResult, ringFilter string) *domain.ProjectedGraph {
			return v.index.Project(result, ringFilter)
		}
	}
	return v
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// AnalysisID returns the id of the loaded analysis.
func (v *View) AnalysisID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.analysisID
}

// Load replaces the analysis shown. Filter, selection and hover start
// over. A nil result clears the view and releases the instance.
func (v *View) Load(ctx context.Context, analysisID string, result *domain.AnalysisResult) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return session.ErrClosed
	}

	v.analysisID = analysisID
	v.result = result
	v.index = projector.NewIndex(result)
	v.controller.Reset()
	if result != nil {
		v.focus.Reset(result.FraudRings)
	} else {
		v.focus.Reset(nil)
	}

	ev, err := v.rebuildLocked(ctx)
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.notify(ctx, domain.TopicViewRebuilt, ev, snap)
	return err
}

// SelectRing changes the ring filter and reconstructs the instance.
// Selecting the active filter again does nothing.
func (v *View) SelectRing(ctx context.Context, ringID string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return session.ErrClosed
	}
	if !v.focus.Select(ringID) {
		v.mu.Unlock()
		return nil
	}

	ev, err := v.rebuildLocked(ctx)
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.notify(ctx, domain.TopicFocusChanged, ev, snap)
	return err
}

// Refresh reconstructs the instance from the current inputs. It is how a
// view catches up once its surface is mounted.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return session.ErrClosed
	}
	ev, err := v.rebuildLocked(ctx)
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.notify(ctx, domain.TopicViewRebuilt, ev, snap)
	return err
}

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Graph returns the current projection, or nil when nothing is loaded.
func (v *View) Graph() *domain.ProjectedGraph {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.graph
}

// Close releases the instance. A closed view rejects further changes.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	return v.session.Close()
}

// rebuildLocked projects and reconstructs. It returns the event to publish,
// or nil when nothing was rendered.
func (v *View) rebuildLocked(ctx context.Context) (*domain.ViewEvent, error) {
	if v.result == nil {
		v.graph = nil
		v.controller.Bind(nil, v.index)
		v.session.Release()
		return nil, nil
	}

	g := v.project(ctx, v.analysisID, v.result, v.focus.Active())
	v.graph = g
	v.controller.Bind(g, v.index)

	spec := render.Spec{
		Elements: v.sheet.Elements(g),
		Style:    v.sheet.Stylesheet(),
		Layout:   v.cfg.Layout,
	}
	gen, err := v.session.Rebuild(ctx, spec, v.bind)
	if errors.Is(err, session.ErrSurfaceNotMounted) {
		slog.Debug("surface not mounted, deferring render", "view_id", v.id)
		return nil, nil
	}
	if err != nil {
		slog.Error("failed to rebuild view",
			"view_id", v.id,
			"analysis_id", v.analysisID,
			"error", err,
		)
		return nil, err
	}

	projectedElements.Observe(float64(len(g.Nodes) + len(g.Edges)))
	slog.Debug("view rebuilt",
		"view_id", v.id,
		"analysis_id", v.analysisID,
		"filter", g.Filter,
		"generation", gen,
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
	)

	return &domain.ViewEvent{
		ViewID:     v.id,
		AnalysisID: v.analysisID,
		Filter:     g.Filter,
		Generation: gen,
		Nodes:      len(g.Nodes),
		Edges:      len(g.Edges),
	}, nil
}

// bind subscribes the view to every pointer event of a new instance.
func (v *View) bind(inst render.Instance, generation uint64) error {
	for _, t := range render.EventTypes {
		inst.On(t, func(ev render.Event) {
			v.dispatch(generation, ev)
		})
	}
	return nil
}

// dispatch applies an event from the instance of a given generation.
// Events from released instances are dropped.
func (v *View) dispatch(generation uint64, ev render.Event) {
	v.mu.Lock()
	if v.closed || !v.session.Live(generation) {
		v.mu.Unlock()
		pointerEvents.WithLabelValues(string(ev.Type), "stale").Inc()
		return
	}

	change := v.controller.Handle(ev)
	if change == 0 {
		v.mu.Unlock()
		pointerEvents.WithLabelValues(string(ev.Type), "ignored").Inc()
		return
	}
	pointerEvents.WithLabelValues(string(ev.Type), "applied").Inc()

	var sel *domain.ViewEvent
	if change.Has(interaction.ChangeSelection) {
		sel = &domain.ViewEvent{
			ViewID:     v.id,
			AnalysisID: v.analysisID,
			Filter:     v.focus.Active(),
			Generation: generation,
		}
		if st := v.controller.State(); st.Selected != nil {
			sel.Selected = st.Selected.AccountID
		}
	}
	snap := v.snapshotLocked()
	v.mu.Unlock()

	v.notify(context.Background(), domain.TopicSelectionChanged, sel, snap)
}

func (v *View) snapshotLocked() Snapshot {
	snap := Snapshot{
		ViewID:     v.id,
		AnalysisID: v.analysisID,
		Loaded:     v.result != nil,
		Filter:     v.focus.Active(),
		Actions:    v.focus.Actions(),
		Tooltip:    v.controller.Tooltip(),
		Detail:     v.controller.Detail(),
		Session:    v.session.Stats(),
	}
	if v.graph != nil {
		snap.Filter = v.graph.Filter
		snap.Nodes = len(v.graph.Nodes)
		snap.Edges = len(v.graph.Edges)
	}
	return snap
}

// notify publishes ev when set and hands the snapshot to the observer.
func (v *View) notify(ctx context.Context, topic string, ev *domain.ViewEvent, snap Snapshot) {
	if ev != nil && v.bus != nil {
		if err := bus.PublishJSON(ctx, v.bus, v.tenantID, topic, ev); err != nil {
			slog.Warn("failed to publish view event",
				"view_id", v.id,
				"topic", topic,
				"error", err,
			)
		}
	}
	if v.observer != nil {
		v.observer(snap)
	}
}
