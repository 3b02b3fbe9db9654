package view

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/ringscope/internal/bus"
	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/projector"
	"github.com/opensource-finance/ringscope/internal/render"
	"github.com/opensource-finance/ringscope/internal/session"
)

func scenario() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		SuspiciousAccounts: []domain.SuspiciousAccount{
			{AccountID: "A", SuspicionScore: 80, DetectedPatterns: []string{"cycle"}, RingID: "R1"},
		},
		FraudRings: []domain.FraudRing{
			{RingID: "R1", MemberAccounts: []string{"A", "B"}, PatternType: "cycle", RiskScore: 95},
		},
		Graph: domain.Graph{Edges: []domain.GraphEdge{
			{Source: "A", Target: "B"},
			{Source: "B", Target: "C"},
			{Source: "C", Target: "A"},
		}},
	}
}

func newTestView(t *testing.T, opts ...Option) (*View, *render.Headless, *render.StaticSurface) {
	t.Helper()
	engine := render.NewHeadless()
	surface := render.NewSurface("canvas")
	v := New(engine, surface, nil, domain.DefaultViewConfig(), opts...)
	t.Cleanup(func() { v.Close() })
	return v, engine, surface
}

func TestViewLoad(t *testing.T) {
	ctx := context.Background()
	v, engine, _ := newTestView(t)

	t.Run("NothingLoaded", func(t *testing.T) {
		snap := v.Snapshot()
		if snap.Loaded || engine.LiveCount() != 0 {
			t.Errorf("expected empty view, got %+v", snap)
		}
	})

	if err := v.Load(ctx, "an-1", scenario()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	inst := engine.Live("canvas")
	if inst == nil {
		t.Fatal("expected a live instance")
	}
	if got := len(inst.Spec().Elements); got != 6 {
		t.Errorf("expected 3 nodes + 3 edges, got %d elements", got)
	}
	if z := inst.Zoom(); z.Min != 0.2 || z.Max != 3 {
		t.Errorf("unexpected zoom bounds: %+v", z)
	}
	if inst.Spec().Layout.Name != "cose" {
		t.Errorf("expected cose layout, got %q", inst.Spec().Layout.Name)
	}
	if inst.HandlerCount() != len(render.EventTypes) {
		t.Errorf("expected %d handlers, got %d", len(render.EventTypes), inst.HandlerCount())
	}

	snap := v.Snapshot()
	if !snap.Loaded || snap.Nodes != 3 || snap.Edges != 3 || snap.Filter != projector.GlobalView {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Actions) != 2 || !snap.Actions[0].Active {
		t.Errorf("expected global action active, got %+v", snap.Actions)
	}
}

func TestViewRingFocus(t *testing.T) {
	ctx := context.Background()
	v, engine, _ := newTestView(t)
	if err := v.Load(ctx, "an-1", scenario()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	first := engine.Live("canvas")

	if err := v.SelectRing(ctx, "R1"); err != nil {
		t.Fatalf("SelectRing failed: %v", err)
	}

	if !first.Destroyed() {
		t.Error("previous instance must be destroyed, not mutated")
	}
	second := engine.Live("canvas")
	if second == first {
		t.Fatal("expected a new instance")
	}
	if got := len(second.Spec().Elements); got != 3 {
		t.Errorf("expected 2 nodes + 1 edge, got %d elements", got)
	}
	if snap := v.Snapshot(); snap.Filter != "R1" || snap.Edges != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	t.Run("SameFilterIsNoop", func(t *testing.T) {
		if err := v.SelectRing(ctx, "R1"); err != nil {
			t.Fatalf("SelectRing failed: %v", err)
		}
		if engine.Live("canvas") != second {
			t.Error("reselecting the active ring must not rebuild")
		}
	})

	t.Run("UnknownRingShowsGlobal", func(t *testing.T) {
		if err := v.SelectRing(ctx, "GHOST"); err != nil {
			t.Fatalf("SelectRing failed: %v", err)
		}
		snap := v.Snapshot()
		if snap.Edges != 3 || snap.Filter != projector.GlobalView {
			t.Errorf("expected global projection, got %+v", snap)
		}
		if !snap.Actions[0].Active {
			t.Error("expected the global action to be active for an unresolved ring")
		}
	})
}

func TestViewExclusivity(t *testing.T) {
	ctx := context.Background()
	v, engine, _ := newTestView(t)
	if err := v.Load(ctx, "an-1", scenario()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	filters := []string{"R1", projector.GlobalView, "R1", projector.GlobalView, "R1"}
	for _, f := range filters {
		if err := v.SelectRing(ctx, f); err != nil {
			t.Fatalf("SelectRing(%q) failed: %v", f, err)
		}
		if engine.LiveCount() != 1 {
			t.Fatalf("expected 1 live instance, got %d", engine.LiveCount())
		}
	}

	n := len(filters) + 1
	created, destroyed := engine.Stats()
	if created != n || destroyed != n-1 {
		t.Errorf("expected %d created and %d destroyed, got %d and %d", n, n-1, created, destroyed)
	}
}

func TestViewInteraction(t *testing.T) {
	ctx := context.Background()
	v, engine, _ := newTestView(t)
	if err := v.Load(ctx, "an-1", scenario()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	inst := engine.Live("canvas")

	inst.Emit(render.Event{Type: render.EventPointerEnterNode, NodeID: "A"})
	inst.Emit(render.Event{Type: render.EventPointerMove, PageX: 10, PageY: 20})
	tip := v.Snapshot().Tooltip
	if !tip.Visible || tip.Title != "A" || tip.Left != 25 || tip.Top != 35 {
		t.Errorf("unexpected tooltip: %+v", tip)
	}

	inst.Emit(render.Event{Type: render.EventTapNode, NodeID: "A"})
	if d := v.Snapshot().Detail; d == nil || d.AccountID != "A" {
		t.Fatalf("expected A selected, got %+v", d)
	}

	t.Run("SelectionSurvivesFilterChange", func(t *testing.T) {
		if err := v.SelectRing(ctx, "R1"); err != nil {
			t.Fatalf("SelectRing failed: %v", err)
		}
		snap := v.Snapshot()
		if snap.Detail == nil || snap.Detail.AccountID != "A" {
			t.Error("selection should survive a filter change")
		}
		if snap.Tooltip.Visible {
			t.Error("hover should be cleared by reconstruction")
		}
	})

	t.Run("StaleEventsDropped", func(t *testing.T) {
		inst.Emit(render.Event{Type: render.EventTapBackground})
		if v.Snapshot().Detail == nil {
			t.Error("event from a released instance must not change state")
		}
	})

	t.Run("NewResultResets", func(t *testing.T) {
		if err := v.Load(ctx, "an-2", scenario()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		snap := v.Snapshot()
		if snap.Detail != nil || snap.Filter != projector.GlobalView {
			t.Errorf("new result must start from a clean slate: %+v", snap)
		}
	})
}

func TestViewDropsLateEvents(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestView(t)
	if err := v.Load(ctx, "an-1", scenario()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	stale := v.Snapshot().Session.Generation

	if err := v.SelectRing(ctx, "R1"); err != nil {
		t.Fatalf("SelectRing failed: %v", err)
	}

	// An engine delivering an event for the released instance after the
	// rebuild completed.
	v.dispatch(stale, render.Event{Type: render.EventTapNode, NodeID: "A"})
	if v.Snapshot().Detail != nil {
		t.Error("event from a released generation must be dropped")
	}

	v.dispatch(v.Snapshot().Session.Generation, render.Event{Type: render.EventTapNode, NodeID: "A"})
	if v.Snapshot().Detail == nil {
		t.Error("event from the live generation must apply")
	}
}

func TestViewSurfaceLifecycle(t *testing.T) {
	ctx := context.Background()
	engine := render.NewHeadless()
	surface := render.NewSurface("canvas")
	surface.SetMounted(false)
	v := New(engine, surface, nil, domain.DefaultViewConfig())
	defer v.Close()

	if err := v.Load(ctx, "an-1", scenario()); err != nil {
		t.Fatalf("Load on unmounted surface should not fail: %v", err)
	}
	if engine.LiveCount() != 0 {
		t.Fatal("no instance may exist before the surface mounts")
	}

	surface.SetMounted(true)
	if err := v.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if engine.LiveCount() != 1 {
		t.Error("expected instance after mount")
	}

	if err := v.Load(ctx, "", nil); err != nil {
		t.Fatalf("Load(nil) failed: %v", err)
	}
	if engine.LiveCount() != 0 {
		t.Error("clearing the result must release the instance")
	}
}

func TestViewMountFailure(t *testing.T) {
	ctx := context.Background()
	v, engine, _ := newTestView(t)
	if err := v.Load(ctx, "an-1", scenario()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	boom := errors.New("engine crashed")
	engine.FailNextMount(boom)
	if err := v.SelectRing(ctx, "R1"); !errors.Is(err, boom) {
		t.Fatalf("expected mount error, got %v", err)
	}
	if engine.LiveCount() != 0 {
		t.Error("failed rebuild must leave no live instance")
	}
	if err := v.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if engine.LiveCount() != 1 {
		t.Error("Refresh should recover")
	}
}

func TestViewClose(t *testing.T) {
	v, engine, _ := newTestView(t)
	v.Load(context.Background(), "an-1", scenario())

	if err := v.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if engine.LiveCount() != 0 {
		t.Error("Close must release the instance")
	}
	if err := v.SelectRing(context.Background(), "R1"); !errors.Is(err, session.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestViewPublishesEvents(t *testing.T) {
	ctx := context.Background()
	b := bus.NewChannelBus(16)
	defer b.Close()

	var mu sync.Mutex
	got := make(map[string][]domain.ViewEvent)
	done := make(chan struct{}, 8)
	for _, topic := range []string{domain.TopicViewRebuilt, domain.TopicFocusChanged, domain.TopicSelectionChanged} {
		_, err := b.Subscribe(ctx, "tenant-001", topic, func(ctx context.Context, msg *domain.Message) error {
			var ev domain.ViewEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				return err
			}
			mu.Lock()
			got[msg.Topic] = append(got[msg.Topic], ev)
			mu.Unlock()
			done <- struct{}{}
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	var snaps int
	v, engine, _ := newTestView(t,
		WithID("view-1"),
		WithBus(b, "tenant-001"),
		WithObserver(func(Snapshot) { snaps++ }),
	)

	v.Load(ctx, "an-1", scenario())
	v.SelectRing(ctx, "R1")
	engine.Live("canvas").Emit(render.Event{Type: render.EventTapNode, NodeID: "A"})

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if evs := got[domain.TopicViewRebuilt]; len(evs) != 1 || evs[0].ViewID != "view-1" || evs[0].Edges != 3 {
		t.Errorf("unexpected rebuilt events: %+v", evs)
	}
	if evs := got[domain.TopicFocusChanged]; len(evs) != 1 || evs[0].Filter != "R1" {
		t.Errorf("unexpected focus events: %+v", evs)
	}
	if evs := got[domain.TopicSelectionChanged]; len(evs) != 1 || evs[0].Selected != "A" {
		t.Errorf("unexpected selection events: %+v", evs)
	}
	if snaps != 3 {
		t.Errorf("expected 3 observer calls, got %d", snaps)
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	engine := render.NewHeadless()

	a := New(engine, render.NewSurface("a"), nil, domain.DefaultViewConfig(), WithID("a"))
	b := New(engine, render.NewSurface("b"), nil, domain.DefaultViewConfig(), WithID("b"))
	r.Add(a)
	r.Add(b)
	a.Load(ctx, "an-1", scenario())
	b.Load(ctx, "an-2", scenario())

	if r.Len() != 2 {
		t.Fatalf("expected 2 views, got %d", r.Len())
	}
	if got, ok := r.Get("a"); !ok || got != a {
		t.Error("expected to find view a")
	}

	if n := r.Unload(ctx, "an-1"); n != 1 {
		t.Errorf("expected 1 view unloaded, got %d", n)
	}
	if a.Snapshot().Loaded {
		t.Error("view a should be cleared")
	}
	if engine.LiveCount() != 1 {
		t.Errorf("expected only view b live, got %d", engine.LiveCount())
	}

	if err := r.Remove("b"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := r.Get("b"); ok {
		t.Error("view b should be gone")
	}
	if engine.LiveCount() != 0 {
		t.Error("removed view must release its instance")
	}

	r.Add(b)
	r.CloseAll()
	if r.Len() != 0 {
		t.Error("CloseAll should empty the registry")
	}
}
