package session

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-finance/ringscope/internal/render"
)

var zoom = render.ZoomBounds{Min: 0.2, Max: 3}

func TestRebuildExclusivity(t *testing.T) {
	ctx := context.Background()
	engine := render.NewHeadless()
	surface := render.NewSurface("canvas")
	s := New(engine, surface, zoom)

	const n = 5
	for i := 0; i < n; i++ {
		gen, err := s.Rebuild(ctx, render.Spec{}, nil)
		if err != nil {
			t.Fatalf("rebuild %d failed: %v", i, err)
		}
		if gen != uint64(i+1) {
			t.Errorf("expected generation %d, got %d", i+1, gen)
		}
		if engine.LiveCount() != 1 {
			t.Fatalf("expected exactly 1 live instance after rebuild %d, got %d", i, engine.LiveCount())
		}
	}

	st := s.Stats()
	if st.Live != 1 || st.Created != n || st.Released != n-1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	created, destroyed := engine.Stats()
	if created != n || destroyed != n-1 {
		t.Errorf("engine saw %d created, %d destroyed", created, destroyed)
	}
}

func TestRebuildAppliesZoomAndBinds(t *testing.T) {
	engine := render.NewHeadless()
	s := New(engine, render.NewSurface("canvas"), zoom)

	var boundGen uint64
	gen, err := s.Rebuild(context.Background(), render.Spec{}, func(inst render.Instance, g uint64) error {
		boundGen = g
		inst.On(render.EventTapNode, func(render.Event) {})
		return nil
	})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if boundGen != gen {
		t.Errorf("binder saw generation %d, rebuild returned %d", boundGen, gen)
	}
	if !s.Live(gen) {
		t.Error("expected generation to be live")
	}

	inst := engine.Live("canvas")
	if inst.Zoom() != zoom {
		t.Errorf("expected zoom %+v, got %+v", zoom, inst.Zoom())
	}
	if inst.HandlerCount() != 1 {
		t.Errorf("expected 1 handler, got %d", inst.HandlerCount())
	}
}

func TestRebuildFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("MountError", func(t *testing.T) {
		engine := render.NewHeadless()
		s := New(engine, render.NewSurface("canvas"), zoom)
		if _, err := s.Rebuild(ctx, render.Spec{}, nil); err != nil {
			t.Fatalf("first rebuild failed: %v", err)
		}

		boom := errors.New("layout diverged")
		engine.FailNextMount(boom)
		if _, err := s.Rebuild(ctx, render.Spec{}, nil); !errors.Is(err, boom) {
			t.Fatalf("expected mount error, got %v", err)
		}
		if engine.LiveCount() != 0 {
			t.Errorf("previous instance must be released, %d live", engine.LiveCount())
		}
		if st := s.Stats(); st.Live != 0 {
			t.Errorf("expected no live instance, got %+v", st)
		}
	})

	t.Run("BindError", func(t *testing.T) {
		engine := render.NewHeadless()
		s := New(engine, render.NewSurface("canvas"), zoom)

		boom := errors.New("handler rejected")
		if _, err := s.Rebuild(ctx, render.Spec{}, func(render.Instance, uint64) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected bind error, got %v", err)
		}
		if engine.LiveCount() != 0 {
			t.Error("instance must be released when binding fails")
		}
		st := s.Stats()
		if st.Created != 1 || st.Released != 1 || st.Live != 0 {
			t.Errorf("unexpected stats: %+v", st)
		}
		if s.Live(st.Generation) {
			t.Error("failed generation must not be live")
		}

		gen, err := s.Rebuild(ctx, render.Spec{}, nil)
		if err != nil {
			t.Fatalf("recovery rebuild failed: %v", err)
		}
		if gen <= st.Generation {
			t.Errorf("expected generation past %d, got %d", st.Generation, gen)
		}
	})

	t.Run("SurfaceNotMounted", func(t *testing.T) {
		engine := render.NewHeadless()
		surface := render.NewSurface("canvas")
		surface.SetMounted(false)
		s := New(engine, surface, zoom)

		if _, err := s.Rebuild(ctx, render.Spec{}, nil); !errors.Is(err, ErrSurfaceNotMounted) {
			t.Fatalf("expected ErrSurfaceNotMounted, got %v", err)
		}
		if created, _ := engine.Stats(); created != 0 {
			t.Error("no instance may be built without a surface")
		}

		surface.SetMounted(true)
		if _, err := s.Rebuild(ctx, render.Spec{}, nil); err != nil {
			t.Fatalf("rebuild after mount failed: %v", err)
		}
	})
}

func TestClose(t *testing.T) {
	engine := render.NewHeadless()
	s := New(engine, render.NewSurface("canvas"), zoom)
	if _, err := s.Rebuild(context.Background(), render.Spec{}, nil); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if engine.LiveCount() != 0 {
		t.Error("Close must release the live instance")
	}
	if _, err := s.Rebuild(context.Background(), render.Spec{}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestRelease(t *testing.T) {
	engine := render.NewHeadless()
	s := New(engine, render.NewSurface("canvas"), zoom)
	gen, _ := s.Rebuild(context.Background(), render.Spec{}, nil)

	s.Release()
	s.Release()
	if s.Live(gen) {
		t.Error("released generation must not be live")
	}
	if s.Current() != nil {
		t.Error("expected no current instance")
	}
	if st := s.Stats(); st.Released != 1 {
		t.Errorf("expected 1 release, got %d", st.Released)
	}
}
