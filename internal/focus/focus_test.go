package focus

import (
	"testing"

	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/projector"
)

var rings = []domain.FraudRing{
	{RingID: "R1", MemberAccounts: []string{"A", "B"}, PatternType: "cycle", RiskScore: 95},
	{RingID: "R2", MemberAccounts: []string{"C", "D", "E"}, PatternType: "smurfing", RiskScore: 60},
}

func TestSelectorActions(t *testing.T) {
	s := NewSelector(rings)

	actions := s.Actions()
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[0].Label != GlobalLabel || actions[0].RingID != projector.GlobalView || !actions[0].Active {
		t.Errorf("expected active global action first, got %+v", actions[0])
	}
	if actions[1].RingID != "R1" || actions[2].RingID != "R2" {
		t.Errorf("expected rings in result order, got %+v", actions[1:])
	}
	if actions[2].Members != 3 || actions[2].PatternType != "smurfing" {
		t.Errorf("unexpected ring action: %+v", actions[2])
	}
}

func TestSelectorSelect(t *testing.T) {
	s := NewSelector(rings)

	if !s.Select("R2") {
		t.Error("selecting a new ring should report a change")
	}
	if s.Select("R2") {
		t.Error("reselecting the active ring should not report a change")
	}
	if s.Active() != "R2" {
		t.Errorf("expected R2 active, got %q", s.Active())
	}

	for _, a := range s.Actions() {
		if a.Active != (a.RingID == "R2") {
			t.Errorf("action %q active=%v", a.Label, a.Active)
		}
	}

	if !s.Select(projector.GlobalView) || s.Active() != projector.GlobalView {
		t.Error("expected return to global view")
	}

	t.Run("UnknownRingKept", func(t *testing.T) {
		if !s.Select("GHOST") {
			t.Error("unknown ring should still change the filter")
		}
		if s.Active() != "GHOST" {
			t.Errorf("expected GHOST filter, got %q", s.Active())
		}
		for _, a := range s.Actions() {
			if a.Active != (a.RingID == projector.GlobalView) {
				t.Errorf("expected only the global action active, got %q active=%v", a.Label, a.Active)
			}
		}
	})
}

func TestSelectorReset(t *testing.T) {
	s := NewSelector(rings)
	s.Select("R1")

	s.Reset([]domain.FraudRing{{RingID: "R9"}})
	if s.Active() != projector.GlobalView {
		t.Error("Reset must return to global view")
	}
	if got := len(s.Actions()); got != 2 {
		t.Errorf("expected 2 actions after reset, got %d", got)
	}

	s.Reset(nil)
	if got := len(s.Actions()); got != 1 {
		t.Errorf("expected only the global action, got %d", got)
	}
}

func TestSelectorDuplicateRings(t *testing.T) {
	s := NewSelector([]domain.FraudRing{
		{RingID: "R1", PatternType: "cycle", MemberAccounts: []string{"A"}},
		{RingID: "R2", PatternType: "fan_in"},
		{RingID: "R1", PatternType: "smurfing", MemberAccounts: []string{"A", "B"}},
	})
	s.Select("R1")

	actions := s.Actions()
	if len(actions) != 3 {
		t.Fatalf("expected global plus 2 ring actions, got %d", len(actions))
	}
	if actions[1].RingID != "R1" || actions[2].RingID != "R2" {
		t.Errorf("expected first-seen order R1, R2, got %q, %q", actions[1].RingID, actions[2].RingID)
	}
	if actions[1].PatternType != "smurfing" || actions[1].Members != 2 {
		t.Errorf("expected the last R1 record to win, got %+v", actions[1])
	}

	active := 0
	for _, a := range actions {
		if a.Active {
			active++
		}
	}
	if active != 1 {
		t.Errorf("expected exactly one active action, got %d", active)
	}
}
