package style

import (
	"math"
	"testing"

	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/render"
)

var stockDomain = domain.ScoreDomain{Min: 0, Max: 100}

func TestDefaultEncoding(t *testing.T) {
	sheet := Default()

	t.Run("ZeroScoreIsNeutral", func(t *testing.T) {
		st := sheet.Resolve(domain.ProjectedNode{ID: "B", RingID: domain.NoRing, Patterns: domain.NoPatterns}, stockDomain)
		if st.Color != NeutralColor || st.Size != NeutralSize {
			t.Errorf("expected neutral style, got %+v", st)
		}
		if st.BorderWidth != 0 {
			t.Errorf("expected no border, got %v", st.BorderWidth)
		}
	})

	t.Run("PositiveScoreIsAlert", func(t *testing.T) {
		st := sheet.Resolve(domain.ProjectedNode{ID: "A", Score: 80, RingID: "R1"}, stockDomain)
		if st.Color != AlertColor {
			t.Errorf("expected %s, got %s", AlertColor, st.Color)
		}
		if st.BorderWidth != AlertBorderWidth || st.BorderColor != AlertBorderColor {
			t.Errorf("expected alert border, got %+v", st)
		}
		want := 18 + 0.8*18
		if math.Abs(st.Size-want) > 1e-9 {
			t.Errorf("expected size %v, got %v", want, st.Size)
		}
	})

	t.Run("SizeEndpoints", func(t *testing.T) {
		low := sheet.Resolve(domain.ProjectedNode{ID: "x", Score: 0.0001}, stockDomain)
		high := sheet.Resolve(domain.ProjectedNode{ID: "y", Score: 100}, stockDomain)
		if low.Size < AlertSizeMin || low.Size > AlertSizeMin+0.01 {
			t.Errorf("expected size near %v, got %v", AlertSizeMin, low.Size)
		}
		if high.Size != AlertSizeMax {
			t.Errorf("expected size %v, got %v", AlertSizeMax, high.Size)
		}
	})
}

func TestScale(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		d     domain.ScoreDomain
		want  float64
	}{
		{"Midpoint", 50, stockDomain, 27},
		{"ClampHigh", 250, stockDomain, 36},
		{"ClampLow", -5, stockDomain, 18},
		{"WidenedDomain", 140, domain.ScoreDomain{Min: 0, Max: 140}, 36},
		{"DegenerateDomain", 10, domain.ScoreDomain{Min: 5, Max: 5}, 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scale(tt.score, tt.d, 18, 36); got != tt.want {
				t.Errorf("Scale(%v) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

func TestCustomRules(t *testing.T) {
	sheet, err := NewSheet([]domain.NodeStyleRule{
		{Name: "base", Color: "#ccc", Size: 10},
		{Name: "ringed", When: "in_ring", BorderWidth: 3, BorderColor: "#00f"},
		{Name: "cycles", When: `patterns.contains("cycle") && score >= 50`, Color: "#f0f"},
	})
	if err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}

	st := sheet.Resolve(domain.ProjectedNode{ID: "A", Score: 60, Patterns: "cycle", RingID: "R1"}, stockDomain)
	if st.Color != "#f0f" || st.Size != 10 || st.BorderWidth != 3 {
		t.Errorf("unexpected cascade result: %+v", st)
	}

	st = sheet.Resolve(domain.ProjectedNode{ID: "B", Score: 60, Patterns: "cycle", RingID: domain.NoRing}, stockDomain)
	if st.BorderWidth != 0 {
		t.Errorf("node outside a ring should have no border, got %+v", st)
	}
}

func TestInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule domain.NodeStyleRule
	}{
		{"BadSyntax", domain.NodeStyleRule{Name: "bad", When: "score >>> 1"}},
		{"NonBool", domain.NodeStyleRule{Name: "num", When: "score + 1.0"}},
		{"UnknownVariable", domain.NodeStyleRule{Name: "unk", When: "amount > 1.0"}},
		{"InvertedScale", domain.NodeStyleRule{Name: "inv", ScaleMin: 30, ScaleMax: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSheet([]domain.NodeStyleRule{tt.rule}); err == nil {
				t.Error("expected compile error")
			}
		})
	}
}

func TestElements(t *testing.T) {
	g := &domain.ProjectedGraph{
		Nodes: []domain.ProjectedNode{
			{ID: "A", Score: 80, Patterns: "cycle", RingID: "R1"},
			{ID: "B", Patterns: domain.NoPatterns, RingID: domain.NoRing},
		},
		Edges:       []domain.ProjectedEdge{{ID: "edge-0", Source: "A", Target: "B"}},
		ScoreDomain: stockDomain,
	}

	elements := Default().Elements(g)
	if len(elements) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(elements))
	}
	if elements[0].Group != render.GroupNodes || elements[0].Data["id"] != "A" {
		t.Errorf("unexpected first element: %+v", elements[0])
	}
	if elements[0].Data["color"] != AlertColor {
		t.Errorf("expected resolved color in element data, got %v", elements[0].Data["color"])
	}
	if elements[1].Data["ring_id"] != domain.NoRing {
		t.Errorf("expected N/A ring, got %v", elements[1].Data["ring_id"])
	}
	edge := elements[2]
	if edge.Group != render.GroupEdges || edge.Data["source"] != "A" || edge.Data["target"] != "B" {
		t.Errorf("unexpected edge element: %+v", edge)
	}

	if got := Default().Elements(nil); len(got) != 0 {
		t.Errorf("expected no elements for nil graph, got %d", len(got))
	}
}

func TestStylesheet(t *testing.T) {
	rules := Default().Stylesheet()
	if len(rules) != 2 {
		t.Fatalf("expected 2 selector blocks, got %d", len(rules))
	}
	edge := rules[1]
	if edge.Selector != "edge" {
		t.Fatalf("expected edge selector, got %s", edge.Selector)
	}
	if edge.Style["target-arrow-shape"] != "triangle" || edge.Style["arrow-scale"] != EdgeArrowScale {
		t.Errorf("unexpected edge style: %v", edge.Style)
	}
}
