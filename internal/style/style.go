// Package style maps projected node attributes to visual encodings.
package style

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/render"
)

// Stock encodings.
const (
	NeutralColor = "#94a3b8"
	NeutralSize  = 12.0

	AlertColor       = "#ef4444"
	AlertBorderColor = "#111"
	AlertBorderWidth = 2.0
	AlertSizeMin     = 18.0
	AlertSizeMax     = 36.0

	EdgeColor      = "#64748b"
	EdgeWidth      = 1.5
	EdgeArrowScale = 1.4
)

// DefaultRules returns the stock cascade: every node is small and neutral,
// and any node with a positive score is red, outlined and sized by score.
func DefaultRules() []domain.NodeStyleRule {
	return []domain.NodeStyleRule{
		{
			Name:  "neutral",
			Color: NeutralColor,
			Size:  NeutralSize,
		},
		{
			Name:        "suspicious",
			When:        "score > 0.0",
			Color:       AlertColor,
			BorderWidth: AlertBorderWidth,
			BorderColor: AlertBorderColor,
			ScaleMin:    AlertSizeMin,
			ScaleMax:    AlertSizeMax,
		},
	}
}

// NodeStyle is the resolved encoding of one node.
type NodeStyle struct {
	Color       string  `json:"color"`
	Size        float64 `json:"size"`
	BorderWidth float64 `json:"borderWidth"`
	BorderColor string  `json:"borderColor"`
}

type compiledRule struct {
	cfg     domain.NodeStyleRule
	program cel.Program // nil matches every node
}

// Sheet is a compiled rule cascade.
type Sheet struct {
	rules []compiledRule
}

// NewSheet compiles a rule cascade. An empty cascade uses DefaultRules.
func NewSheet(rules []domain.NodeStyleRule) (*Sheet, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("score", cel.DoubleType),
		cel.Variable("patterns", cel.StringType),
		cel.Variable("ring_id", cel.StringType),
		cel.Variable("in_ring", cel.BoolType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	s := &Sheet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		if r.ScaleMax < r.ScaleMin {
			return nil, fmt.Errorf("style rule %s: scaleMax %v below scaleMin %v", r.Name, r.ScaleMax, r.ScaleMin)
		}

		c := compiledRule{cfg: r}
		if r.When != "" {
			ast, issues := env.Compile(r.When)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("failed to compile style rule %s: %w", r.Name, issues.Err())
			}
			if ast.OutputType() != cel.BoolType {
				return nil, fmt.Errorf("style rule %s: predicate must return bool, got %s", r.Name, ast.OutputType())
			}
			c.program, err = env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("failed to create program for style rule %s: %w", r.Name, err)
			}
		}
		s.rules = append(s.rules, c)
	}
	return s, nil
}

// Default returns the stock sheet.
func Default() *Sheet {
	s, err := NewSheet(nil)
	if err != nil {
		panic(err)
	}
	return s
}

// Resolve runs the cascade for one node.
func (s *Sheet) Resolve(n domain.ProjectedNode, d domain.ScoreDomain) NodeStyle {
	activation := map[string]any{
		"id":       n.ID,
		"score":    n.Score,
		"patterns": n.Patterns,
		"ring_id":  n.RingID,
		"in_ring":  n.RingID != domain.NoRing,
	}

	var st NodeStyle
	for _, r := range s.rules {
		if r.program != nil {
			out, _, err := r.program.Eval(activation)
			if err != nil {
				slog.Debug("style rule evaluation failed", "rule", r.cfg.Name, "node", n.ID, "error", err)
				continue
			}
			if out != types.True {
				continue
			}
		}
		apply(&st, r.cfg, n.Score, d)
	}
	return st
}

func apply(st *NodeStyle, r domain.NodeStyleRule, score float64, d domain.ScoreDomain) {
	if r.Color != "" {
		st.Color = r.Color
	}
	if r.Size > 0 {
		st.Size = r.Size
	}
	if r.ScaleMax > 0 {
		st.Size = Scale(score, d, r.ScaleMin, r.ScaleMax)
	}
	if r.BorderWidth > 0 {
		st.BorderWidth = r.BorderWidth
	}
	if r.BorderColor != "" {
		st.BorderColor = r.BorderColor
	}
}

// Scale maps a score linearly from the domain onto [lo, hi], clamping
// scores outside the domain.
func Scale(score float64, d domain.ScoreDomain, lo, hi float64) float64 {
	if d.Max <= d.Min {
		return lo
	}
	t := (score - d.Min) / (d.Max - d.Min)
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return lo + t*(hi-lo)
}

// Elements converts a projection into engine elements carrying both the
// raw attributes and the resolved encodings.
func (s *Sheet) Elements(g *domain.ProjectedGraph) []render.Element {
	if g == nil {
		return []render.Element{}
	}

	elements := make([]render.Element, 0, len(g.Nodes)+len(g.Edges))
	for _, n := range g.Nodes {
		st := s.Resolve(n, g.ScoreDomain)
		elements = append(elements, render.Element{
			Group: render.GroupNodes,
			Data: map[string]any{
				"id":           n.ID,
				"score":        n.Score,
				"patterns":     n.Patterns,
				"ring_id":      n.RingID,
				"color":        st.Color,
				"size":         st.Size,
				"border_width": st.BorderWidth,
				"border_color": st.BorderColor,
			},
		})
	}
	for _, e := range g.Edges {
		elements = append(elements, render.Element{
			Group: render.GroupEdges,
			Data: map[string]any{
				"id":     e.ID,
				"source": e.Source,
				"target": e.Target,
			},
		})
	}
	return elements
}

// Stylesheet returns the engine stylesheet. Node encodings are read from
// element data so the cascade runs once on the server.
func (s *Sheet) Stylesheet() []render.StyleRule {
	return []render.StyleRule{
		{
			Selector: "node",
			Style: map[string]any{
				"background-color": "data(color)",
				"width":            "data(size)",
				"height":           "data(size)",
				"border-width":     "data(border_width)",
				"border-color":     "data(border_color)",
			},
		},
		{
			Selector: "edge",
			Style: map[string]any{
				"width":              EdgeWidth,
				"line-color":         EdgeColor,
				"target-arrow-color": EdgeColor,
				"target-arrow-shape": "triangle",
				"curve-style":        "bezier",
				"arrow-scale":        EdgeArrowScale,
			},
		},
	}
}
