package domain

// Attribute defaults for accounts with no suspicious-account record.
const (
	NoPatterns = "None"
	NoRing     = "N/A"
)

// ProjectedGraph is the renderable node/edge set derived from an
// AnalysisResult and a ring filter. It is rebuilt, never mutated.
type ProjectedGraph struct {
	// Filter is the ring filter that was actually applied. It is empty for
	// the global view, including when an unknown ring id fell back to it.
	Filter string `json:"filter"`

	Nodes       []ProjectedNode `json:"nodes"`
	Edges       []ProjectedEdge `json:"edges"`
	ScoreDomain ScoreDomain     `json:"scoreDomain"`
}

// ProjectedNode carries the per-account visual attributes.
type ProjectedNode struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Patterns string  `json:"patterns"`
	RingID   string  `json:"ring_id"`
}

// ProjectedEdge is an edge with a synthetic, projection-local identifier.
type ProjectedEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// ScoreDomain is the score range used to interpolate node sizes.
type ScoreDomain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Node returns the node with the given id.
func (g *ProjectedGraph) Node(id string) (ProjectedNode, bool) {
	if g == nil {
		return ProjectedNode{}, false
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return ProjectedNode{}, false
}

// Empty reports whether there is nothing to render.
func (g *ProjectedGraph) Empty() bool {
	return g == nil || (len(g.Nodes) == 0 && len(g.Edges) == 0)
}
