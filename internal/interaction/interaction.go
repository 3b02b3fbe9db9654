// Package interaction turns pointer events into hover and selection state.
package interaction

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/projector"
	"github.com/opensource-finance/ringscope/internal/render"
)

// HoverPhase is the hover state.
type HoverPhase int

const (
	HoverNone HoverPhase = iota
	HoverNode
)

func (p HoverPhase) String() string {
	if p == HoverNode {
		return "node"
	}
	return "none"
}

// Change reports which part of the state an event modified.
type Change uint8

const (
	ChangeHover Change = 1 << iota
	ChangeSelection
)

// Has reports whether c includes other.
func (c Change) Has(other Change) bool { return c&other != 0 }

// State is a snapshot of the controller.
type State struct {
	Phase   HoverPhase
	Hovered domain.ProjectedNode

	// PointerX and PointerY are the last known page coordinates.
	PointerX float64
	PointerY float64

	// Selected is nil when nothing is selected.
	Selected *domain.SuspiciousAccount
}

// Tooltip is the hover card.
type Tooltip struct {
	Visible bool     `json:"visible"`
	Left    float64  `json:"left"`
	Top     float64  `json:"top"`
	Title   string   `json:"title,omitempty"`
	Lines   []string `json:"lines,omitempty"`
}

// Field is one labeled row of the detail panel.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Detail is the side panel for the selected account.
type Detail struct {
	AccountID string  `json:"accountId"`
	Fields    []Field `json:"fields"`
}

// Controller holds hover and selection state for one view. It is not safe
// for concurrent use.
type Controller struct {
	offset float64
	graph  *domain.ProjectedGraph
	index  *projector.Index
	state  State
}

// NewController creates a controller. Offset is added to both pointer
// coordinates to place the tooltip.
func NewController(offset float64) *Controller {
	return &Controller{
		offset: offset,
		index:  projector.NewIndex(nil),
	}
}

// Bind points the controller at a new projection. Hover is cleared since
// it referred to the released instance. Selection is kept.
func (c *Controller) Bind(g *domain.ProjectedGraph, idx *projector.Index) {
	c.graph = g
	if idx != nil {
		c.index = idx
	}
	c.state.Phase = HoverNone
	c.state.Hovered = domain.ProjectedNode{}
}

// Reset clears hover and selection.
func (c *Controller) Reset() {
	c.state = State{}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	st := c.state
	if st.Selected != nil {
		sel := *st.Selected
		st.Selected = &sel
	}
	return st
}

// Handle applies one event and reports what changed.
func (c *Controller) Handle(ev render.Event) Change {
	switch ev.Type {
	case render.EventPointerEnterNode:
		c.state.Phase = HoverNode
		c.state.Hovered = c.attributes(ev.NodeID)
		return ChangeHover

	case render.EventPointerMove:
		c.state.PointerX = ev.PageX
		c.state.PointerY = ev.PageY
		if c.state.Phase == HoverNode {
			return ChangeHover
		}
		return 0

	case render.EventPointerLeaveNode:
		if c.state.Phase == HoverNone {
			return 0
		}
		c.state.Phase = HoverNone
		c.state.Hovered = domain.ProjectedNode{}
		return ChangeHover

	case render.EventTapNode:
		acct, ok := c.index.Account(ev.NodeID)
		if !ok {
			if c.state.Selected == nil {
				return 0
			}
			c.state.Selected = nil
			return ChangeSelection
		}
		if c.state.Selected != nil && sameAccount(*c.state.Selected, acct) {
			return 0
		}
		c.state.Selected = &acct
		return ChangeSelection

	case render.EventTapBackground:
		if c.state.Selected == nil {
			return 0
		}
		c.state.Selected = nil
		return ChangeSelection

	default:
		slog.Debug("ignoring unknown pointer event", "type", ev.Type)
		return 0
	}
}

// attributes returns the projected attributes of a node, falling back to
// the index for nodes outside the current projection.
func (c *Controller) attributes(id string) domain.ProjectedNode {
	if c.graph != nil {
		if n, ok := c.graph.Node(id); ok {
			return n
		}
	}
	return c.index.Attributes(id)
}

// Tooltip returns the hover card. It is hidden unless a node is hovered.
func (c *Controller) Tooltip() Tooltip {
	if c.state.Phase != HoverNode {
		return Tooltip{}
	}
	n := c.state.Hovered
	return Tooltip{
		Visible: true,
		Left:    c.state.PointerX + c.offset,
		Top:     c.state.PointerY + c.offset,
		Title:   n.ID,
		Lines: []string{
			fmt.Sprintf("Score: %s", formatScore(n.Score)),
			fmt.Sprintf("Patterns: %s", n.Patterns),
			fmt.Sprintf("Ring: %s", n.RingID),
		},
	}
}

// Detail returns the panel for the selected account, or nil.
func (c *Controller) Detail() *Detail {
	sel := c.state.Selected
	if sel == nil {
		return nil
	}

	patterns := domain.NoPatterns
	if len(sel.DetectedPatterns) > 0 {
		patterns = strings.Join(sel.DetectedPatterns, ", ")
	}
	ring := domain.NoRing
	if c.index.HasRing(sel.RingID) {
		ring = sel.RingID
	}

	return &Detail{
		AccountID: sel.AccountID,
		Fields: []Field{
			{Label: "ID", Value: sel.AccountID},
			{Label: "Suspicion Score", Value: formatScore(sel.SuspicionScore)},
			{Label: "Patterns", Value: patterns},
			{Label: "Ring ID", Value: ring},
		},
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sameAccount(a, b domain.SuspiciousAccount) bool {
	if a.AccountID != b.AccountID || a.SuspicionScore != b.SuspicionScore || a.RingID != b.RingID {
		return false
	}
	if len(a.DetectedPatterns) != len(b.DetectedPatterns) {
		return false
	}
	for i := range a.DetectedPatterns {
		if a.DetectedPatterns[i] != b.DetectedPatterns[i] {
			return false
		}
	}
	return true
}
