// Package render defines the boundary with the graph rendering engine.
//
// The engine owns layout, hit-testing and drawing. Ringscope hands it
// elements, a stylesheet and layout options, registers for pointer events
// and sets zoom bounds. Nothing else crosses this boundary.
package render

import (
	"context"
	"errors"

	"github.com/opensource-finance/ringscope/internal/domain"
)

var (
	// ErrSurfaceBusy is returned by an engine asked to mount on a surface
	// that already hosts a live instance.
	ErrSurfaceBusy = errors.New("surface already hosts a live instance")

	// ErrInstanceDestroyed is returned by calls on a released instance.
	ErrInstanceDestroyed = errors.New("instance destroyed")
)

// Element groups.
const (
	GroupNodes = "nodes"
	GroupEdges = "edges"
)

// Element is a node or edge in the engine's {data: {...}} shape.
type Element struct {
	Group string         `json:"group"`
	Data  map[string]any `json:"data"`
}

// StyleRule is one selector block of the engine stylesheet.
type StyleRule struct {
	Selector string         `json:"selector"`
	Style    map[string]any `json:"style"`
}

// ZoomBounds bounds the viewport zoom factor. Panning is unrestricted.
type ZoomBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Spec is everything an engine needs to construct an instance.
type Spec struct {
	Elements []Element           `json:"elements"`
	Style    []StyleRule         `json:"style"`
	Layout   domain.LayoutConfig `json:"layout"`
}

// EventType names a pointer event emitted by an instance.
type EventType string

const (
	EventPointerEnterNode EventType = "pointerEnterNode"
	EventPointerMove      EventType = "pointerMove"
	EventPointerLeaveNode EventType = "pointerLeaveNode"
	EventTapNode          EventType = "tapNode"
	EventTapBackground    EventType = "tapBackground"
)

// EventTypes lists every event a view subscribes to.
var EventTypes = []EventType{
	EventPointerEnterNode,
	EventPointerMove,
	EventPointerLeaveNode,
	EventTapNode,
	EventTapBackground,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Event is a pointer event. NodeID is set for node events, PageX/PageY for moves.
type Event struct {
	Type   EventType `json:"type"`
	NodeID string    `json:"nodeId,omitempty"`
	PageX  float64   `json:"pageX,omitempty"`
	PageY  float64   `json:"pageY,omitempty"`
}

// Handler receives events from an instance.
type Handler func(Event)

// Surface is the drawing area an instance is bound to.
type Surface interface {
	ID() string
	Mounted() bool
}

// Engine constructs instances. Implementations must not invoke handlers
// from inside Mount or Destroy.
type Engine interface {
	Mount(ctx context.Context, surface Surface, spec Spec) (Instance, error)
}

// Instance is one live engine instance bound to a surface.
type Instance interface {
	ID() string

	// On registers a handler for an event type.
	On(t EventType, h Handler)

	// SetZoomBounds limits the zoom factor.
	SetZoomBounds(z ZoomBounds) error

	// Destroy detaches every handler and frees engine resources.
	// Calling it more than once is a no-op.
	Destroy() error
}
