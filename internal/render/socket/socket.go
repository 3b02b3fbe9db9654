// Package socket drives a remote rendering engine over a websocket.
//
// The browser side owns drawing and hit-testing. The server sends mount,
// zoom and destroy frames and receives pointer events tagged with the
// instance they came from. One connection hosts at most one live instance.
package socket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opensource-finance/ringscope/internal/render"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Maximum client message size.
	maxMessageSize = 64 * 1024
)

// Frame types sent to the client.
const (
	FrameMount   = "mount"
	FrameZoom    = "zoom"
	FrameDestroy = "destroy"
	FrameState   = "state"
	FrameError   = "error"
)

// Client message types.
const (
	MessageEvent = "event"
	MessageFocus = "focus"
)

// ErrDisconnected is returned when writing to a closed connection.
var ErrDisconnected = errors.New("client disconnected")

// Conn is the subset of *websocket.Conn the engine uses.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Frame is a server to client message.
type Frame struct {
	Type     string             `json:"type"`
	Instance string             `json:"instance,omitempty"`
	Spec     *render.Spec       `json:"spec,omitempty"`
	Zoom     *render.ZoomBounds `json:"zoom,omitempty"`
	State    any                `json:"state,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// ClientMessage is a client to server message.
type ClientMessage struct {
	Type     string       `json:"type"`
	Instance string       `json:"instance,omitempty"`
	Event    render.Event `json:"event"`
	Ring     string       `json:"ring,omitempty"`
}

// FocusFunc handles a ring focus request from the client.
type FocusFunc func(ctx context.Context, ringID string)

// Engine renders on the client at the other end of a connection. It is
// both the engine and the surface: the surface is mounted while the
// connection is open.
type Engine struct {
	id   string
	conn Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	live      *Instance
	connected bool
}

// New wraps an open connection.
func New(conn Conn) *Engine {
	if ws, ok := conn.(*websocket.Conn); ok {
		ws.SetReadLimit(maxMessageSize)
		// Hijacked connections keep the HTTP server's deadlines.
		_ = ws.SetReadDeadline(time.Time{})
	}
	return &Engine{
		id:        uuid.New().String(),
		conn:      conn,
		connected: true,
	}
}

// ID returns the surface id.
func (e *Engine) ID() string { return e.id }

// Mounted reports whether the client is still connected.
func (e *Engine) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// Mount sends the scene to the client.
func (e *Engine) Mount(ctx context.Context, surface render.Surface, spec render.Spec) (render.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if !e.connected {
		e.mu.Unlock()
		return nil, ErrDisconnected
	}
	if e.live != nil {
		e.mu.Unlock()
		return nil, render.ErrSurfaceBusy
	}
	inst := &Instance{
		id:       uuid.New().String(),
		engine:   e,
		handlers: make(map[render.EventType][]render.Handler),
	}
	e.live = inst
	e.mu.Unlock()

	if err := e.Send(Frame{Type: FrameMount, Instance: inst.id, Spec: &spec}); err != nil {
		e.release(inst)
		return nil, err
	}
	return inst, nil
}

// Send writes one frame. Writes are serialized.
func (e *Engine) Send(f Frame) error {
	if !e.Mounted() {
		return ErrDisconnected
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if ws, ok := e.conn.(*websocket.Conn); ok {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	}
	if err := e.conn.WriteJSON(f); err != nil {
		slog.Warn("failed to write frame",
			"surface_id", e.id,
			"frame", f.Type,
			"error", err,
		)
		return err
	}
	return nil
}

// SendState writes a state frame.
func (e *Engine) SendState(state any) error {
	return e.Send(Frame{Type: FrameState, State: state})
}

// Serve reads client messages until the connection closes or ctx is done.
// Pointer events go to the live instance; events tagged with another
// instance id are dropped. Focus requests go to onFocus.
func (e *Engine) Serve(ctx context.Context, onFocus FocusFunc) error {
	defer e.disconnect()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = e.conn.Close()
		case <-done:
		}
	}()

	for {
		var msg ClientMessage
		if err := e.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		switch msg.Type {
		case MessageEvent:
			e.deliver(msg)
		case MessageFocus:
			if onFocus != nil {
				onFocus(ctx, msg.Ring)
			}
		default:
			slog.Debug("ignoring client message",
				"surface_id", e.id,
				"type", msg.Type,
			)
		}
	}
}

func (e *Engine) deliver(msg ClientMessage) {
	if !msg.Event.Type.Valid() {
		_ = e.Send(Frame{Type: FrameError, Error: "unknown event type " + string(msg.Event.Type)})
		return
	}

	e.mu.Lock()
	inst := e.live
	e.mu.Unlock()

	if inst == nil || inst.id != msg.Instance {
		slog.Debug("dropping event for released instance",
			"surface_id", e.id,
			"instance", msg.Instance,
		)
		return
	}
	inst.emit(msg.Event)
}

func (e *Engine) disconnect() {
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	_ = e.conn.Close()
}

func (e *Engine) release(inst *Instance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live == inst {
		e.live = nil
	}
}

// Instance is an instance living in the client.
type Instance struct {
	id     string
	engine *Engine

	mu        sync.Mutex
	handlers  map[render.EventType][]render.Handler
	destroyed bool
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// On registers a handler.
func (i *Instance) On(t render.EventType, h render.Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return
	}
	i.handlers[t] = append(i.handlers[t], h)
}

// SetZoomBounds sends the zoom bounds to the client.
func (i *Instance) SetZoomBounds(z render.ZoomBounds) error {
	i.mu.Lock()
	destroyed := i.destroyed
	i.mu.Unlock()
	if destroyed {
		return render.ErrInstanceDestroyed
	}
	return i.engine.Send(Frame{Type: FrameZoom, Instance: i.id, Zoom: &z})
}

// Destroy detaches handlers and tells the client to tear the instance
// down. A disconnected client is not an error.
func (i *Instance) Destroy() error {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return nil
	}
	i.destroyed = true
	i.handlers = make(map[render.EventType][]render.Handler)
	i.mu.Unlock()

	i.engine.release(i)
	if err := i.engine.Send(Frame{Type: FrameDestroy, Instance: i.id}); err != nil && !errors.Is(err, ErrDisconnected) {
		return err
	}
	return nil
}

func (i *Instance) emit(ev render.Event) {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return
	}
	hs := append([]render.Handler(nil), i.handlers[ev.Type]...)
	i.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}
