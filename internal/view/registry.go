package view

import (
	"context"
	"sync"
)

// Registry holds the open views of a process.
type Registry struct {
	mu    sync.RWMutex
	views map[string]*View
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*View)}
}

// Add registers a view.
func (r *Registry) Add(v *View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.views[v.ID()]; !ok {
		openViews.Inc()
	}
	r.views[v.ID()] = v
}

// Get returns a view by id.
func (r *Registry) Get(id string) (*View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	return v, ok
}

// Remove closes and unregisters a view.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	if ok {
		delete(r.views, id)
		openViews.Dec()
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return v.Close()
}

// Len returns the number of open views.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// Unload clears every view showing an analysis. It returns how many
// views were cleared.
func (r *Registry) Unload(ctx context.Context, analysisID string) int {
	r.mu.RLock()
	var showing []*View
	for _, v := range r.views {
		if v.AnalysisID() == analysisID {
			showing = append(showing, v)
		}
	}
	r.mu.RUnlock()

	for _, v := range showing {
		_ = v.Load(ctx, "", nil)
	}
	return len(showing)
}

// CloseAll closes every view.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	openViews.Sub(float64(len(views)))
	r.mu.Unlock()

	for _, v := range views {
		_ = v.Close()
	}
}
