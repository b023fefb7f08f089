package source

import (
	"fmt"

	"github.com/opencourt/courtwatch/internal/model"
)

// Info describes a registered source for read APIs.
type Info struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BookingSystem string `json:"bookingSystem"`
}

// Registry holds every integrated source. It is built once at startup and
// passed down explicitly; there is no package-level singleton.
type Registry struct {
	order    []string
	adapters map[string]Adapter
	infos    map[string]Info
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		infos:    make(map[string]Info),
	}
}

// Register adds a source. Registering the same ID twice is a conflict.
func (r *Registry) Register(info Info, a Adapter) error {
	if info.ID == "" {
		return fmt.Errorf("register source: %w: empty id", model.ErrValidation)
	}
	if a == nil {
		return fmt.Errorf("register source %s: %w: nil adapter", info.ID, model.ErrValidation)
	}
	if _, exists := r.adapters[info.ID]; exists {
		return fmt.Errorf("register source %s: %w", info.ID, model.ErrConflict)
	}
	r.order = append(r.order, info.ID)
	r.adapters[info.ID] = a
	r.infos[info.ID] = info
	return nil
}

// Adapter looks up the adapter for a source.
func (r *Registry) Adapter(sourceID string) (Adapter, bool) {
	a, ok := r.adapters[sourceID]
	return a, ok
}

// Info looks up the metadata for a source.
func (r *Registry) Info(sourceID string) (Info, bool) {
	in, ok := r.infos[sourceID]
	return in, ok
}

// IDs returns source IDs in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns metadata for all sources in registration order.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.infos[id])
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int { return len(r.order) }
