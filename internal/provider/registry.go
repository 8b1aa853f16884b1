package provider

import (
	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

// Registry maps provider kinds to their adapters. It is built once at startup
// and holds no other state.
type Registry struct {
	order  []Adapter
	byKind map[booking.ProviderKind]Adapter
}

// NewRegistry builds a registry from the given adapters. Registration order is
// preserved for CanHandle-style resolution.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{
		order:  adapters,
		byKind: make(map[booking.ProviderKind]Adapter, len(adapters)),
	}
	for _, a := range adapters {
		r.byKind[a.Kind()] = a
	}
	return r
}

// Resolve returns the adapter that can handle the connection, or nil.
func (r *Registry) Resolve(conn *booking.CalendarConnection) Adapter {
	if conn == nil {
		return nil
	}
	if a, ok := r.byKind[conn.Provider]; ok {
		return a
	}
	// Kind table misses fall back to the predicate in registration order,
	// matching how adapters self-select.
	for _, a := range r.order {
		if a.CanHandle(conn) {
			return a
		}
	}
	return nil
}

// ResolveByName returns the adapter for a provider kind name, or nil.
func (r *Registry) ResolveByName(name string) Adapter {
	if a, ok := r.byKind[booking.ProviderKind(name)]; ok {
		return a
	}
	return nil
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	return r.order
}
