package steprunner

import (
	"fmt"
	"strings"
	"sync"

	"rigproc/internal/services"
)

// Registry is an in-memory CodeRepository of Go entry functions.
type Registry struct {
	mu    sync.RWMutex
	order []string
	funcs map[string]EntryFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]EntryFunc)}
}

// Register adds or replaces the entry function for name.
func (r *Registry) Register(name string, fn EntryFunc) error {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return services.Wrap(services.ErrValidation, "", "register step", "step name is required", nil)
	}
	if fn == nil {
		return services.Wrap(services.ErrValidation, name, "register step", "entry function is nil", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; !exists {
		r.order = append(r.order, name)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister is Register for static setup; it panics on invalid input.
func (r *Registry) MustRegister(name string, fn EntryFunc) *Registry {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Find(name string) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.funcs[name]; !ok {
		return Handle{}, services.Wrap(services.ErrNotFound, name, "find step", "no registered entry", nil)
	}
	return Handle{Name: name}, nil
}

func (r *Registry) Load(handle Handle) (EntryFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[handle.Name]
	if !ok {
		return nil, fmt.Errorf("step %q is not registered", handle.Name)
	}
	return fn, nil
}

// List returns registered names in registration order.
func (r *Registry) List() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out, nil
}
