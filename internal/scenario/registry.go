package scenario

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrFrozen is returned by Register once a run has started.
var ErrFrozen = errors.New("scenario registry is frozen")

// DuplicateNameError is returned when registering a name twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("scenario %q is already registered", e.Name)
}

// NotFoundError is returned when looking up an unknown scenario.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scenario %q not found", e.Name)
}

// Registry holds named scenarios.
//
// Scenarios are registered at process start. Freeze is called when a run
// begins; after that the registry is read-only and Lookup takes no lock.
type Registry struct {
	mu        sync.Mutex
	scenarios map[string]*Scenario
	frozen    atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scenarios: make(map[string]*Scenario),
	}
}

// Register adds a scenario to the registry.
func (r *Registry) Register(s *Scenario) error {
	if s == nil {
		return errors.New("scenario is nil")
	}
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if s.Iterate == nil {
		return fmt.Errorf("scenario %q has no iterate function", s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return ErrFrozen
	}
	if _, exists := r.scenarios[s.Name]; exists {
		return &DuplicateNameError{Name: s.Name}
	}

	r.scenarios[s.Name] = s
	return nil
}

// Lookup returns the scenario registered under name.
func (r *Registry) Lookup(name string) (*Scenario, error) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	s, ok := r.scenarios[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return s, nil
}

// Names returns the registered scenario names in sorted order.
func (r *Registry) Names() []string {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}
