package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	ErrUnknownEntryStrategy = errors.New("unknown entry strategy")
	ErrUnknownExitStrategy  = errors.New("unknown exit strategy")
	ErrDuplicateName        = errors.New("strategy name already registered")
)

// Registry maps strategy names to constructors. Constructors return a
// fresh instance per call so concurrent runs never share strategy state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]func() EntryStrategy
	exits   map[string]func() ExitStrategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]func() EntryStrategy),
		exits:   make(map[string]func() ExitStrategy),
	}
}

// RegisterEntry registers an entry strategy constructor under a name.
func (r *Registry) RegisterEntry(name string, ctor func() EntryStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: entry %q", ErrDuplicateName, name)
	}
	r.entries[name] = ctor
	return nil
}

// RegisterExit registers an exit strategy constructor under a name.
func (r *Registry) RegisterExit(name string, ctor func() ExitStrategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exits[name]; exists {
		return fmt.Errorf("%w: exit %q", ErrDuplicateName, name)
	}
	r.exits[name] = ctor
	return nil
}

// NewEntry constructs a fresh entry strategy by name.
func (r *Registry) NewEntry(name string) (EntryStrategy, error) {
	r.mu.RLock()
	ctor, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntryStrategy, name)
	}
	return ctor(), nil
}

// NewExit constructs a fresh exit strategy by name.
func (r *Registry) NewExit(name string) (ExitStrategy, error) {
	r.mu.RLock()
	ctor, ok := r.exits[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExitStrategy, name)
	}
	return ctor(), nil
}

// EntryNames returns the registered entry strategy names, sorted.
func (r *Registry) EntryNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExitNames returns the registered exit strategy names, sorted.
func (r *Registry) ExitNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.exits))
	for name := range r.exits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
