package migration

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var ErrDuplicateMigration = errors.New("migration is already registered")

// Registry maps migration names to their units. It is the one place Go
// migrations are declared, usually from init functions.
type Registry struct {
	mu    sync.RWMutex
	units map[string]Unit
}

func NewRegistry() *Registry {
	return &Registry{units: make(map[string]Unit)}
}

// Register adds a unit under name.
func (r *Registry) Register(name string, u Unit) error {
	if !IsValidName(name) {
		return errors.Wrapf(ErrInvalidName, "[%s]", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[name]; ok {
		return errors.Wrapf(ErrDuplicateMigration, "[%s]", name)
	}

	r.units[name] = u

	return nil
}

// MustRegister is Register that panics, meant for init functions.
func (r *Registry) MustRegister(name string, u Unit) {
	if err := r.Register(name, u); err != nil {
		panic(err)
	}
}

// Lookup returns the unit registered under name.
func (r *Registry) Lookup(name string) (Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[name]
	return u, ok
}

// Migrations returns every registered unit in ascending name order.
func (r *Registry) Migrations() (Migrations, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(Migrations, 0, len(r.units))
	for name, u := range r.units {
		m, err := New(name, u)
		if err != nil {
			return nil, err
		}

		result = append(result, m)
	}

	sort.Sort(result)

	return result, nil
}
