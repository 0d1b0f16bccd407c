// Package registry holds the process-wide errand table. The table is
// populated during startup and read-only afterwards; there is no runtime
// re-registration.
package registry

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"errands/internal/croneval"
	"errands/internal/domain"
)

type Registry struct {
	mu    sync.RWMutex
	byID  map[string]domain.ErrandDefinition
	order []string // registration order, drives scan and tie-break order
}

func New() *Registry {
	return &Registry{byID: make(map[string]domain.ErrandDefinition)}
}

// Register adds a definition. It fails with domain.ErrDuplicateErrand when
// the id is already taken and with domain.ErrInvalidCron when the expression
// does not parse; an existing definition is never altered by a rejected call.
func (r *Registry) Register(def domain.ErrandDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: errand id is required", domain.ErrConfiguration)
	}
	if !def.Tier.Valid() {
		return fmt.Errorf("%w: errand %s: unknown tier %q", domain.ErrConfiguration, def.ID, def.Tier)
	}
	if def.Run == nil {
		return fmt.Errorf("%w: errand %s: callable is required", domain.ErrConfiguration, def.ID)
	}
	if err := croneval.Validate(def.CronExpr); err != nil {
		return fmt.Errorf("errand %s: %w", def.ID, err)
	}
	if def.Name == "" {
		def.Name = def.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[def.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateErrand, def.ID)
	}
	r.byID[def.ID] = def
	r.order = append(r.order, def.ID)
	return nil
}

// RegisterFunc registers fn under its runtime qualified name
// (e.g. "myapp/jobs.PruneSessions"), so two registrations of the same
// function collide the same way they would in the registry of a larger
// system keyed by symbol name.
func (r *Registry) RegisterFunc(cronExpr string, tier domain.Tier, fn domain.Callable) error {
	name := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
	return r.Register(domain.ErrandDefinition{
		ID:       name,
		Name:     name,
		CronExpr: cronExpr,
		Tier:     tier,
		Run:      fn,
	})
}

func (r *Registry) Get(id string) (domain.ErrandDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byID[id]
	return def, ok
}

// ForTier returns the tier's definitions in registration order. The order is
// stable, which makes simultaneous-due tie-breaking deterministic.
func (r *Registry) ForTier(tier domain.Tier) []domain.ErrandDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var defs []domain.ErrandDefinition
	for _, id := range r.order {
		if def := r.byID[id]; def.Tier == tier {
			defs = append(defs, def)
		}
	}
	return defs
}

// All returns every definition in registration order.
func (r *Registry) All() []domain.ErrandDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]domain.ErrandDefinition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.byID[id])
	}
	return defs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
