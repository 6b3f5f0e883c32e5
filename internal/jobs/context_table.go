package jobs

import (
	"fmt"
	"log/slog"
)

// ContextTable is the lazy factory living inside one worker: it creates
// context instances on first use and destroys them once no registered job
// references their id any longer.
type ContextTable struct {
	specs     map[string]ContextSpec
	factories map[string]ContextFactory
	instances map[string]any
}

// NewContextTable builds a table over the given specs, each resolved
// against a factory keyed by the spec's UID.
func NewContextTable(specs []ContextSpec, factories map[string]ContextFactory) *ContextTable {
	specByUID := make(map[string]ContextSpec, len(specs))
	for _, s := range specs {
		specByUID[s.UID] = s
	}
	return &ContextTable{
		specs:     specByUID,
		factories: factories,
		instances: make(map[string]any),
	}
}

// Get returns the instance for contextID, creating it on miss via the
// spec's factory. Failures propagate to the caller, who records them as an
// ERRORED job.
func (t *ContextTable) Get(log *slog.Logger, contextID string) (any, error) {
	if inst, ok := t.instances[contextID]; ok {
		return inst, nil
	}

	spec, ok := t.specs[contextID]
	if !ok {
		return nil, fmt.Errorf("jobs: unknown context id %q", contextID)
	}
	factory, ok := t.factories[contextID]
	if !ok {
		return nil, fmt.Errorf("jobs: no factory registered for context id %q", contextID)
	}

	inst, err := factory.Create(log, spec)
	if err != nil {
		return nil, fmt.Errorf("jobs: failed to create context %q: %w", contextID, err)
	}
	t.instances[contextID] = inst
	return inst, nil
}

// DestroyUnused tears down every stored instance not present in activeIDs.
// Destruction failures are logged but never stop eviction of the
// remaining entries.
func (t *ContextTable) DestroyUnused(log *slog.Logger, activeIDs map[string]struct{}) {
	for id, inst := range t.instances {
		if _, active := activeIDs[id]; active {
			continue
		}
		factory := t.factories[id]
		if factory != nil {
			if err := factory.Destroy(log, inst); err != nil {
				log.Warn("jobs: failed to destroy unused context",
					slog.String("context_id", id), slog.String("err", err.Error()))
			}
		}
		delete(t.instances, id)
	}
}

// Len reports the number of live instances, for tests and diagnostics.
func (t *ContextTable) Len() int {
	return len(t.instances)
}
