package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"

	council "github.com/zero-day-ai/council"
)

// ModelRegistry is a shared catalogue of models, such as the etcd registry.
type ModelRegistry interface {
	GetModel(ctx context.Context, id string) (Model, bool, error)
}

// Lookup is one strategy for resolving a model id.
type Lookup interface {
	Lookup(ctx context.Context, id string) (Model, bool, error)
}

// LocalModels resolves ids from models loaded in-process.
type LocalModels map[string]Model

// NewLocalModels indexes models by their ID.
func NewLocalModels(models ...Model) LocalModels {
	local := make(LocalModels, len(models))
	for _, m := range models {
		if m == nil {
			continue
		}
		local[m.ID()] = m
	}
	return local
}

// Lookup implements Lookup.
func (l LocalModels) Lookup(_ context.Context, id string) (Model, bool, error) {
	m, ok := l[id]
	return m, ok, nil
}

// IDs returns the loaded model ids in sorted order.
func (l LocalModels) IDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RegistryLookup resolves ids through a shared ModelRegistry.
type RegistryLookup struct {
	Registry ModelRegistry
}

// Lookup implements Lookup.
func (r RegistryLookup) Lookup(ctx context.Context, id string) (Model, bool, error) {
	if r.Registry == nil {
		return nil, false, nil
	}
	return r.Registry.GetModel(ctx, id)
}

// Resolver tries each lookup in order and returns the first hit.
type Resolver struct {
	lookups []Lookup
}

// NewResolver creates a resolver over lookups. Nil entries are skipped.
func NewResolver(lookups ...Lookup) *Resolver {
	r := &Resolver{}
	for _, l := range lookups {
		if l != nil {
			r.lookups = append(r.lookups, l)
		}
	}
	return r
}

// Resolve returns the model for id. A lookup that errors does not stop later
// lookups from answering; its error is attached if every lookup misses.
func (r *Resolver) Resolve(ctx context.Context, id string) (Model, error) {
	var errs []error
	for _, l := range r.lookups {
		m, ok, err := l.Lookup(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok && m != nil {
			return m, nil
		}
	}

	cause := fmt.Errorf("model %q not found", id)
	if len(errs) > 0 {
		cause = fmt.Errorf("%w: %w", cause, errors.Join(errs...))
	}
	return nil, council.NewModelNotFoundError("Resolver.Resolve", cause).
		WithContext(map[string]any{"model_id": id})
}
