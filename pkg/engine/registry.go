package engine

import (
	"context"
	"time"

	"github.com/rowkit/rowkit/pkg/errors"
	"github.com/rowkit/rowkit/pkg/observability"
)

// DeriveStep is one compiled entry in the derive pipeline.
type DeriveStep struct {
	FeatureID string
	Fn        DeriveFunc
}

// Hook is one compiled lifecycle hook entry.
type Hook struct {
	FeatureID string
	Fn        HookFunc
}

// Plan is the ordered artifact of compilation: the staged pipelines, the
// shared feature-API namespace, and the UI-contract map. A Plan is built
// once, must not be modified afterwards, and is safe to reuse across runtime
// instances (each runtime copies the hook arrays at construction).
type Plan struct {
	// Order is the resolved feature execution order. The same order governs
	// every stage: derive, init, refresh, destroy, and UI-contract checks.
	Order []string

	// Staged pipelines, each in Order.
	DeriveSteps  []DeriveStep
	InitHooks    []Hook
	RefreshHooks []Hook
	DestroyHooks []Hook

	// Features maps feature id to its public API object. The map identity is
	// shared with the Context the plan was compiled against.
	Features map[string]any

	// Contracts maps feature id to its declared UI contract.
	Contracts map[string]UIContract
}

// Registry collects feature registrations and compiles them into a Plan.
//
// Registries are single-use: registering after compilation and compiling
// twice are both configuration errors. A Registry is not safe for concurrent
// use; registration and compilation happen during host setup.
type Registry struct {
	features []Feature
	ids      map[string]bool
	compiled bool
}

// NewRegistry creates an empty feature registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]bool)}
}

// Register adds a feature declaration. Registration order is the tie-break
// for the topological sort, so it is part of the engine's observable
// behavior.
//
// Returns DUPLICATE_FEATURE if the id is already registered,
// REGISTRY_SEALED if Compile has already run, or INVALID_FEATURE for a
// malformed id.
func (r *Registry) Register(f Feature) error {
	if r.compiled {
		return errors.New(errors.ErrCodeRegistrySealed,
			"cannot register feature %q after compilation", f.ID)
	}
	if err := errors.ValidateFeatureID(f.ID); err != nil {
		return err
	}
	if r.ids[f.ID] {
		return errors.New(errors.ErrCodeDuplicateFeature,
			"feature %q already registered", f.ID)
	}
	r.ids[f.ID] = true
	r.features = append(r.features, f)
	return nil
}

// MustRegister is Register for static feature sets known to be well-formed;
// it panics on error. Host setup code uses it where a registration failure
// is a programming bug.
func (r *Registry) MustRegister(f Feature) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Compile resolves the feature order, validates and instantiates every
// feature, and assembles the staged pipelines.
//
// For each feature, in resolved order, Compile records its UI contract,
// runs its Validate hook (an error aborts compilation), calls Create and
// stores the returned API under the feature's id in the shared namespace,
// and appends its derive step and lifecycle hooks to the stage arrays.
//
// Compile is single-use: a second call returns ALREADY_COMPILED. After a
// successful compile the registry is sealed.
func (r *Registry) Compile(c *Context) (*Plan, error) {
	if r.compiled {
		return nil, errors.New(errors.ErrCodeAlreadyCompiled, "registry already compiled")
	}
	r.compiled = true

	start := time.Now()
	obsCtx := context.Background()
	observability.Engine().OnCompileStart(obsCtx, len(r.features))

	order, err := Resolve(r.features)
	if err != nil {
		observability.Engine().OnCompileComplete(obsCtx, nil, time.Since(start), err)
		return nil, err
	}

	byID := make(map[string]Feature, len(r.features))
	for _, f := range r.features {
		byID[f.ID] = f
	}

	plan := &Plan{
		Order:     order,
		Features:  c.features,
		Contracts: make(map[string]UIContract),
	}

	for _, id := range order {
		f := byID[id]

		if f.UI != nil {
			plan.Contracts[id] = *f.UI
		}

		if f.Validate != nil {
			if err := f.Validate(ValidateInfo{Meta: c.meta, HasUI: f.UI != nil}); err != nil {
				observability.Engine().OnCompileComplete(obsCtx, nil, time.Since(start), err)
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err,
					"feature %q rejected its configuration", id)
			}
		}

		if f.Create != nil {
			api, err := f.Create(c)
			if err != nil {
				observability.Engine().OnCompileComplete(obsCtx, nil, time.Since(start), err)
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err,
					"feature %q failed to create its API", id)
			}
			c.features[id] = api
		}

		if f.Derive != nil {
			plan.DeriveSteps = append(plan.DeriveSteps, DeriveStep{FeatureID: id, Fn: f.Derive})
		}
		if f.OnInit != nil {
			plan.InitHooks = append(plan.InitHooks, Hook{FeatureID: id, Fn: f.OnInit})
		}
		if f.OnRefresh != nil {
			plan.RefreshHooks = append(plan.RefreshHooks, Hook{FeatureID: id, Fn: f.OnRefresh})
		}
		if f.OnDestroy != nil {
			plan.DestroyHooks = append(plan.DestroyHooks, Hook{FeatureID: id, Fn: f.OnDestroy})
		}
	}

	observability.Engine().OnCompileComplete(obsCtx, order, time.Since(start), nil)
	return plan, nil
}

// FeatureList returns the registered declarations in registration order.
// Useful for visualizing the dependency graph before or after compilation.
func (r *Registry) FeatureList() []Feature {
	out := make([]Feature, len(r.features))
	copy(out, r.features)
	return out
}
