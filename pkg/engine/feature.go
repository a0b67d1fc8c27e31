package engine

import (
	"context"

	"github.com/rowkit/rowkit/pkg/state"
)

// DeriveFunc is a pure row-transform step contributed by a feature.
// It receives the shared context (for reading its own state slice) and the
// rows produced by the previous step, and returns the transformed rows.
// It must not mutate the input slice or its rows in place.
type DeriveFunc func(c *Context, rows state.Rows) state.Rows

// HookFunc is a lifecycle hook. Hooks run strictly in dependency order; each
// is awaited to completion before the next starts, so dependency order is
// also temporal order.
type HookFunc func(ctx context.Context, c *Context) error

// UIContract declares which presentation slots a feature renders into and
// which methods must exist on its API object for those slots to be
// well-formed. The contract is checked once at startup by pkg/slots.
type UIContract struct {
	// Slots names the presentation slots the feature expects to be active.
	Slots []string
	// RequiredHandlers names the API methods the feature must expose when
	// one of its slots is populated.
	RequiredHandlers []string
}

// ValidateInfo is the read-only view handed to a feature's Validate hook.
type ValidateInfo struct {
	// Meta is the engine metadata (row id key, field schema).
	Meta Meta
	// HasUI reports whether the feature declared a UI contract.
	HasUI bool
}

// Feature is an immutable plugin descriptor. Authors create one, register it
// once, and the registry compiles it once; declarations must not be modified
// afterwards.
//
// All fields except ID are optional. A feature with only a Derive step is a
// pure row transformer; a feature with only Create publishes an API without
// touching the pipeline.
type Feature struct {
	// ID is the unique feature identifier. It keys the feature's state slice
	// and its entry in the shared API namespace.
	ID string

	// DependsOn lists feature ids that must execute before this one.
	// Referencing an unregistered id is a configuration error.
	DependsOn []string

	// Before lists feature ids this one must execute before. Referencing an
	// unregistered id is a configuration error.
	Before []string

	// After lists feature ids this one should execute after, when they are
	// present. Unlike DependsOn, an unregistered id is ignored: After is a
	// soft ordering hint, not a requirement.
	After []string

	// Validate is a pre-flight configuration check run during compilation.
	// Returning an error aborts the compile.
	Validate func(ValidateInfo) error

	// Create instantiates the feature's public API object, stored under ID
	// in the shared namespace. Features look each other up by id and probe
	// for the methods they need.
	Create func(c *Context) (any, error)

	// Derive contributes a step to the derive pipeline.
	Derive DeriveFunc

	// Lifecycle hooks, run in dependency order by the runtime.
	OnInit    HookFunc
	OnRefresh HookFunc
	OnDestroy HookFunc

	// UI declares the feature's presentation slot contract.
	UI *UIContract
}

// FieldSchema describes one record field for hosts that render column-based
// views. The engine itself imposes no semantics on fields beyond carrying
// them in Meta.
type FieldSchema struct {
	// Name is the row map key.
	Name string `json:"name"`
	// Label is a human-readable column title. Defaults to Name when empty.
	Label string `json:"label,omitempty"`
	// Kind is an optional type hint (string, number, time, bool).
	Kind string `json:"kind,omitempty"`
}

// Title returns the display label for the field.
func (f FieldSchema) Title() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Meta is the read-only engine metadata available to every feature.
type Meta struct {
	// RowIDKey is the row map key holding each record's identity.
	// Features that address individual rows (selection, row actions,
	// patch application) require it to be non-empty.
	RowIDKey string `json:"row_id_key"`
	// Fields is the optional record field schema.
	Fields []FieldSchema `json:"fields,omitempty"`
}
