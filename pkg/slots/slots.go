// Package slots defines the fixed presentation-slot vocabulary and the UI
// contract validation pass.
//
// The engine core never renders anything; hosts populate named slots
// (toolbar, filters panel, table, pagination, modal outlet, ...) with their
// own presentation components. Each feature's UI contract declares which
// slots it expects to be active and which methods must exist on its API
// object for those slots to be well-formed. Validate checks that contract
// once at startup, in strict (fail) or lenient (warn) mode.
package slots

import (
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
)

// The fixed slot vocabulary.
const (
	Toolbar    = "toolbar"
	Filters    = "filters"
	SortBar    = "sortbar"
	Table      = "table"
	Pagination = "pagination"
	Modal      = "modal"
	Loading    = "loading"
	Empty      = "empty"
	ErrorState = "error"
)

// All lists every slot in the vocabulary.
var All = []string{Toolbar, Filters, SortBar, Table, Pagination, Modal, Loading, Empty, ErrorState}

// Mode selects how contract violations are reported.
type Mode string

// Validation modes.
const (
	// ModeStrict fails validation on the first pass with an error listing
	// every missing handler.
	ModeStrict Mode = "strict"
	// ModeLenient logs each missing handler and continues.
	ModeLenient Mode = "lenient"
)

// Missing describes one absent required handler.
type Missing struct {
	FeatureID string
	Handler   string
}

// Validate checks every feature's UI contract against the active slot set.
//
// A feature is checked only when at least one of its declared slots is
// active. Required handlers are probed by method name on the feature's API
// object (a duck-typed capability check; the namespace carries no static
// contract). Every missing handler is reported, not just the first.
//
// In strict mode a non-empty result becomes a MISSING_HANDLER error; in
// lenient mode each is logged as a warning and validation passes.
func Validate(contracts map[string]engine.UIContract, features map[string]any, active map[string]bool, mode Mode, logger *log.Logger) error {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	missing := Check(contracts, features, active)
	if len(missing) == 0 {
		return nil
	}

	if mode == ModeLenient {
		for _, m := range missing {
			logger.Warn("missing required UI handler", "feature", m.FeatureID, "handler", m.Handler)
		}
		return nil
	}

	parts := make([]string, len(missing))
	for i, m := range missing {
		parts[i] = m.FeatureID + "." + m.Handler
	}
	return errors.New(errors.ErrCodeMissingHandler,
		"missing required UI handlers: %s", strings.Join(parts, ", "))
}

// Check returns every missing handler without reporting. Feature ids are
// visited in sorted order so the result is deterministic.
func Check(contracts map[string]engine.UIContract, features map[string]any, active map[string]bool) []Missing {
	var missing []Missing

	ids := make([]string, 0, len(contracts))
	for id := range contracts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		contract := contracts[id]
		if !anyActive(contract.Slots, active) {
			continue
		}

		api := features[id]
		for _, handler := range contract.RequiredHandlers {
			if !hasMethod(api, handler) {
				missing = append(missing, Missing{FeatureID: id, Handler: handler})
			}
		}
	}
	return missing
}

func anyActive(declared []string, active map[string]bool) bool {
	for _, s := range declared {
		if active[s] {
			return true
		}
	}
	return false
}

func hasMethod(api any, name string) bool {
	if api == nil {
		return false
	}
	return reflect.ValueOf(api).MethodByName(name).IsValid()
}
