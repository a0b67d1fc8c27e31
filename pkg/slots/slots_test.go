package slots

import (
	"strings"
	"testing"

	"github.com/rowkit/rowkit/pkg/engine"
	"github.com/rowkit/rowkit/pkg/errors"
)

type fullAPI struct{}

func (fullAPI) Set(any) {}
func (fullAPI) Clear()  {}

type partialAPI struct{}

func (partialAPI) Set(any) {}

func TestValidatePassesWhenHandlersExist(t *testing.T) {
	contracts := map[string]engine.UIContract{
		"filter": {Slots: []string{Filters}, RequiredHandlers: []string{"Set", "Clear"}},
	}
	features := map[string]any{"filter": fullAPI{}}
	active := map[string]bool{Filters: true}

	if err := Validate(contracts, features, active, ModeStrict, nil); err != nil {
		t.Errorf("Validate = %v, want nil", err)
	}
}

func TestValidateStrictReportsEveryMissingHandler(t *testing.T) {
	contracts := map[string]engine.UIContract{
		"filter": {Slots: []string{Filters}, RequiredHandlers: []string{"Set", "Clear", "Value"}},
	}
	features := map[string]any{"filter": partialAPI{}}
	active := map[string]bool{Filters: true}

	err := Validate(contracts, features, active, ModeStrict, nil)
	if !errors.Is(err, errors.ErrCodeMissingHandler) {
		t.Fatalf("error = %v, want MISSING_HANDLER", err)
	}
	msg := err.Error()
	for _, h := range []string{"filter.Clear", "filter.Value"} {
		if !strings.Contains(msg, h) {
			t.Errorf("error %q should list %s", msg, h)
		}
	}
	if strings.Contains(msg, "filter.Set") {
		t.Errorf("error %q should not list a present handler", msg)
	}
}

func TestValidateSkipsInactiveSlots(t *testing.T) {
	contracts := map[string]engine.UIContract{
		"filter": {Slots: []string{Filters}, RequiredHandlers: []string{"Set", "Clear", "Value"}},
	}
	features := map[string]any{"filter": partialAPI{}}

	// Filters slot not active: contract not checked.
	if err := Validate(contracts, features, map[string]bool{Table: true}, ModeStrict, nil); err != nil {
		t.Errorf("Validate = %v, want nil for inactive slots", err)
	}
}

func TestValidateLenientPasses(t *testing.T) {
	contracts := map[string]engine.UIContract{
		"filter": {Slots: []string{Filters}, RequiredHandlers: []string{"Value"}},
	}
	features := map[string]any{"filter": partialAPI{}}
	active := map[string]bool{Filters: true}

	if err := Validate(contracts, features, active, ModeLenient, nil); err != nil {
		t.Errorf("lenient Validate = %v, want nil", err)
	}
}

func TestCheckNilAPI(t *testing.T) {
	contracts := map[string]engine.UIContract{
		"ghost": {Slots: []string{Toolbar}, RequiredHandlers: []string{"Run"}},
	}
	active := map[string]bool{Toolbar: true}

	missing := Check(contracts, map[string]any{}, active)
	if len(missing) != 1 || missing[0].Handler != "Run" {
		t.Errorf("missing = %v, want [ghost.Run]", missing)
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	contracts := map[string]engine.UIContract{
		"b": {Slots: []string{Toolbar}, RequiredHandlers: []string{"X"}},
		"a": {Slots: []string{Toolbar}, RequiredHandlers: []string{"Y"}},
	}
	active := map[string]bool{Toolbar: true}

	missing := Check(contracts, map[string]any{}, active)
	if len(missing) != 2 || missing[0].FeatureID != "a" || missing[1].FeatureID != "b" {
		t.Errorf("missing = %v, want sorted by feature id", missing)
	}
}
