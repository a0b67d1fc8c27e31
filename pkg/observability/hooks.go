// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Hosts can register hooks
// at startup to receive events about feature compilation, derive pipeline
// runs, data-source loads, and action dispatch.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the engine core dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, plain logs, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEngineHooks(&myEngineHooks{})
//	    observability.SetSourceHooks(&mySourceHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Engine().OnDeriveStart(ctx, rowCount)
//	// ... run pipeline ...
//	observability.Engine().OnDeriveComplete(ctx, visibleCount, duration)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Engine Hooks
// =============================================================================

// EngineHooks receives events from the feature registry and runtime.
type EngineHooks interface {
	// Compile events
	OnCompileStart(ctx context.Context, featureCount int)
	OnCompileComplete(ctx context.Context, order []string, duration time.Duration, err error)

	// Derive pipeline events
	OnDeriveStart(ctx context.Context, rawCount int)
	OnDeriveComplete(ctx context.Context, visibleCount int, duration time.Duration)

	// Lifecycle events
	OnLifecycle(ctx context.Context, stage, featureID string, duration time.Duration, err error)

	// OnDestroyError records an error suppressed during teardown.
	OnDestroyError(ctx context.Context, featureID string, err error)
}

// =============================================================================
// Source Hooks
// =============================================================================

// SourceHooks receives events from data-source operations.
type SourceHooks interface {
	// OnLoadStart records the beginning of an init or refresh load.
	OnLoadStart(ctx context.Context, kind string)

	// OnLoadComplete records the outcome of a load.
	OnLoadComplete(ctx context.Context, kind string, rowCount int, duration time.Duration, err error)

	// OnPatch records an incremental patch applied to the raw rows.
	OnPatch(ctx context.Context, patchKind string, rowCount int)
}

// =============================================================================
// Action Hooks
// =============================================================================

// ActionHooks receives events from action and modal dispatch.
type ActionHooks interface {
	// OnTrigger records an action trigger attempt.
	OnTrigger(ctx context.Context, actionID, rowID string, enabled bool)

	// OnModalOpen records a confirmation modal being opened.
	OnModalOpen(ctx context.Context, scope, actionID, rowID string)

	// OnResolve records a modal resolution.
	OnResolve(ctx context.Context, scope, actionID string, confirmed bool)

	// OnHandlerComplete records the outcome of an action handler.
	OnHandlerComplete(ctx context.Context, actionID string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnCompileStart(context.Context, int)                                  {}
func (NoopEngineHooks) OnCompileComplete(context.Context, []string, time.Duration, error)   {}
func (NoopEngineHooks) OnDeriveStart(context.Context, int)                                  {}
func (NoopEngineHooks) OnDeriveComplete(context.Context, int, time.Duration)                {}
func (NoopEngineHooks) OnLifecycle(context.Context, string, string, time.Duration, error)   {}
func (NoopEngineHooks) OnDestroyError(context.Context, string, error)                       {}

// NoopSourceHooks is a no-op implementation of SourceHooks.
type NoopSourceHooks struct{}

func (NoopSourceHooks) OnLoadStart(context.Context, string)                                  {}
func (NoopSourceHooks) OnLoadComplete(context.Context, string, int, time.Duration, error)    {}
func (NoopSourceHooks) OnPatch(context.Context, string, int)                                 {}

// NoopActionHooks is a no-op implementation of ActionHooks.
type NoopActionHooks struct{}

func (NoopActionHooks) OnTrigger(context.Context, string, string, bool)                 {}
func (NoopActionHooks) OnModalOpen(context.Context, string, string, string)             {}
func (NoopActionHooks) OnResolve(context.Context, string, string, bool)                 {}
func (NoopActionHooks) OnHandlerComplete(context.Context, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	engineHooks EngineHooks = NoopEngineHooks{}
	sourceHooks SourceHooks = NoopSourceHooks{}
	actionHooks ActionHooks = NoopActionHooks{}
	hooksMu     sync.RWMutex
)

// SetEngineHooks registers custom engine hooks.
// This should be called once at application startup before compiling features.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetSourceHooks registers custom source hooks.
// This should be called once at application startup before loading data.
func SetSourceHooks(h SourceHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		sourceHooks = h
	}
}

// SetActionHooks registers custom action hooks.
// This should be called once at application startup before dispatching actions.
func SetActionHooks(h ActionHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		actionHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Source returns the registered source hooks.
func Source() SourceHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return sourceHooks
}

// Action returns the registered action hooks.
func Action() ActionHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return actionHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	sourceHooks = NoopSourceHooks{}
	actionHooks = NoopActionHooks{}
}
