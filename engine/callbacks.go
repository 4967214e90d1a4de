package engine

import (
	"context"
	"sync"

	"github.com/hupe1980/runmesh/logging"
	"github.com/hupe1980/runmesh/run"
	"github.com/hupe1980/runmesh/strategy"
)

// CallbackType defines the run lifecycle points where callbacks execute.
//
// Callbacks hook into the execution pipeline without modifying core logic.
// Only CallbackBeforeRun can influence execution: an error returned from it
// fails the run before the strategy is invoked. Errors from the remaining
// types are logged and otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeRun is triggered after a run was marked running and
	// before its strategy executes.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterRun is triggered after a run completed successfully.
	CallbackAfterRun CallbackType = "after_run"

	// CallbackOnError is triggered after a run was recorded as failed.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnKill is triggered after a run was killed.
	CallbackOnKill CallbackType = "on_kill"
)

// CallbackContext carries the data available to a callback.
type CallbackContext struct {
	// Run is a snapshot of the record at the time of the callback.
	Run run.Record

	// Outcome is set for CallbackAfterRun.
	Outcome strategy.Outcome

	// Err is set for CallbackOnError.
	Err error

	// CallbackType identifies which lifecycle point triggered the callback.
	CallbackType CallbackType
}

// Callback is a lifecycle hook. Callbacks run synchronously on the goroutine
// executing the run and should be fast.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackAfterRun,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("run %s finished in %dms", cc.Run.RunID, cc.Run.DurationMs)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds registered callbacks by type. Callbacks of one type
// execute in registration order; the first error stops the chain.
//
// Registration and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for callbackType and
// returns the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured entry per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	args := []any{
		"callback", string(c.callbackType),
		"run_id", callbackCtx.Run.RunID,
		"label", callbackCtx.Run.Label,
		"status", string(callbackCtx.Run.Status),
	}
	if callbackCtx.Err != nil {
		args = append(args, "error", callbackCtx.Err.Error())
	}
	c.logger.Info("engine.callback", args...)
	return nil
}
