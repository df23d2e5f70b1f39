package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"forge/internal/logging"
)

// Executor dispatches tool invocations by name. It never returns an error:
// every failure becomes an "Error:" result the model can react to.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Registry returns the tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs the named tool with raw model arguments and returns the text
// sent back to the model.
func (e *Executor) Execute(ctx context.Context, name string, raw map[string]any) (text string) {
	tool, ok := e.registry.Get(name)
	if !ok {
		logging.Warn("unknown tool requested", "tool", name)
		return "Error: Unknown tool: " + name
	}

	if raw == nil {
		raw = map[string]any{}
	}
	args, err := tool.Decode(raw)
	if err != nil {
		var verr ValidationError
		if errors.As(err, &verr) {
			return fmt.Sprintf("Error: invalid arguments for %s: %s", name, verr.Error())
		}
		return fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logging.Error("tool panicked", "tool", name, "panic", r, "stack", string(buf[:n]))
			text = fmt.Sprintf("Error: tool %s failed unexpectedly: %v", name, r)
		}
	}()

	result := tool.Execute(ctx, args)
	logging.Info("tool executed",
		"tool", name,
		"success", result.Success,
		"duration", time.Since(start))
	if !result.Success {
		logging.Debug("tool error", "tool", name, "error", result.Error)
	}
	return result.Text()
}
