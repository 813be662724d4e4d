package engine

import (
	"log/slog"

	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
)

// Observer receives a snapshot of the execution context on every change:
// node entered, variable written, pause/resume toggled, error appended,
// run completed. Delivery is synchronous with the mutation, so
// implementations should be fast; heavy work belongs elsewhere.
type Observer interface {
	OnContextChange(snapshot models.ExecutionContext)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(snapshot models.ExecutionContext)

func (f ObserverFunc) OnContextChange(snapshot models.ExecutionContext) {
	f(snapshot)
}

// NoopObserver is an Observer that does nothing.
type NoopObserver struct{}

func (NoopObserver) OnContextChange(models.ExecutionContext) {}

// CompositeObserver fans out snapshots to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver returns an Observer that forwards each snapshot to
// every non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))

	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}

	if len(filtered) == 0 {
		return NoopObserver{}
	}

	if len(filtered) == 1 {
		return filtered[0]
	}

	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnContextChange(snapshot models.ExecutionContext) {
	for _, o := range c.observers {
		o.OnContextChange(snapshot)
	}
}

// LoggingObserver writes one structured log line per context change.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver returns an Observer logging via the given logger, or
// slog.Default() when logger is nil.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnContextChange(snapshot models.ExecutionContext) {
	current := ""
	if snapshot.CurrentNodeID != nil {
		current = *snapshot.CurrentNodeID
	}

	o.Logger.Debug("context_change",
		slog.String("run_id", snapshot.RunID),
		slog.String("current_node", current),
		slog.Bool("running", snapshot.Running),
		slog.Bool("paused", snapshot.Paused),
		slog.Int("path_length", len(snapshot.ExecutionPath)),
		slog.Int("errors", len(snapshot.Errors)),
	)
}
