// Package engine interprets an assembled workflow graph as a program. It
// walks the graph from the start node, threads control through decision
// branches, maintains the run's variable store, records a replayable step
// trace, and exposes pause/resume/stop controls to subscribers.
//
// One engine runs at most one workflow at a time; a second ExecuteWorkflow
// while a run is in flight is rejected with ErrRunInProgress. Every failure
// during a run is captured into the execution context's error list and
// surfaced through subscription, never returned to the caller.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cyohn55/agentic-visual-scripting/pkg/eventbus"
	"github.com/cyohn55/agentic-visual-scripting/pkg/events"
	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
	"github.com/cyohn55/agentic-visual-scripting/pkg/otelhelper"
	"github.com/cyohn55/agentic-visual-scripting/pkg/variables"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrRunInProgress is returned when ExecuteWorkflow is called while a run
// (including a stopped run whose traversal has not drained yet) is in
// flight.
var ErrRunInProgress = errors.New("a workflow run is already in progress")

// ErrNoStartNode is the error recorded when the graph has no start node.
const ErrNoStartNode = "No start node found."

// DefaultNodeDelay paces each node visit so the canvas can animate the
// cursor. Deliberate UI pacing, not incidental.
const DefaultNodeDelay = 500 * time.Millisecond

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, observer) }
}

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithNodeDelay overrides the per-node pacing delay. Zero disables pacing.
func WithNodeDelay(delay time.Duration) Option {
	return func(e *Engine) { e.nodeDelay = delay }
}

// WithMaxSteps bounds the number of node visits per run. Exceeding the
// budget records an error and ends the run; zero leaves traversal
// unbounded, matching the editor's historical behavior on cyclic graphs.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// Engine executes one workflow at a time. All exported methods are safe
// for concurrent use.
type Engine struct {
	logger    *slog.Logger
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	nodeDelay time.Duration
	maxSteps  int

	mu        sync.Mutex
	observers []Observer
	vars      *variables.Store
	state     models.ExecutionContext
	history   []models.ExecutionStep
	resumeCh  chan struct{}
	cancelRun context.CancelFunc
	runDone   chan struct{}
	stopped   bool
	runStart  time.Time
}

func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    slog.With("module", "engine"),
		nodeDelay: DefaultNodeDelay,
		vars:      variables.NewStore(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Subscribe registers an observer for context-change snapshots.
func (e *Engine) Subscribe(observer Observer) {
	e.mu.Lock()
	e.observers = append(e.observers, observer)
	e.mu.Unlock()
}

// ExecuteWorkflow starts a run over the given frozen graph snapshot. The
// run proceeds asynchronously; completion and failures are observable
// through subscription, the context, and the step trace. The execution
// path, errors, and trace are cleared per run, but variables persist until
// Reset is called.
func (e *Engine) ExecuteWorkflow(ctx context.Context, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) error {
	e.mu.Lock()

	if e.state.Running {
		e.mu.Unlock()

		return ErrRunInProgress
	}

	// A stopped run's traversal goroutine may not have drained yet; it
	// still owns the trace until it observes cancellation.
	if e.runDone != nil {
		select {
		case <-e.runDone:
		default:
			e.mu.Unlock()

			return ErrRunInProgress
		}
	}

	runID := "exec-" + uuid.New().String()[:8]
	done := make(chan struct{})

	e.state.RunID = runID
	e.state.Running = true
	e.state.Paused = false
	e.state.CurrentNodeID = nil
	e.state.ExecutionPath = nil
	e.state.Errors = nil
	e.history = nil
	e.resumeCh = nil
	e.stopped = false
	e.runDone = done
	e.runStart = time.Now()
	e.mu.Unlock()

	e.logger.Info("starting workflow run", "run_id", runID, "nodes", len(nodes), "edges", len(edges))
	e.notify()
	e.publish(ctx, events.RunStarted{
		BaseEvent: e.baseEvent(events.RunStartedEvent, runID),
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	})

	g := newGraph(nodes, edges)

	start := g.startNode()
	if start == nil {
		e.recordError(ctx, ErrNoStartNode)
		e.finish(ctx, done)

		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancelRun = cancel
	e.mu.Unlock()

	go e.run(runCtx, g, start.ID, done)

	return nil
}

// run is the traversal loop. It recovers any panic into a single recorded
// error, so nothing escapes the engine's boundary.
func (e *Engine) run(ctx context.Context, g *graph, startID string, done chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			e.recordError(ctx, fmt.Sprintf("workflow execution failed: %v", r))
		}

		e.finish(ctx, done)
	}()

	var runSpan trace.Span
	if e.tracer != nil {
		ctx, runSpan = otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
			attribute.String(otelhelper.RunIDKey, e.runID()))
		defer runSpan.End()
	}

	currentID := startID
	visited := 0

	for currentID != "" {
		if !e.awaitResume(ctx) {
			return
		}

		node := g.node(currentID)
		if node == nil {
			e.recordError(ctx, fmt.Sprintf("node %s not found", currentID))

			return
		}

		e.enterNode(ctx, node)

		if !e.pace(ctx) {
			return
		}

		next := e.executeNode(ctx, g, node)

		if node.Kind == models.NodeKindEnd {
			return
		}

		visited++
		if e.maxSteps > 0 && visited >= e.maxSteps {
			e.recordError(ctx, fmt.Sprintf("step budget of %d exceeded, cycle suspected", e.maxSteps))

			return
		}

		currentID = next
	}
}

// executeNode wraps per-kind dispatch in a node span when tracing is on.
func (e *Engine) executeNode(ctx context.Context, g *graph, node *models.WorkflowNode) string {
	if e.tracer == nil {
		return e.dispatch(ctx, g, node)
	}

	nodeCtx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
	)
	defer span.End()

	return e.dispatch(nodeCtx, g, node)
}

// awaitResume blocks while the run is paused. It returns false when the
// run was cancelled, true when traversal may continue. Resume takes effect
// only here, at the node boundary.
func (e *Engine) awaitResume(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		e.mu.Lock()
		ch := e.resumeCh
		e.mu.Unlock()

		if ch == nil {
			return true
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

// pace inserts the visualization delay before node-specific work.
func (e *Engine) pace(ctx context.Context) bool {
	if e.nodeDelay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(e.nodeDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) enterNode(ctx context.Context, node *models.WorkflowNode) {
	id := node.ID

	e.mu.Lock()
	e.state.CurrentNodeID = &id
	e.state.ExecutionPath = append(e.state.ExecutionPath, node.ID)
	pathLength := len(e.state.ExecutionPath)
	runID := e.state.RunID
	e.mu.Unlock()

	e.logger.Debug("entering node", "run_id", runID, "node_id", node.ID, "kind", node.Kind)
	e.notify()
	e.publish(ctx, events.NodeEntered{
		BaseEvent:  e.baseEvent(events.NodeEnteredEvent, runID),
		NodeID:     node.ID,
		Kind:       node.Kind,
		PathLength: pathLength,
	})
}

// finish closes out a run. A stopped run already had its observable flags
// cleared by Stop and is not reported as completed.
func (e *Engine) finish(ctx context.Context, done chan struct{}) {
	e.mu.Lock()
	stopped := e.stopped
	runID := e.state.RunID
	steps := len(e.history)
	runErrors := append([]string(nil), e.state.Errors...)
	duration := time.Since(e.runStart)

	if !stopped {
		e.state.Running = false
		e.state.Paused = false
		e.state.CurrentNodeID = nil
	}

	e.cancelRun = nil
	e.mu.Unlock()

	if !stopped {
		e.logger.Info("workflow run finished", "run_id", runID, "steps", steps, "errors", len(runErrors))
		e.notify()
		e.publish(ctx, events.RunCompleted{
			BaseEvent: e.baseEvent(events.RunCompletedEvent, runID),
			Steps:     steps,
			Errors:    runErrors,
			Duration:  duration,
		})
	}

	close(done)
}

// Pause suspends traversal cooperatively. It takes effect at the next node
// boundary, never mid-node.
func (e *Engine) Pause() {
	e.mu.Lock()

	if !e.state.Running || e.state.Paused {
		e.mu.Unlock()

		return
	}

	e.state.Paused = true
	e.resumeCh = make(chan struct{})
	runID := e.state.RunID
	nodeID := currentNode(e.state)
	e.mu.Unlock()

	e.logger.Info("run paused", "run_id", runID)
	e.notify()
	e.publish(context.Background(), events.RunPaused{
		BaseEvent: e.baseEvent(events.RunPausedEvent, runID),
		NodeID:    nodeID,
	})
}

// Resume clears the pause flag; the suspended traversal continues at the
// next node boundary.
func (e *Engine) Resume() {
	e.mu.Lock()

	if !e.state.Paused {
		e.mu.Unlock()

		return
	}

	e.state.Paused = false

	if e.resumeCh != nil {
		close(e.resumeCh)
		e.resumeCh = nil
	}

	runID := e.state.RunID
	nodeID := currentNode(e.state)
	e.mu.Unlock()

	e.logger.Info("run resumed", "run_id", runID)
	e.notify()
	e.publish(context.Background(), events.RunResumed{
		BaseEvent: e.baseEvent(events.RunResumedEvent, runID),
		NodeID:    nodeID,
	})
}

// Stop cancels the current run. Cancellation is cooperative: the traversal
// halts at its next suspension point and stops mutating observable state,
// while flags and the cursor are cleared immediately.
func (e *Engine) Stop() {
	e.mu.Lock()

	if !e.state.Running {
		e.mu.Unlock()

		return
	}

	e.stopped = true
	e.state.Running = false
	e.state.Paused = false
	e.state.CurrentNodeID = nil

	if e.resumeCh != nil {
		close(e.resumeCh)
		e.resumeCh = nil
	}

	cancel := e.cancelRun
	runID := e.state.RunID
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	e.logger.Info("run stopped", "run_id", runID)
	e.notify()
	e.publish(context.Background(), events.RunStopped{
		BaseEvent: e.baseEvent(events.RunStoppedEvent, runID),
	})
}

// Reset discards the context, trace, and variables. It cancels any
// in-flight traversal and waits for it to drain first, so a reset can
// never race with background work.
func (e *Engine) Reset() {
	e.mu.Lock()
	cancel := e.cancelRun
	done := e.runDone

	if e.resumeCh != nil {
		close(e.resumeCh)
		e.resumeCh = nil
	}

	e.stopped = true
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if done != nil {
		<-done
	}

	e.mu.Lock()
	e.vars.Reset()
	e.state = models.ExecutionContext{}
	e.history = nil
	e.resumeCh = nil
	e.cancelRun = nil
	e.runDone = nil
	e.stopped = false
	e.mu.Unlock()

	e.logger.Info("engine reset")
	e.notify()
}

// Wait blocks until the current run's traversal goroutine returns. It
// returns immediately when no run was ever started.
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.runDone
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Context returns a snapshot of the observable execution state.
func (e *Engine) Context() models.ExecutionContext {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.snapshotLocked()
}

// History returns the step trace of the current or most recent run.
func (e *Engine) History() []models.ExecutionStep {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]models.ExecutionStep(nil), e.history...)
}

// SetVariable writes a variable from outside a run (seed values, property
// panel edits) and notifies subscribers. Bus subscribers see the same
// VariableSet event as note-node assignments.
func (e *Engine) SetVariable(name string, value any) {
	variable := e.vars.Set(name, value)

	e.mu.Lock()
	runID := e.state.RunID
	e.mu.Unlock()

	e.notify()
	e.publish(context.Background(), events.VariableSet{
		BaseEvent: e.baseEvent(events.VariableSetEvent, runID),
		Name:      variable.Name,
		Kind:      variable.Kind,
		Value:     variable.Value,
	})
}

// GetVariable returns the stored variable and whether it exists.
func (e *Engine) GetVariable(name string) (models.Variable, bool) {
	return e.vars.Get(name)
}

// SeedVariables loads a workflow document's initial variables.
func (e *Engine) SeedVariables(values map[string]any) {
	e.vars.Seed(values)
	e.notify()
}

func (e *Engine) snapshotLocked() models.ExecutionContext {
	snapshot := models.ExecutionContext{
		RunID:         e.state.RunID,
		Variables:     e.vars.Snapshot(),
		Running:       e.state.Running,
		Paused:        e.state.Paused,
		ExecutionPath: append([]string{}, e.state.ExecutionPath...),
		Errors:        append([]string{}, e.state.Errors...),
	}

	if e.state.CurrentNodeID != nil {
		id := *e.state.CurrentNodeID
		snapshot.CurrentNodeID = &id
	}

	return snapshot
}

func (e *Engine) notify() {
	e.mu.Lock()
	snapshot := e.snapshotLocked()
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()

	for _, observer := range observers {
		observer.OnContextChange(snapshot)
	}
}

func (e *Engine) recordError(ctx context.Context, message string) {
	e.mu.Lock()
	e.state.Errors = append(e.state.Errors, message)
	runID := e.state.RunID
	e.mu.Unlock()

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		otelhelper.SetError(span, errors.New(message),
			attribute.String(otelhelper.RunIDKey, runID))
	}

	e.logger.Error("run error", "run_id", runID, "error", message)
	e.notify()
	e.publish(ctx, events.ErrorRecorded{
		BaseEvent: e.baseEvent(events.ErrorRecordedEvent, runID),
		Message:   message,
	})
}

func (e *Engine) recordStep(nodeID string, action models.StepAction, input, output any) {
	step := models.ExecutionStep{
		NodeID:    nodeID,
		Action:    action,
		Input:     input,
		Output:    output,
		Timestamp: time.Now(),
	}

	e.mu.Lock()
	e.history = append(e.history, step)
	e.mu.Unlock()
}

func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, e.runID(), event); err != nil {
		e.logger.Warn("failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, runID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
	}
}

func (e *Engine) runID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state.RunID
}

func currentNode(state models.ExecutionContext) string {
	if state.CurrentNodeID == nil {
		return ""
	}

	return *state.CurrentNodeID
}
