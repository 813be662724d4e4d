package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cyohn55/agentic-visual-scripting/pkg/eventbus"
	"github.com/cyohn55/agentic-visual-scripting/pkg/events"
	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(opts ...Option) *Engine {
	base := []Option{WithLogger(quietLogger()), WithNodeDelay(0)}

	return New(append(base, opts...)...)
}

func node(id string, kind models.NodeKind) *models.WorkflowNode {
	return &models.WorkflowNode{ID: id, Kind: kind, Label: id}
}

func decisionNode(id, cond string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:       id,
		Kind:     models.NodeKindDecision,
		Decision: &models.DecisionPayload{Condition: cond},
	}
}

func noteNode(id, content string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:   id,
		Kind: models.NodeKindNote,
		Note: &models.NotePayload{Content: content},
	}
}

func edge(id, source, target string) *models.WorkflowEdge {
	return &models.WorkflowEdge{ID: id, Source: source, Target: target}
}

func taggedEdge(id, source, target string, tag models.BranchTag) *models.WorkflowEdge {
	return &models.WorkflowEdge{ID: id, Source: source, Target: target, Branch: tag}
}

func runToCompletion(t *testing.T, e *Engine, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) {
	t.Helper()

	require.NoError(t, e.ExecuteWorkflow(context.Background(), nodes, edges))
	e.Wait()
}

func TestExecuteLinearWorkflow(t *testing.T) {
	e := newTestEngine()

	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		node("p", models.NodeKindProcess),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "p"),
		edge("e2", "p", "e"),
	}

	runToCompletion(t, e, nodes, edges)

	snapshot := e.Context()
	assert.Equal(t, []string{"s", "p", "e"}, snapshot.ExecutionPath)
	assert.False(t, snapshot.Running)
	assert.False(t, snapshot.Paused)
	assert.Nil(t, snapshot.CurrentNodeID)
	assert.Empty(t, snapshot.Errors)

	history := e.History()
	require.Len(t, history, 3)
	assert.Equal(t, models.StepActionStart, history[0].Action)
	assert.Equal(t, models.StepActionProcess, history[1].Action)
	assert.Equal(t, models.StepActionEnd, history[2].Action)
}

func TestExecuteNoStartNode(t *testing.T) {
	e := newTestEngine()

	nodes := []*models.WorkflowNode{node("p", models.NodeKindProcess)}

	runToCompletion(t, e, nodes, nil)

	snapshot := e.Context()
	require.Len(t, snapshot.Errors, 1)
	assert.Equal(t, ErrNoStartNode, snapshot.Errors[0])
	assert.Empty(t, snapshot.ExecutionPath)
	assert.False(t, snapshot.Running)
}

func TestDecisionFollowsTaggedBranches(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		decisionNode("d", "x > 10"),
		node("yes", models.NodeKindEnd),
		node("no", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "d"),
		taggedEdge("e2", "d", "yes", models.BranchYes),
		taggedEdge("e3", "d", "no", models.BranchNo),
	}

	e := newTestEngine()
	e.SetVariable("x", 15.0)
	runToCompletion(t, e, nodes, edges)
	assert.Equal(t, []string{"s", "d", "yes"}, e.Context().ExecutionPath)

	e = newTestEngine()
	e.SetVariable("x", 5.0)
	runToCompletion(t, e, nodes, edges)
	assert.Equal(t, []string{"s", "d", "no"}, e.Context().ExecutionPath)
}

func TestDecisionUntaggedFallback(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		decisionNode("d", "x > 10"),
		node("first", models.NodeKindEnd),
		node("second", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "d"),
		edge("e2", "d", "first"),
		edge("e3", "d", "second"),
	}

	e := newTestEngine()
	e.SetVariable("x", 15.0)
	runToCompletion(t, e, nodes, edges)
	assert.Equal(t, []string{"s", "d", "first"}, e.Context().ExecutionPath)

	e = newTestEngine()
	e.SetVariable("x", 5.0)
	runToCompletion(t, e, nodes, edges)
	assert.Equal(t, []string{"s", "d", "second"}, e.Context().ExecutionPath)
}

func TestDecisionRecordsConditionAndResult(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		decisionNode("d", "x > 10"),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "d"),
		edge("e2", "d", "e"),
	}

	e := newTestEngine()
	e.SetVariable("x", 15.0)
	runToCompletion(t, e, nodes, edges)

	history := e.History()
	require.Len(t, history, 3)
	assert.Equal(t, models.StepActionDecision, history[1].Action)
	assert.Equal(t, "x > 10", history[1].Input)
	assert.Equal(t, true, history[1].Output)
}

func TestNoteAssignmentWritesTypedVariables(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		noteNode("n1", "count = 3"),
		noteNode("n2", "flag = true"),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "n1"),
		edge("e2", "n1", "n2"),
		edge("e3", "n2", "e"),
	}

	e := newTestEngine()
	runToCompletion(t, e, nodes, edges)

	count, ok := e.GetVariable("count")
	require.True(t, ok)
	assert.Equal(t, 3.0, count.Value)
	assert.Equal(t, models.VariableKindNumber, count.Kind)

	flag, ok := e.GetVariable("flag")
	require.True(t, ok)
	assert.Equal(t, true, flag.Value)
	assert.Equal(t, models.VariableKindBoolean, flag.Kind)
}

func TestNonAssignmentNoteIsOnlyTraced(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		noteNode("n", "remember to refactor this"),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "n"),
		edge("e2", "n", "e"),
	}

	e := newTestEngine()
	runToCompletion(t, e, nodes, edges)

	history := e.History()
	require.Len(t, history, 3)
	assert.Equal(t, models.StepActionNote, history[1].Action)
	assert.Empty(t, e.Context().Variables)
}

func TestVariablesPersistAcrossRuns(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		noteNode("n", "count = 3"),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "n"),
		edge("e2", "n", "e"),
	}

	e := newTestEngine()
	runToCompletion(t, e, nodes, edges)
	runToCompletion(t, e, nodes, edges)

	// Variables survive the second run's reset of path/errors/trace.
	_, ok := e.GetVariable("count")
	assert.True(t, ok)
	assert.Len(t, e.Context().ExecutionPath, 3)
	assert.Len(t, e.History(), 3)
}

func TestDanglingEdgeEndsBranchNotRun(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "ghost"),
	}

	e := newTestEngine()
	runToCompletion(t, e, nodes, edges)

	snapshot := e.Context()
	require.Len(t, snapshot.Errors, 1)
	assert.Contains(t, snapshot.Errors[0], "ghost")
	// The run still reports as completed, not failed.
	assert.False(t, snapshot.Running)
	assert.Equal(t, []string{"s"}, snapshot.ExecutionPath)
}

func TestEndNodeTerminatesDespiteOutgoingEdges(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		node("e", models.NodeKindEnd),
		node("after", models.NodeKindProcess),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "e"),
		edge("e2", "e", "after"),
	}

	e := newTestEngine()
	runToCompletion(t, e, nodes, edges)

	assert.Equal(t, []string{"s", "e"}, e.Context().ExecutionPath)
}

func TestPauseAndResume(t *testing.T) {
	nodes := []*models.WorkflowNode{node("s", models.NodeKindStart)}
	edges := []*models.WorkflowEdge{}

	// Ids must not collide with "s" or "end".
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("n%02d", i)
		nodes = append(nodes, node(id, models.NodeKindProcess))
	}

	nodes = append(nodes, node("end", models.NodeKindEnd))
	prev := "s"

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("n%02d", i)
		edges = append(edges, edge("edge-"+id, prev, id))
		prev = id
	}

	edges = append(edges, edge("edge-end", prev, "end"))

	e := newTestEngine(WithNodeDelay(5 * time.Millisecond))
	require.NoError(t, e.ExecuteWorkflow(context.Background(), nodes, edges))

	e.Pause()
	time.Sleep(50 * time.Millisecond)

	lenWhilePaused := len(e.Context().ExecutionPath)
	assert.True(t, e.Context().Paused)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, lenWhilePaused, len(e.Context().ExecutionPath), "path must not grow while paused")

	e.Resume()
	e.Wait()

	snapshot := e.Context()
	assert.False(t, snapshot.Running)
	assert.Equal(t, "end", snapshot.ExecutionPath[len(snapshot.ExecutionPath)-1])
}

func TestStopCancelsTraversal(t *testing.T) {
	// Self-loop so the run would never end on its own.
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		node("loop", models.NodeKindProcess),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "loop"),
		edge("e2", "loop", "loop"),
	}

	e := newTestEngine(WithNodeDelay(5 * time.Millisecond))
	require.NoError(t, e.ExecuteWorkflow(context.Background(), nodes, edges))

	time.Sleep(30 * time.Millisecond)
	e.Stop()

	snapshot := e.Context()
	assert.False(t, snapshot.Running)
	assert.False(t, snapshot.Paused)
	assert.Nil(t, snapshot.CurrentNodeID)

	e.Wait()

	// Once the traversal has drained, nothing keeps mutating state.
	pathLen := len(e.Context().ExecutionPath)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, pathLen, len(e.Context().ExecutionPath))
}

func TestMaxStepsGuardsCycles(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		node("loop", models.NodeKindProcess),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "loop"),
		edge("e2", "loop", "loop"),
	}

	e := newTestEngine(WithMaxSteps(10))
	runToCompletion(t, e, nodes, edges)

	snapshot := e.Context()
	require.NotEmpty(t, snapshot.Errors)
	assert.Contains(t, snapshot.Errors[0], "cycle")
	assert.False(t, snapshot.Running)
}

func TestResetReturnsContextToInitialShape(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		noteNode("n", "count = 3"),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "n"),
		edge("e2", "n", "e"),
	}

	e := newTestEngine()
	runToCompletion(t, e, nodes, edges)

	e.Reset()

	snapshot := e.Context()
	assert.Empty(t, snapshot.Variables)
	assert.Nil(t, snapshot.CurrentNodeID)
	assert.Empty(t, snapshot.ExecutionPath)
	assert.Empty(t, snapshot.Errors)
	assert.False(t, snapshot.Running)
	assert.False(t, snapshot.Paused)
	assert.Empty(t, e.History())
}

func TestConcurrentRunRejected(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{edge("e1", "s", "e")}

	e := newTestEngine(WithNodeDelay(20 * time.Millisecond))
	require.NoError(t, e.ExecuteWorkflow(context.Background(), nodes, edges))

	err := e.ExecuteWorkflow(context.Background(), nodes, edges)
	assert.ErrorIs(t, err, ErrRunInProgress)

	e.Wait()
}

func TestRoundTripDeterminism(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		decisionNode("d", "x > 10"),
		node("yes", models.NodeKindEnd),
		node("no", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "d"),
		taggedEdge("e2", "d", "yes", models.BranchYes),
		taggedEdge("e3", "d", "no", models.BranchNo),
	}

	paths := make([][]string, 0, 2)

	for i := 0; i < 2; i++ {
		e := newTestEngine()
		e.SetVariable("x", 15.0)
		runToCompletion(t, e, nodes, edges)
		paths = append(paths, e.Context().ExecutionPath)
	}

	assert.Equal(t, paths[0], paths[1])
}

func TestObserverReceivesSnapshots(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{edge("e1", "s", "e")}

	var mu sync.Mutex

	snapshots := make([]models.ExecutionContext, 0)
	observer := ObserverFunc(func(snapshot models.ExecutionContext) {
		mu.Lock()
		snapshots = append(snapshots, snapshot)
		mu.Unlock()
	})

	e := newTestEngine(WithObserver(observer))
	runToCompletion(t, e, nodes, edges)

	mu.Lock()
	defer mu.Unlock()

	require.NotEmpty(t, snapshots)
	assert.True(t, snapshots[0].Running, "first snapshot sees the run flip to running")

	last := snapshots[len(snapshots)-1]
	assert.False(t, last.Running)
	assert.Equal(t, []string{"s", "e"}, last.ExecutionPath)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()

	return nil
}

func (p *capturePublisher) byType(eventType events.EventType) []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	matched := make([]eventbus.Event, 0)

	for _, event := range p.events {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

func TestSetVariablePublishesEvent(t *testing.T) {
	publisher := &capturePublisher{}
	e := newTestEngine(WithPublisher(publisher))

	e.SetVariable("threshold", 42.0)

	published := publisher.byType(events.VariableSetEvent)
	require.Len(t, published, 1)

	variableSet, ok := published[0].(events.VariableSet)
	require.True(t, ok)
	assert.Equal(t, "threshold", variableSet.Name)
	assert.Equal(t, models.VariableKindNumber, variableSet.Kind)
	assert.Equal(t, 42.0, variableSet.Value)
}

func TestNoteAssignmentPublishesSameEventAsSetVariable(t *testing.T) {
	publisher := &capturePublisher{}
	e := newTestEngine(WithPublisher(publisher))

	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		noteNode("n", "x = 3"),
		node("e", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "n"),
		edge("e2", "n", "e"),
	}

	runToCompletion(t, e, nodes, edges)
	e.SetVariable("y", true)

	published := publisher.byType(events.VariableSetEvent)
	require.Len(t, published, 2)
	assert.Equal(t, "x", published[0].(events.VariableSet).Name)
	assert.Equal(t, "y", published[1].(events.VariableSet).Name)
}

func TestSeedVariablesVisibleToConditions(t *testing.T) {
	nodes := []*models.WorkflowNode{
		node("s", models.NodeKindStart),
		decisionNode("d", "threshold > 10"),
		node("yes", models.NodeKindEnd),
		node("no", models.NodeKindEnd),
	}
	edges := []*models.WorkflowEdge{
		edge("e1", "s", "d"),
		taggedEdge("e2", "d", "yes", models.BranchYes),
		taggedEdge("e3", "d", "no", models.BranchNo),
	}

	e := newTestEngine()
	e.SeedVariables(map[string]any{"threshold": 42.0})
	runToCompletion(t, e, nodes, edges)

	assert.Equal(t, []string{"s", "d", "yes"}, e.Context().ExecutionPath)
}
