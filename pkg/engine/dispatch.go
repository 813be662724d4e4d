package engine

import (
	"context"
	"fmt"

	"github.com/cyohn55/agentic-visual-scripting/pkg/condition"
	"github.com/cyohn55/agentic-visual-scripting/pkg/events"
	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
	"github.com/cyohn55/agentic-visual-scripting/pkg/variables"
)

// dispatch performs a node's kind-specific work and returns the id of the
// successor node, or "" when the branch ends. Only an end node terminates
// by contract; every other kind ends the branch only when it has no
// outgoing edge.
func (e *Engine) dispatch(ctx context.Context, g *graph, node *models.WorkflowNode) string {
	switch node.Kind {
	case models.NodeKindStart:
		e.recordStep(node.ID, models.StepActionStart, nil, node.Label)

		return g.firstSuccessor(node.ID)

	case models.NodeKindEnd:
		// Terminates the branch even if outgoing edges exist.
		e.recordStep(node.ID, models.StepActionEnd, nil, node.Label)

		return ""

	case models.NodeKindDecision:
		return e.dispatchDecision(ctx, g, node)

	case models.NodeKindProcess:
		e.recordStep(node.ID, models.StepActionProcess, nil, node.Label)

		return g.firstSuccessor(node.ID)

	case models.NodeKindNote:
		e.dispatchNote(ctx, node)

		return g.firstSuccessor(node.ID)

	case models.NodeKindFile:
		output := map[string]any{"name": "", "content": ""}
		if node.File != nil {
			output["name"] = node.File.Name
			output["content"] = node.File.Content
		}

		e.recordStep(node.ID, models.StepActionFile, nil, output)

		return g.firstSuccessor(node.ID)

	case models.NodeKindShape:
		shape := ""
		if node.Shape != nil {
			shape = node.Shape.Shape
		}

		e.recordStep(node.ID, models.StepActionShape, nil, shape)

		return g.firstSuccessor(node.ID)

	default:
		e.recordError(ctx, fmt.Sprintf("node %s has unknown kind %q", node.ID, node.Kind))

		return ""
	}
}

// dispatchDecision evaluates the node's condition against the current
// variable store. True follows the "yes"-tagged edge (falling back to the
// first outgoing edge); false follows the "no"-tagged edge (falling back
// to the second).
func (e *Engine) dispatchDecision(ctx context.Context, g *graph, node *models.WorkflowNode) string {
	expression := node.Condition()

	result, err := condition.Evaluate(expression, e.vars.Snapshot())
	if err != nil {
		e.recordError(ctx, err.Error())

		result = false
	}

	e.recordStep(node.ID, models.StepActionDecision, expression, result)

	if result {
		return g.branchSuccessor(node.ID, models.BranchYes, 0)
	}

	return g.branchSuccessor(node.ID, models.BranchNo, 1)
}

// dispatchNote writes a variable when the note's content is a single
// "name = value" assignment; otherwise the content is only traced.
func (e *Engine) dispatchNote(ctx context.Context, node *models.WorkflowNode) {
	content := node.NoteContent()

	name, value, ok := variables.ParseAssignment(content)
	if !ok {
		e.recordStep(node.ID, models.StepActionNote, nil, content)

		return
	}

	variable := e.vars.Set(name, value)
	e.recordStep(node.ID, models.StepActionAssign, content, variable.Value)

	e.mu.Lock()
	runID := e.state.RunID
	e.mu.Unlock()

	e.notify()
	e.publish(ctx, events.VariableSet{
		BaseEvent: e.baseEvent(events.VariableSetEvent, runID),
		Name:      variable.Name,
		Kind:      variable.Kind,
		Value:     variable.Value,
	})
}
