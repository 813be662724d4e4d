// Package models defines the workflow graph handed to the execution engine:
// nodes, edges, the workflow document, and the observable run state.
package models

// NodeKind identifies the behavior of a node on the canvas.
type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindEnd      NodeKind = "end"
	NodeKindDecision NodeKind = "decision"
	NodeKindProcess  NodeKind = "process"
	NodeKindNote     NodeKind = "note"
	NodeKindFile     NodeKind = "file"
	NodeKindShape    NodeKind = "shape"
)

// DefaultCondition is used when a decision node carries no expression.
const DefaultCondition = "true"

// DecisionPayload holds the branch expression of a decision node.
type DecisionPayload struct {
	Condition string `json:"condition"`
}

// NotePayload holds the free-text content of a note node. Content matching
// a single "name = value" line is treated as a variable assignment at
// execution time.
type NotePayload struct {
	Content string `json:"content"`
}

// FilePayload holds the metadata of a file node.
type FilePayload struct {
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`
}

// ShapePayload holds the display metadata of a shape node.
type ShapePayload struct {
	Shape string `json:"shape"`
}

// WorkflowNode is a node instance on the canvas. Exactly one payload
// pointer is set, matching Kind; kinds without extra fields (start, end,
// process) carry only the label.
type WorkflowNode struct {
	ID        string   `json:"id"                 validate:"required"`
	Kind      NodeKind `json:"kind"               validate:"required,oneof=start end decision process note file shape"`
	Label     string   `json:"label,omitempty"`
	PositionX int      `json:"position_x"`
	PositionY int      `json:"position_y"`

	Decision *DecisionPayload `json:"decision,omitempty"`
	Note     *NotePayload     `json:"note,omitempty"`
	File     *FilePayload     `json:"file,omitempty"`
	Shape    *ShapePayload    `json:"shape,omitempty"`
}

// Condition returns the decision expression, defaulting to "true" when the
// node has no decision payload or an empty expression.
func (n *WorkflowNode) Condition() string {
	if n.Decision == nil || n.Decision.Condition == "" {
		return DefaultCondition
	}

	return n.Decision.Condition
}

// NoteContent returns the note text, or "" for non-note nodes.
func (n *WorkflowNode) NoteContent() string {
	if n.Note == nil {
		return ""
	}

	return n.Note.Content
}
