package models

import "time"

// Workflow is the document the editor saves: the canvas graph plus seed
// variables and free-form metadata. The engine itself consumes only the
// node and edge lists.
type Workflow struct {
	ID          string          `json:"id"                    validate:"required"`
	Name        string          `json:"name"                  validate:"required,min=3"`
	Description string          `json:"description,omitempty"`
	Nodes       []*WorkflowNode `json:"nodes"                 validate:"dive"`
	Edges       []*WorkflowEdge `json:"edges"                 validate:"dive"`
	Variables   map[string]any  `json:"variables,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}
