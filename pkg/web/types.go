// Package web provides the HTTP surface of the editor backend: workflow
// document CRUD and the engine's run controls.
package web

import "github.com/cyohn55/agentic-visual-scripting/pkg/models"

// CreateWorkflowRequest is the body for saving a new workflow document.
type CreateWorkflowRequest struct {
	ID          string                  `json:"id,omitempty"`
	Name        string                  `json:"name"                  validate:"required,min=3"`
	Description string                  `json:"description,omitempty"`
	Nodes       []*models.WorkflowNode  `json:"nodes"                 validate:"dive"`
	Edges       []*models.WorkflowEdge  `json:"edges"                 validate:"dive"`
	Variables   map[string]any          `json:"variables,omitempty"`
	Metadata    map[string]any          `json:"metadata,omitempty"`
}

// ExecuteWorkflowRequest optionally overrides the document's seed
// variables for one run.
type ExecuteWorkflowRequest struct {
	Variables map[string]any `json:"variables,omitempty"`
}

// RunResponse reports the engine state after a control call.
type RunResponse struct {
	Context models.ExecutionContext `json:"context"`
}

// HistoryResponse wraps the step trace of the current or last run.
type HistoryResponse struct {
	Steps []models.ExecutionStep `json:"steps"`
}
