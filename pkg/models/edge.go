package models

// BranchTag disambiguates the two successors of a decision node.
type BranchTag string

const (
	BranchYes BranchTag = "yes"
	BranchNo  BranchTag = "no"
)

// WorkflowEdge connects two nodes. Branch is meaningful only on edges
// leaving a decision node; elsewhere the engine follows the first edge
// found in document order.
type WorkflowEdge struct {
	ID     string    `json:"id"               validate:"required"`
	Source string    `json:"source"           validate:"required"`
	Target string    `json:"target"           validate:"required"`
	Branch BranchTag `json:"branch,omitempty" validate:"omitempty,oneof=yes no"`
}
