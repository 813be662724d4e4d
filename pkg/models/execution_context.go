package models

import "time"

// ExecutionContext is the externally observable state of one engine run.
// Subscribers receive a fresh snapshot on every change.
type ExecutionContext struct {
	RunID         string              `json:"run_id,omitempty"`
	Variables     map[string]Variable `json:"variables"`
	CurrentNodeID *string             `json:"current_node_id"`
	Running       bool                `json:"running"`
	Paused        bool                `json:"paused"`
	ExecutionPath []string            `json:"execution_path"`
	Errors        []string            `json:"errors"`
}

// StepAction tags what a trace record describes.
type StepAction string

const (
	StepActionStart    StepAction = "start"
	StepActionEnd      StepAction = "end"
	StepActionDecision StepAction = "decision"
	StepActionProcess  StepAction = "process"
	StepActionAssign   StepAction = "assign"
	StepActionNote     StepAction = "note"
	StepActionFile     StepAction = "file"
	StepActionShape    StepAction = "shape"
)

// ExecutionStep is one record of the per-run step trace, appended once per
// node visited.
type ExecutionStep struct {
	NodeID    string     `json:"node_id"`
	Action    StepAction `json:"action"`
	Input     any        `json:"input,omitempty"`
	Output    any        `json:"output,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
