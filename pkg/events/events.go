// Package events defines the typed run-lifecycle events the engine
// publishes while interpreting a workflow graph.
package events

import (
	"time"

	"github.com/cyohn55/agentic-visual-scripting/pkg/models"
)

type EventType string

// Topic carries all run events on the in-process bus.
const Topic = "avs.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent    EventType = "run.started"
	RunCompletedEvent  EventType = "run.completed"
	RunPausedEvent     EventType = "run.paused"
	RunResumedEvent    EventType = "run.resumed"
	RunStoppedEvent    EventType = "run.stopped"
	NodeEnteredEvent   EventType = "run.node.entered"
	VariableSetEvent   EventType = "run.variable.set"
	ErrorRecordedEvent EventType = "run.error"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	NodeCount int `json:"node_count"`
	EdgeCount int `json:"edge_count"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	Steps    int           `json:"steps"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunPaused struct {
	BaseEvent

	NodeID string `json:"node_id,omitempty"`
}

func (e RunPaused) GetType() EventType {
	return RunPausedEvent
}

type RunResumed struct {
	BaseEvent

	NodeID string `json:"node_id,omitempty"`
}

func (e RunResumed) GetType() EventType {
	return RunResumedEvent
}

type RunStopped struct {
	BaseEvent
}

func (e RunStopped) GetType() EventType {
	return RunStoppedEvent
}

type NodeEntered struct {
	BaseEvent

	NodeID     string          `json:"node_id"`
	Kind       models.NodeKind `json:"kind"`
	PathLength int             `json:"path_length"`
}

func (e NodeEntered) GetType() EventType {
	return NodeEnteredEvent
}

type VariableSet struct {
	BaseEvent

	Name  string              `json:"name"`
	Kind  models.VariableKind `json:"kind"`
	Value any                 `json:"value"`
}

func (e VariableSet) GetType() EventType {
	return VariableSetEvent
}

type ErrorRecorded struct {
	BaseEvent

	Message string `json:"message"`
}

func (e ErrorRecorded) GetType() EventType {
	return ErrorRecordedEvent
}
