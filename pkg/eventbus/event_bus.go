// Package eventbus carries run-lifecycle events between the engine and
// loosely coupled consumers (trace panes, inspectors, the CLI).
package eventbus

import (
	"context"

	"github.com/cyohn55/agentic-visual-scripting/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
