package ports

import (
	"context"
	"time"
)

// EventType identifies the kind of an event
type EventType string

const (
	EventTypeCellStateChanged  EventType = "cell.state_changed"
	EventTypeInterpreterSubmit EventType = "interpreter.submit"
	EventTypeInterpreterCancel EventType = "interpreter.cancel"
	EventTypeInterpreterResult EventType = "interpreter.result"
)

// Topics
const (
	TopicCellEvents          = "cell.events"
	TopicInterpreterRequests = "interpreter.requests"
	TopicInterpreterControl  = "interpreter.control"
	TopicInterpreterResults  = "interpreter.results"
)

// Event is the unit carried by the event bus
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	CellID    int64                  `json:"cell_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// StringData returns Data[key] when it is a string
func (e Event) StringData(key string) string {
	if e.Data == nil {
		return ""
	}
	s, _ := e.Data[key].(string)
	return s
}

// EventHandler processes one event
type EventHandler func(ctx context.Context, event Event) error

// EventBus publishes and delivers events by topic. Subscriptions end when
// the subscribing context is cancelled.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}
