package eventbus

import (
	"time"

	"github.com/google/uuid"
)

const (
	// TopicTaskEvents carries task lifecycle events for downstream consumers.
	TopicTaskEvents = "task_events"
)

const (
	TypeTaskCreated = "task.created"
	TypeTaskStored  = "task.stored"
	TypeTaskFailed  = "task.failed"
)

// Event is one task lifecycle event.
type Event struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	SourceID  string         `json:"source_id"`
	TaskID    string         `json:"task_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewEvent stamps a fresh event with a unique id and the current time.
func NewEvent(eventType, sourceID, taskID string, payload map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		SourceID:  sourceID,
		TaskID:    taskID,
		Payload:   payload,
	}
}
