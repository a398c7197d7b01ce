// Package eventstream defines the transport-neutral events weft emits after
// durable writes, so downstream consumers can react without polling.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

// TopicActivityPersisted carries ActivityPersistedEvent payloads.
const TopicActivityPersisted = "weft.activity.persisted"

// ActivityPersistedEvent is emitted once an activity and its extractions
// have been written to the graph store.
type ActivityPersistedEvent struct {
	EventID    string    `json:"event_id"`
	ActivityID string    `json:"activity_id"`
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Entities   int       `json:"entities"`
	Concepts   int       `json:"concepts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewActivityPersistedEvent stamps a fresh event id and occurrence time.
func NewActivityPersistedEvent(activityID, sessionID, userID string, entities, concepts int) ActivityPersistedEvent {
	return ActivityPersistedEvent{
		EventID:    uuid.NewString(),
		ActivityID: activityID,
		SessionID:  sessionID,
		UserID:     userID,
		Entities:   entities,
		Concepts:   concepts,
		OccurredAt: time.Now().UTC(),
	}
}
