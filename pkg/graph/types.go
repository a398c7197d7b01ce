// Package graph defines the relationship-store data model for cross-session
// knowledge: users, timeline nodes, sessions, activities, and the normalized
// entity/concept vertices they connect to. The Driver interface at the bottom
// of the package is the narrow seam behind which storage backends live.
package graph

import (
	"strings"
	"time"
)

// User is the identity anchor for all activity. Created on first activity,
// never deleted by this subsystem.
type User struct {
	ID string `json:"id"`
}

// TimelineNode is a work item a user tracks (a job, a project). The timeline
// system owns it; we mirror it as a graph vertex for traversal.
type TimelineNode struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	NodeType string `json:"node_type,omitempty"`
}

// Workflow is a session's free-form classification plus confidence.
type Workflow struct {
	Primary    string  `json:"primary"`
	Secondary  string  `json:"secondary,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Session is one bounded span of activity tied to exactly one TimelineNode.
// ExternalID is the caller-supplied idempotency key. After closure a session
// is immutable except for its outgoing FOLLOWS edge.
type Session struct {
	ExternalID      string    `json:"external_id"`
	UserID          string    `json:"user_id"`
	NodeID          string    `json:"node_id"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Workflow        Workflow  `json:"workflow"`
	ScreenshotCount int       `json:"screenshot_count,omitempty"`
}

// Activity is one atomic captured unit within a session.
type Activity struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Timestamp   time.Time `json:"timestamp"`
	Summary     string    `json:"summary"`
	WorkflowTag string    `json:"workflow_tag,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
}

// Entity is a normalized technology/tool name. Identity is derived solely
// from the normalization key (lowercase-trimmed name + type); the frequency
// counter is monotonic and owned by the graph store.
type Entity struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Frequency  int64     `json:"frequency"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Key returns the entity's dedup key.
func (e Entity) Key() string { return JoinKey(e.Name, e.Type) }

// Concept is a normalized abstract topic/pattern. Same shape as Entity with
// a category instead of a type.
type Concept struct {
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Frequency  int64     `json:"frequency"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Key returns the concept's dedup key.
func (c Concept) Key() string { return JoinKey(c.Name, c.Category) }

// JoinKey builds a dedup key from an already-normalized name and its
// qualifier (entity type or concept category).
func JoinKey(name, qualifier string) string {
	return name + "|" + qualifier
}

// SplitKey is the inverse of JoinKey. The qualifier is empty when the key
// carries no separator.
func SplitKey(key string) (name, qualifier string) {
	if i := strings.LastIndex(key, "|"); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}

// Traversal is the read-side result of a bounded neighborhood walk: every
// entity, concept and session encountered within the depth and time bounds.
type Traversal struct {
	Entities []Entity
	Concepts []Concept
	Sessions []Session
}
