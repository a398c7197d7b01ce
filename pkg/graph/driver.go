package graph

import (
	"context"
	"time"
)

// Driver is the relationship-store contract. All upserts are idempotent,
// keyed by caller-supplied external identifiers: calling the same upsert
// twice with an identical payload must not create duplicate vertices or
// edges. Implementations must never leave an edge pointing at a vertex that
// does not exist.
type Driver interface {
	// UpsertUser creates the user vertex if absent.
	UpsertUser(ctx context.Context, user User) error

	// UpsertTimelineNode mirrors a timeline node as a graph vertex and links
	// it to its owning user.
	UpsertTimelineNode(ctx context.Context, node TimelineNode) error

	// UpsertSession creates or refreshes a session vertex along with its
	// BELONGS_TO and CONTAINS edges. Returns true when the vertex was newly
	// created.
	UpsertSession(ctx context.Context, session Session) (bool, error)

	// UpsertActivity creates or refreshes an activity vertex inside its
	// session. Returns true when the vertex was newly created.
	UpsertActivity(ctx context.Context, activity Activity) (bool, error)

	// CreateEntityRelationship ensures the entity vertex exists and links the
	// activity to it with a USES edge. The entity's frequency is incremented
	// by exactly 1 the first time this (activity, entity) pair is linked,
	// never on repeat calls, so ingestion retries are safe. Returns the
	// entity with its current frequency and last-seen time.
	CreateEntityRelationship(ctx context.Context, activityID string, entity Entity, mentionContext string) (Entity, error)

	// CreateConceptRelationship is the concept counterpart with a RELATES_TO
	// edge carrying a relevance score.
	CreateConceptRelationship(ctx context.Context, activityID string, concept Concept, relevance float64) (Concept, error)

	// SessionsForNode returns the sessions of a (user, node) pair starting at
	// or after since, ordered by start time then external id.
	SessionsForNode(ctx context.Context, userID, nodeID string, since time.Time) ([]Session, error)

	// SessionsByID returns the sessions with the given external ids, in input
	// order. Unknown ids are skipped, not errors.
	SessionsByID(ctx context.Context, externalIDs []string) ([]Session, error)

	// NeighborsWithinDepth walks CONTAINS/USES/RELATES_TO/FOLLOWS edges from
	// the seed sessions up to maxDepth hops, skipping sessions that started
	// before since, and returns everything encountered.
	NeighborsWithinDepth(ctx context.Context, seedSessionIDs []string, maxDepth int, since time.Time) (*Traversal, error)

	// SessionChainsForUser returns the user's FOLLOWS-ordered session chains
	// restricted to sessions starting within [from, to).
	SessionChainsForUser(ctx context.Context, userID string, from, to time.Time) ([][]Session, error)

	// ActivitiesBySession returns a session's activities ordered by timestamp.
	ActivitiesBySession(ctx context.Context, sessionID string) ([]Activity, error)

	// EntityOccurrences returns the activities that mention the given entity.
	EntityOccurrences(ctx context.Context, name, entityType string) ([]Activity, error)

	// SetFollows points the outgoing FOLLOWS edge of from at to, replacing
	// any previous outgoing edge of from.
	SetFollows(ctx context.Context, fromExternalID, toExternalID string) error

	// RemoveFollows drops the outgoing FOLLOWS edge of from, if any.
	RemoveFollows(ctx context.Context, fromExternalID string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
