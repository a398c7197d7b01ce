// Package memory implements graph.Driver with in-process adjacency lists.
// It exists so the resolution, sequencing and retrieval logic can run and be
// tested without a graph database; the semantics match the Neo4j adapter.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/loomery/weft/pkg/graph"
)

type edgeKey struct {
	activityID string
	targetKey  string
}

// Driver is an in-memory relationship store. A single RWMutex guards all
// maps, which makes frequency increments and relinks trivially atomic.
type Driver struct {
	mu sync.RWMutex

	users    map[string]graph.User
	nodes    map[string]graph.TimelineNode
	sessions map[string]graph.Session
	acts     map[string]graph.Activity

	entities map[string]graph.Entity
	concepts map[string]graph.Concept

	// Edge sets. uses/relates are keyed by (activity, target) so that a
	// retried link is a no-op and frequency moves by at most 1 per distinct
	// source activity.
	uses    map[edgeKey]string // -> mention context
	relates map[edgeKey]float64

	actsBySession  map[string][]string // session external id -> activity ids
	sessionsByPair map[string][]string // user|node -> session external ids

	follows    map[string]string // session -> next session
	precededBy map[string]string // session -> previous session
}

// NewDriver creates an empty in-memory relationship store.
func NewDriver() *Driver {
	return &Driver{
		users:          make(map[string]graph.User),
		nodes:          make(map[string]graph.TimelineNode),
		sessions:       make(map[string]graph.Session),
		acts:           make(map[string]graph.Activity),
		entities:       make(map[string]graph.Entity),
		concepts:       make(map[string]graph.Concept),
		uses:           make(map[edgeKey]string),
		relates:        make(map[edgeKey]float64),
		actsBySession:  make(map[string][]string),
		sessionsByPair: make(map[string][]string),
		follows:        make(map[string]string),
		precededBy:     make(map[string]string),
	}
}

func pairKey(userID, nodeID string) string { return userID + "|" + nodeID }

// UpsertUser creates the user vertex if absent.
func (d *Driver) UpsertUser(_ context.Context, user graph.User) error {
	if user.ID == "" {
		return &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[user.ID]; !ok {
		d.users[user.ID] = user
	}
	return nil
}

// UpsertTimelineNode mirrors a timeline node and its owning user.
func (d *Driver) UpsertTimelineNode(_ context.Context, node graph.TimelineNode) error {
	if node.ID == "" {
		return &graph.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}
	if node.UserID == "" {
		return &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[node.UserID]; !ok {
		d.users[node.UserID] = graph.User{ID: node.UserID}
	}
	d.nodes[node.ID] = node
	return nil
}

// UpsertSession creates or refreshes a session vertex and its BELONGS_TO and
// CONTAINS edges. The second upsert with an identical payload is a no-op.
func (d *Driver) UpsertSession(_ context.Context, session graph.Session) (bool, error) {
	if session.ExternalID == "" {
		return false, &graph.ValidationError{Field: "externalId", Reason: "must not be empty"}
	}
	if session.UserID == "" {
		return false, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if session.NodeID == "" {
		return false, &graph.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, existed := d.sessions[session.ExternalID]
	d.sessions[session.ExternalID] = session

	if !existed {
		pk := pairKey(session.UserID, session.NodeID)
		d.sessionsByPair[pk] = append(d.sessionsByPair[pk], session.ExternalID)
		if _, ok := d.users[session.UserID]; !ok {
			d.users[session.UserID] = graph.User{ID: session.UserID}
		}
	}
	return !existed, nil
}

// UpsertActivity creates or refreshes an activity vertex inside its session.
func (d *Driver) UpsertActivity(_ context.Context, activity graph.Activity) (bool, error) {
	if activity.ID == "" {
		return false, &graph.ValidationError{Field: "activityId", Reason: "must not be empty"}
	}
	if activity.SessionID == "" {
		return false, &graph.ValidationError{Field: "sessionId", Reason: "must not be empty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[activity.SessionID]; !ok {
		return false, graph.ErrNotFound
	}

	_, existed := d.acts[activity.ID]
	d.acts[activity.ID] = activity
	if !existed {
		d.actsBySession[activity.SessionID] = append(d.actsBySession[activity.SessionID], activity.ID)
	}
	return !existed, nil
}

// CreateEntityRelationship links an activity to an entity, creating the
// entity vertex on first sight. Frequency moves by exactly 1 the first time
// this (activity, entity) pair is seen.
func (d *Driver) CreateEntityRelationship(_ context.Context, activityID string, entity graph.Entity, mentionContext string) (graph.Entity, error) {
	if activityID == "" {
		return graph.Entity{}, &graph.ValidationError{Field: "activityId", Reason: "must not be empty"}
	}
	if entity.Name == "" {
		return graph.Entity{}, &graph.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	act, ok := d.acts[activityID]
	if !ok {
		return graph.Entity{}, graph.ErrNotFound
	}

	key := entity.Key()
	existing, known := d.entities[key]
	if !known {
		existing = graph.Entity{Name: entity.Name, Type: entity.Type}
	}

	ek := edgeKey{activityID: activityID, targetKey: key}
	if _, linked := d.uses[ek]; !linked {
		d.uses[ek] = mentionContext
		existing.Frequency++
	}
	if act.Timestamp.After(existing.LastSeenAt) {
		existing.LastSeenAt = act.Timestamp
	}

	d.entities[key] = existing
	return existing, nil
}

// CreateConceptRelationship is the concept counterpart of
// CreateEntityRelationship.
func (d *Driver) CreateConceptRelationship(_ context.Context, activityID string, concept graph.Concept, relevance float64) (graph.Concept, error) {
	if activityID == "" {
		return graph.Concept{}, &graph.ValidationError{Field: "activityId", Reason: "must not be empty"}
	}
	if concept.Name == "" {
		return graph.Concept{}, &graph.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	act, ok := d.acts[activityID]
	if !ok {
		return graph.Concept{}, graph.ErrNotFound
	}

	key := concept.Key()
	existing, known := d.concepts[key]
	if !known {
		existing = graph.Concept{Name: concept.Name, Category: concept.Category}
	}

	ek := edgeKey{activityID: activityID, targetKey: key}
	if _, linked := d.relates[ek]; !linked {
		d.relates[ek] = relevance
		existing.Frequency++
	}
	if act.Timestamp.After(existing.LastSeenAt) {
		existing.LastSeenAt = act.Timestamp
	}

	d.concepts[key] = existing
	return existing, nil
}

// SessionsForNode returns sessions for the (user, node) pair starting at or
// after since, ordered by start time then external id.
func (d *Driver) SessionsForNode(_ context.Context, userID, nodeID string, since time.Time) ([]graph.Session, error) {
	if userID == "" {
		return nil, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if nodeID == "" {
		return nil, &graph.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []graph.Session
	for _, id := range d.sessionsByPair[pairKey(userID, nodeID)] {
		s := d.sessions[id]
		if s.StartTime.Before(since) {
			continue
		}
		out = append(out, s)
	}
	sortSessions(out)
	return out, nil
}

// SessionsByID returns the sessions with the given external ids, skipping
// unknown ids.
func (d *Driver) SessionsByID(_ context.Context, externalIDs []string) ([]graph.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []graph.Session
	seen := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := d.sessions[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// NeighborsWithinDepth does a breadth-first walk from the seed sessions
// across CONTAINS, USES, RELATES_TO and FOLLOWS edges.
func (d *Driver) NeighborsWithinDepth(_ context.Context, seedSessionIDs []string, maxDepth int, since time.Time) (*graph.Traversal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	type frontier struct {
		sessionID string
		depth     int
	}

	seenSessions := make(map[string]bool)
	seenEntities := make(map[string]bool)
	seenConcepts := make(map[string]bool)

	trav := &graph.Traversal{}
	queue := make([]frontier, 0, len(seedSessionIDs))
	for _, id := range seedSessionIDs {
		queue = append(queue, frontier{sessionID: id})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		s, ok := d.sessions[cur.sessionID]
		if !ok || seenSessions[cur.sessionID] || s.StartTime.Before(since) {
			continue
		}
		seenSessions[cur.sessionID] = true
		trav.Sessions = append(trav.Sessions, s)

		if cur.depth >= maxDepth {
			continue
		}

		// One hop into the session's activities, one more into their
		// entity/concept targets.
		if cur.depth+2 <= maxDepth {
			for _, actID := range d.actsBySession[cur.sessionID] {
				for ek := range d.uses {
					if ek.activityID != actID || seenEntities[ek.targetKey] {
						continue
					}
					seenEntities[ek.targetKey] = true
					trav.Entities = append(trav.Entities, d.entities[ek.targetKey])
				}
				for ek := range d.relates {
					if ek.activityID != actID || seenConcepts[ek.targetKey] {
						continue
					}
					seenConcepts[ek.targetKey] = true
					trav.Concepts = append(trav.Concepts, d.concepts[ek.targetKey])
				}
			}
		}

		if next, ok := d.follows[cur.sessionID]; ok {
			queue = append(queue, frontier{sessionID: next, depth: cur.depth + 1})
		}
		if prev, ok := d.precededBy[cur.sessionID]; ok {
			queue = append(queue, frontier{sessionID: prev, depth: cur.depth + 1})
		}
	}

	sortSessions(trav.Sessions)
	sort.Slice(trav.Entities, func(i, j int) bool { return trav.Entities[i].Key() < trav.Entities[j].Key() })
	sort.Slice(trav.Concepts, func(i, j int) bool { return trav.Concepts[i].Key() < trav.Concepts[j].Key() })
	return trav, nil
}

// SessionChainsForUser returns the user's FOLLOWS-ordered chains restricted
// to [from, to).
func (d *Driver) SessionChainsForUser(_ context.Context, userID string, from, to time.Time) ([][]graph.Session, error) {
	if userID == "" {
		return nil, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var chains [][]graph.Session
	var pairs []string
	for pk := range d.sessionsByPair {
		pairs = append(pairs, pk)
	}
	sort.Strings(pairs)

	for _, pk := range pairs {
		ids := d.sessionsByPair[pk]
		if len(ids) == 0 || d.sessions[ids[0]].UserID != userID {
			continue
		}

		// Chain head: the session in this pair with no incoming edge.
		head := ""
		for _, id := range ids {
			if _, hasPrev := d.precededBy[id]; !hasPrev {
				if head == "" || lessSession(d.sessions[id], d.sessions[head]) {
					head = id
				}
			}
		}
		if head == "" {
			continue
		}

		var chain []graph.Session
		for id := head; id != ""; id = d.follows[id] {
			s := d.sessions[id]
			if !s.StartTime.Before(from) && s.StartTime.Before(to) {
				chain = append(chain, s)
			}
			if _, ok := d.follows[id]; !ok {
				break
			}
		}
		if len(chain) > 0 {
			chains = append(chains, chain)
		}
	}
	return chains, nil
}

// ActivitiesBySession returns the session's activities ordered by timestamp.
func (d *Driver) ActivitiesBySession(_ context.Context, sessionID string) ([]graph.Activity, error) {
	if sessionID == "" {
		return nil, &graph.ValidationError{Field: "sessionId", Reason: "must not be empty"}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.actsBySession[sessionID]
	out := make([]graph.Activity, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.acts[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// EntityOccurrences returns the activities that mention the given entity.
func (d *Driver) EntityOccurrences(_ context.Context, name, entityType string) ([]graph.Activity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key := graph.JoinKey(name, entityType)
	var out []graph.Activity
	for ek := range d.uses {
		if ek.targetKey == key {
			out = append(out, d.acts[ek.activityID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// SetFollows points from's outgoing FOLLOWS edge at to, replacing any
// previous outgoing edge of from and any previous incoming edge of to.
func (d *Driver) SetFollows(_ context.Context, fromExternalID, toExternalID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[fromExternalID]; !ok {
		return graph.ErrNotFound
	}
	if _, ok := d.sessions[toExternalID]; !ok {
		return graph.ErrNotFound
	}

	if old, ok := d.follows[fromExternalID]; ok {
		delete(d.precededBy, old)
	}
	if old, ok := d.precededBy[toExternalID]; ok {
		delete(d.follows, old)
	}
	d.follows[fromExternalID] = toExternalID
	d.precededBy[toExternalID] = fromExternalID
	return nil
}

// RemoveFollows drops from's outgoing FOLLOWS edge, if any.
func (d *Driver) RemoveFollows(_ context.Context, fromExternalID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if next, ok := d.follows[fromExternalID]; ok {
		delete(d.follows, fromExternalID)
		delete(d.precededBy, next)
	}
	return nil
}

// Ping always succeeds for the in-memory store.
func (d *Driver) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (d *Driver) Close() error { return nil }

// FollowsEdges returns a copy of the FOLLOWS adjacency, used by tests to
// assert the simple-path invariant.
func (d *Driver) FollowsEdges() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]string, len(d.follows))
	for k, v := range d.follows {
		out[k] = v
	}
	return out
}

func sortSessions(s []graph.Session) {
	sort.Slice(s, func(i, j int) bool { return lessSession(s[i], s[j]) })
}

func lessSession(a, b graph.Session) bool {
	if a.StartTime.Equal(b.StartTime) {
		return a.ExternalID < b.ExternalID
	}
	return a.StartTime.Before(b.StartTime)
}

var _ graph.Driver = (*Driver)(nil)
