// Package neo4j implements graph.Driver against a Neo4j server. Upserts use
// MERGE so repeated ingestion of the same external ids is idempotent, and
// frequency counters are incremented server-side inside the MERGE so two
// concurrent batches never lose an update.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
)

const (
	// maxRetryAttempts bounds the internal retry of operations that lose a
	// transient lock race inside the server.
	maxRetryAttempts = 3
)

// Config holds connection settings for the Neo4j driver.
type Config struct {
	// URI is the bolt/neo4j connection URI, e.g. "neo4j://localhost:7687".
	URI string

	// Username and Password authenticate against the server. Leave empty
	// for servers with auth disabled.
	Username string
	Password string
}

// Driver is a Neo4j-backed relationship store.
type Driver struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewDriver connects to Neo4j and verifies connectivity.
func NewDriver(ctx context.Context, cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j URI is required")
	}

	drv, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := drv.VerifyConnectivity(ctx); err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}

	logger.Info("neo4j relationship store connected", zap.String("uri", cfg.URI))
	return &Driver{driver: drv, logger: logger}, nil
}

func (d *Driver) write(ctx context.Context, query string, params map[string]any) error {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.Run(ctx, query, params)
	if err != nil {
		return &graph.ConnectionError{Store: "graph", Err: err}
	}
	return nil
}

// writeWithRetry retries transient failures (deadlocks, leader switches)
// with bounded exponential backoff before surfacing a ConnectionError.
func (d *Driver) writeWithRetry(ctx context.Context, op, query string, params map[string]any) error {
	attempts := 0
	run := func() error {
		attempts++
		session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		if _, err := session.Run(ctx, query, params); err != nil {
			if neo4j.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetryAttempts-1), ctx)
	if err := backoff.Retry(run, policy); err != nil {
		if attempts >= maxRetryAttempts {
			err = &graph.RaceRetryError{Op: op, Attempts: attempts, Err: err}
		}
		return &graph.ConnectionError{Store: "graph", Err: err}
	}
	return nil
}

// UpsertUser creates the user vertex if absent.
func (d *Driver) UpsertUser(ctx context.Context, user graph.User) error {
	if user.ID == "" {
		return &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	return d.write(ctx, `MERGE (u:User {id: $id})`, map[string]any{"id": user.ID})
}

// UpsertTimelineNode mirrors a timeline node and links it to its user.
func (d *Driver) UpsertTimelineNode(ctx context.Context, node graph.TimelineNode) error {
	if node.ID == "" {
		return &graph.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}
	if node.UserID == "" {
		return &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	query := `
		MERGE (u:User {id: $userId})
		MERGE (n:TimelineNode {id: $id})
		SET n.user_id = $userId, n.title = $title, n.node_type = $nodeType
		MERGE (u)-[:OWNS]->(n)
	`
	return d.write(ctx, query, map[string]any{
		"id":       node.ID,
		"userId":   node.UserID,
		"title":    node.Title,
		"nodeType": node.NodeType,
	})
}

// UpsertSession creates or refreshes the session vertex and its BELONGS_TO
// and CONTAINS edges in one statement, so a failure leaves no dangling edge.
func (d *Driver) UpsertSession(ctx context.Context, s graph.Session) (bool, error) {
	if s.ExternalID == "" {
		return false, &graph.ValidationError{Field: "externalId", Reason: "must not be empty"}
	}
	if s.UserID == "" {
		return false, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if s.NodeID == "" {
		return false, &graph.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}

	query := `
		MERGE (u:User {id: $userId})
		MERGE (n:TimelineNode {id: $nodeId})
		MERGE (s:Session {external_id: $externalId})
		ON CREATE SET s.created = true
		ON MATCH SET s.created = false
		SET s.user_id = $userId,
		    s.node_id = $nodeId,
		    s.start_time = datetime($startTime),
		    s.end_time = datetime($endTime),
		    s.workflow_primary = $workflowPrimary,
		    s.workflow_secondary = $workflowSecondary,
		    s.workflow_confidence = $workflowConfidence,
		    s.screenshot_count = $screenshotCount
		MERGE (s)-[:BELONGS_TO]->(u)
		MERGE (n)-[:CONTAINS]->(s)
		RETURN s.created AS created
	`
	params := map[string]any{
		"externalId":         s.ExternalID,
		"userId":             s.UserID,
		"nodeId":             s.NodeID,
		"startTime":          s.StartTime.UTC().Format(time.RFC3339Nano),
		"endTime":            s.EndTime.UTC().Format(time.RFC3339Nano),
		"workflowPrimary":    s.Workflow.Primary,
		"workflowSecondary":  s.Workflow.Secondary,
		"workflowConfidence": s.Workflow.Confidence,
		"screenshotCount":    s.ScreenshotCount,
	}

	created, err := d.readBool(ctx, query, params, "created", neo4j.AccessModeWrite)
	if err != nil {
		return false, err
	}
	return created, nil
}

// UpsertActivity creates or refreshes an activity vertex inside its session.
func (d *Driver) UpsertActivity(ctx context.Context, a graph.Activity) (bool, error) {
	if a.ID == "" {
		return false, &graph.ValidationError{Field: "activityId", Reason: "must not be empty"}
	}
	if a.SessionID == "" {
		return false, &graph.ValidationError{Field: "sessionId", Reason: "must not be empty"}
	}

	query := `
		MATCH (s:Session {external_id: $sessionId})
		MERGE (a:Activity {id: $id})
		ON CREATE SET a.created = true
		ON MATCH SET a.created = false
		SET a.session_id = $sessionId,
		    a.timestamp = datetime($timestamp),
		    a.summary = $summary,
		    a.workflow_tag = $workflowTag,
		    a.confidence = $confidence
		MERGE (a)-[:IN_SESSION]->(s)
		RETURN a.created AS created
	`
	params := map[string]any{
		"id":          a.ID,
		"sessionId":   a.SessionID,
		"timestamp":   a.Timestamp.UTC().Format(time.RFC3339Nano),
		"summary":     a.Summary,
		"workflowTag": a.WorkflowTag,
		"confidence":  a.Confidence,
	}

	created, err := d.readBool(ctx, query, params, "created", neo4j.AccessModeWrite)
	if err != nil {
		return false, err
	}
	return created, nil
}

// CreateEntityRelationship links activity -> entity with a USES edge. The
// increment happens inside the edge MERGE, so the counter moves exactly once
// per distinct (activity, entity) pair and never on retries.
func (d *Driver) CreateEntityRelationship(ctx context.Context, activityID string, e graph.Entity, mentionContext string) (graph.Entity, error) {
	if activityID == "" {
		return graph.Entity{}, &graph.ValidationError{Field: "activityId", Reason: "must not be empty"}
	}
	if e.Name == "" {
		return graph.Entity{}, &graph.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	query := `
		MATCH (a:Activity {id: $activityId})
		MERGE (e:Entity {name: $name, entity_type: $entityType})
		ON CREATE SET e.frequency = 0
		MERGE (a)-[r:USES]->(e)
		ON CREATE SET r.context = $context, e.frequency = e.frequency + 1
		SET e.last_seen_at = CASE
			WHEN e.last_seen_at IS NULL OR a.timestamp > e.last_seen_at THEN a.timestamp
			ELSE e.last_seen_at
		END
		RETURN e.frequency AS frequency, toString(e.last_seen_at) AS lastSeen
	`
	params := map[string]any{
		"activityId": activityID,
		"name":       e.Name,
		"entityType": e.Type,
		"context":    mentionContext,
	}

	freq, lastSeen, err := d.readCounter(ctx, "CreateEntityRelationship", query, params)
	if err != nil {
		return graph.Entity{}, err
	}
	return graph.Entity{Name: e.Name, Type: e.Type, Frequency: freq, LastSeenAt: lastSeen}, nil
}

// CreateConceptRelationship links activity -> concept with a RELATES_TO edge
// carrying a relevance score.
func (d *Driver) CreateConceptRelationship(ctx context.Context, activityID string, c graph.Concept, relevance float64) (graph.Concept, error) {
	if activityID == "" {
		return graph.Concept{}, &graph.ValidationError{Field: "activityId", Reason: "must not be empty"}
	}
	if c.Name == "" {
		return graph.Concept{}, &graph.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	query := `
		MATCH (a:Activity {id: $activityId})
		MERGE (c:Concept {name: $name, category: $category})
		ON CREATE SET c.frequency = 0
		MERGE (a)-[r:RELATES_TO]->(c)
		ON CREATE SET r.relevance = $relevance, c.frequency = c.frequency + 1
		SET c.last_seen_at = CASE
			WHEN c.last_seen_at IS NULL OR a.timestamp > c.last_seen_at THEN a.timestamp
			ELSE c.last_seen_at
		END
		RETURN c.frequency AS frequency, toString(c.last_seen_at) AS lastSeen
	`
	params := map[string]any{
		"activityId": activityID,
		"name":       c.Name,
		"category":   c.Category,
		"relevance":  relevance,
	}

	freq, lastSeen, err := d.readCounter(ctx, "CreateConceptRelationship", query, params)
	if err != nil {
		return graph.Concept{}, err
	}
	return graph.Concept{Name: c.Name, Category: c.Category, Frequency: freq, LastSeenAt: lastSeen}, nil
}

// SessionsForNode returns the (user, node) sessions starting at or after
// since, ordered by start time then external id.
func (d *Driver) SessionsForNode(ctx context.Context, userID, nodeID string, since time.Time) ([]graph.Session, error) {
	if userID == "" {
		return nil, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if nodeID == "" {
		return nil, &graph.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}

	query := `
		MATCH (n:TimelineNode {id: $nodeId})-[:CONTAINS]->(s:Session)
		WHERE s.user_id = $userId AND s.start_time >= datetime($since)
		RETURN s ORDER BY s.start_time, s.external_id
	`
	return d.readSessions(ctx, query, map[string]any{
		"nodeId": nodeID,
		"userId": userID,
		"since":  since.UTC().Format(time.RFC3339Nano),
	})
}

// SessionsByID returns the sessions with the given external ids, skipping
// unknown ids. The UNWIND keeps the results in input order.
func (d *Driver) SessionsByID(ctx context.Context, externalIDs []string) ([]graph.Session, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	query := `
		UNWIND $ids AS id
		MATCH (s:Session {external_id: id})
		RETURN s
	`
	return d.readSessions(ctx, query, map[string]any{"ids": externalIDs})
}

// NeighborsWithinDepth walks CONTAINS/USES/RELATES_TO/FOLLOWS edges from the
// seed sessions up to maxDepth hops.
func (d *Driver) NeighborsWithinDepth(ctx context.Context, seedSessionIDs []string, maxDepth int, since time.Time) (*graph.Traversal, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (seed:Session) WHERE seed.external_id IN $seeds
		MATCH path = (seed)-[:CONTAINS|IN_SESSION|USES|RELATES_TO|FOLLOWS*0..%d]-(m)
		WHERE ALL(s IN [x IN nodes(path) WHERE x:Session | x] WHERE s.start_time >= datetime($since))
		RETURN DISTINCT m
	`, maxDepth)

	result, err := session.Run(ctx, query, map[string]any{
		"seeds": seedSessionIDs,
		"since": since.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}

	trav := &graph.Traversal{}
	for result.Next(ctx) {
		raw, ok := result.Record().Get("m")
		if !ok {
			continue
		}
		node, ok := raw.(neo4j.Node)
		if !ok {
			continue
		}
		switch {
		case hasLabel(node, "Entity"):
			trav.Entities = append(trav.Entities, graph.Entity{
				Name:       stringProp(node, "name"),
				Type:       stringProp(node, "entity_type"),
				Frequency:  intProp(node, "frequency"),
				LastSeenAt: timeProp(node, "last_seen_at"),
			})
		case hasLabel(node, "Concept"):
			trav.Concepts = append(trav.Concepts, graph.Concept{
				Name:       stringProp(node, "name"),
				Category:   stringProp(node, "category"),
				Frequency:  intProp(node, "frequency"),
				LastSeenAt: timeProp(node, "last_seen_at"),
			})
		case hasLabel(node, "Session"):
			trav.Sessions = append(trav.Sessions, sessionFromNode(node))
		}
	}
	if err := result.Err(); err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}
	return trav, nil
}

// SessionChainsForUser follows FOLLOWS edges from each chain head owned by
// the user, restricted to sessions starting within [from, to).
func (d *Driver) SessionChainsForUser(ctx context.Context, userID string, from, to time.Time) ([][]graph.Session, error) {
	if userID == "" {
		return nil, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	// The optional variable-length match keeps head-only chains in the
	// result set; collect skips the null rows it produces for them.
	query := `
		MATCH (head:Session {user_id: $userId})
		WHERE NOT ()-[:FOLLOWS]->(head)
		OPTIONAL MATCH (head)-[:FOLLOWS*1..]->(s:Session)
		WITH head, collect(s) AS tail
		RETURN head, tail
	`

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]any{"userId": userID})
	if err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}

	var chains [][]graph.Session
	for result.Next(ctx) {
		record := result.Record()
		var head graph.Session
		var tail []graph.Session

		if raw, ok := record.Get("head"); ok {
			if node, ok := raw.(neo4j.Node); ok {
				head = sessionFromNode(node)
			}
		}
		if raw, ok := record.Get("tail"); ok {
			if items, ok := raw.([]any); ok {
				for _, item := range items {
					if node, ok := item.(neo4j.Node); ok {
						tail = append(tail, sessionFromNode(node))
					}
				}
			}
		}

		chain := assembleChain(head, tail, from, to)
		if len(chain) > 0 {
			chains = append(chains, chain)
		}
	}
	if err := result.Err(); err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}
	return chains, nil
}

// assembleChain prepends the chain head to its FOLLOWS tail and restricts
// the chain to sessions starting within [from, to). Each session appears at
// most once, even if a query row echoes the head into the tail.
func assembleChain(head graph.Session, tail []graph.Session, from, to time.Time) []graph.Session {
	chain := make([]graph.Session, 0, len(tail)+1)
	if head.ExternalID != "" {
		chain = append(chain, head)
	}
	for _, s := range tail {
		if s.ExternalID == head.ExternalID {
			continue
		}
		chain = append(chain, s)
	}

	filtered := chain[:0]
	for _, s := range chain {
		if !s.StartTime.Before(from) && s.StartTime.Before(to) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// ActivitiesBySession returns the session's activities ordered by timestamp.
func (d *Driver) ActivitiesBySession(ctx context.Context, sessionID string) ([]graph.Activity, error) {
	if sessionID == "" {
		return nil, &graph.ValidationError{Field: "sessionId", Reason: "must not be empty"}
	}

	query := `
		MATCH (a:Activity)-[:IN_SESSION]->(:Session {external_id: $sessionId})
		RETURN a ORDER BY a.timestamp, a.id
	`

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]any{"sessionId": sessionID})
	if err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}

	var out []graph.Activity
	for result.Next(ctx) {
		if raw, ok := result.Record().Get("a"); ok {
			if node, ok := raw.(neo4j.Node); ok {
				out = append(out, activityFromNode(node))
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}
	return out, nil
}

// EntityOccurrences returns the activities that mention the given entity.
func (d *Driver) EntityOccurrences(ctx context.Context, name, entityType string) ([]graph.Activity, error) {
	query := `
		MATCH (a:Activity)-[:USES]->(:Entity {name: $name, entity_type: $entityType})
		RETURN a ORDER BY a.timestamp
	`

	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]any{"name": name, "entityType": entityType})
	if err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}

	var out []graph.Activity
	for result.Next(ctx) {
		if raw, ok := result.Record().Get("a"); ok {
			if node, ok := raw.(neo4j.Node); ok {
				out = append(out, activityFromNode(node))
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}
	return out, nil
}

// SetFollows replaces from's outgoing FOLLOWS edge and to's incoming one.
func (d *Driver) SetFollows(ctx context.Context, fromExternalID, toExternalID string) error {
	query := `
		MATCH (from:Session {external_id: $from})
		MATCH (to:Session {external_id: $to})
		OPTIONAL MATCH (from)-[old:FOLLOWS]->() DELETE old
		WITH from, to
		OPTIONAL MATCH ()-[oldIn:FOLLOWS]->(to) DELETE oldIn
		WITH from, to
		MERGE (from)-[:FOLLOWS]->(to)
	`
	return d.writeWithRetry(ctx, "SetFollows", query, map[string]any{
		"from": fromExternalID,
		"to":   toExternalID,
	})
}

// RemoveFollows drops from's outgoing FOLLOWS edge, if any.
func (d *Driver) RemoveFollows(ctx context.Context, fromExternalID string) error {
	query := `
		MATCH (:Session {external_id: $from})-[r:FOLLOWS]->()
		DELETE r
	`
	return d.writeWithRetry(ctx, "RemoveFollows", query, map[string]any{"from": fromExternalID})
}

// Ping verifies server connectivity.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.driver.VerifyConnectivity(ctx); err != nil {
		return &graph.ConnectionError{Store: "graph", Err: err}
	}
	return nil
}

// Close shuts down the underlying driver.
func (d *Driver) Close() error {
	return d.driver.Close(context.Background())
}

func (d *Driver) readBool(ctx context.Context, query string, params map[string]any, field string, mode neo4j.AccessMode) (bool, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return false, &graph.ConnectionError{Store: "graph", Err: err}
	}
	if result.Next(ctx) {
		if raw, ok := result.Record().Get(field); ok {
			if b, ok := raw.(bool); ok {
				return b, nil
			}
		}
	}
	if err := result.Err(); err != nil {
		return false, &graph.ConnectionError{Store: "graph", Err: err}
	}
	return false, graph.ErrNotFound
}

func (d *Driver) readCounter(ctx context.Context, op, query string, params map[string]any) (int64, time.Time, error) {
	var freq int64
	var lastSeen time.Time
	attempts := 0

	run := func() error {
		attempts++
		session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)

		result, err := session.Run(ctx, query, params)
		if err != nil {
			if neo4j.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return backoff.Permanent(err)
			}
			return backoff.Permanent(graph.ErrNotFound)
		}

		record := result.Record()
		if raw, ok := record.Get("frequency"); ok {
			if n, ok := raw.(int64); ok {
				freq = n
			}
		}
		if raw, ok := record.Get("lastSeen"); ok {
			if s, ok := raw.(string); ok {
				if t, perr := time.Parse(time.RFC3339Nano, s); perr == nil {
					lastSeen = t
				}
			}
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetryAttempts-1), ctx)
	if err := backoff.Retry(run, policy); err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return 0, time.Time{}, graph.ErrNotFound
		}
		if attempts >= maxRetryAttempts {
			err = &graph.RaceRetryError{Op: op, Attempts: attempts, Err: err}
		}
		return 0, time.Time{}, &graph.ConnectionError{Store: "graph", Err: err}
	}
	return freq, lastSeen, nil
}

func (d *Driver) readSessions(ctx context.Context, query string, params map[string]any) ([]graph.Session, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}

	var out []graph.Session
	for result.Next(ctx) {
		if raw, ok := result.Record().Get("s"); ok {
			if node, ok := raw.(neo4j.Node); ok {
				out = append(out, sessionFromNode(node))
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, &graph.ConnectionError{Store: "graph", Err: err}
	}
	return out, nil
}

func sessionFromNode(node neo4j.Node) graph.Session {
	return graph.Session{
		ExternalID: stringProp(node, "external_id"),
		UserID:     stringProp(node, "user_id"),
		NodeID:     stringProp(node, "node_id"),
		StartTime:  timeProp(node, "start_time"),
		EndTime:    timeProp(node, "end_time"),
		Workflow: graph.Workflow{
			Primary:    stringProp(node, "workflow_primary"),
			Secondary:  stringProp(node, "workflow_secondary"),
			Confidence: floatProp(node, "workflow_confidence"),
		},
		ScreenshotCount: int(intProp(node, "screenshot_count")),
	}
}

func activityFromNode(node neo4j.Node) graph.Activity {
	return graph.Activity{
		ID:          stringProp(node, "id"),
		SessionID:   stringProp(node, "session_id"),
		Timestamp:   timeProp(node, "timestamp"),
		Summary:     stringProp(node, "summary"),
		WorkflowTag: stringProp(node, "workflow_tag"),
		Confidence:  floatProp(node, "confidence"),
	}
}

func hasLabel(node neo4j.Node, label string) bool {
	for _, l := range node.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func stringProp(node neo4j.Node, key string) string {
	if v, ok := node.Props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intProp(node neo4j.Node, key string) int64 {
	if v, ok := node.Props[key]; ok {
		switch n := v.(type) {
		case int64:
			return n
		case float64:
			return int64(n)
		}
	}
	return 0
}

func floatProp(node neo4j.Node, key string) float64 {
	if v, ok := node.Props[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
	}
	return 0
}

func timeProp(node neo4j.Node, key string) time.Time {
	if v, ok := node.Props[key]; ok {
		switch t := v.(type) {
		case time.Time:
			return t
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

var _ graph.Driver = (*Driver)(nil)
