// Package ingest is the write boundary of the knowledge engine. It validates
// incoming graph writes, places sessions into their temporal chains, and
// hands extraction batches to the async worker pool so resolution stays off
// the HTTP hot path.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/embeddings"
	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/resolve"
	"github.com/loomery/weft/pkg/sequence"
	"github.com/loomery/weft/pkg/vector"
)

// Item kinds accepted in an extraction batch.
const (
	KindEntity  = "entity"
	KindConcept = "concept"
)

// ExtractedItem is the tagged wire form of one extraction. Kind selects
// which of Type or Category is required.
type ExtractedItem struct {
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Type       string  `json:"type,omitempty"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
	Relevance  float64 `json:"relevance,omitempty"`
}

// Batch is an extraction batch bound to one source activity. SessionID and
// UserID are optional passthroughs stamped onto the persisted event.
type Batch struct {
	ActivityID string
	SessionID  string
	UserID     string
	Items      []ExtractedItem
}

// Submitter accepts extraction batches for async processing.
type Submitter interface {
	Submit(batch Batch) bool
}

// Service validates and persists graph writes.
type Service struct {
	graph     graph.Driver
	vectors   vector.Driver
	embedder  embeddings.Embedder
	sequencer *sequence.Sequencer
	pool      Submitter
	logger    *zap.Logger
}

// NewService creates the ingestion service.
func NewService(g graph.Driver, v vector.Driver, e embeddings.Embedder, seq *sequence.Sequencer, pool Submitter, logger *zap.Logger) *Service {
	return &Service{graph: g, vectors: v, embedder: e, sequencer: seq, pool: pool, logger: logger}
}

// UpsertUser persists a user vertex.
func (s *Service) UpsertUser(ctx context.Context, user graph.User) error {
	if user.ID == "" {
		return &graph.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return s.graph.UpsertUser(ctx, user)
}

// UpsertNode mirrors a timeline node into the graph.
func (s *Service) UpsertNode(ctx context.Context, node graph.TimelineNode) error {
	if node.ID == "" {
		return &graph.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if node.UserID == "" {
		return &graph.ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	return s.graph.UpsertTimelineNode(ctx, node)
}

// UpsertSession persists a session and, on first creation, links it into its
// (user, node) FOLLOWS chain and mirrors it into the vector store. Repeat
// upserts with the same external id are no-ops on the chain.
func (s *Service) UpsertSession(ctx context.Context, session graph.Session) (bool, error) {
	if session.ExternalID == "" {
		return false, &graph.ValidationError{Field: "external_id", Reason: "must not be empty"}
	}
	if session.UserID == "" || session.NodeID == "" {
		return false, &graph.ValidationError{Field: "user_id/node_id", Reason: "must not be empty"}
	}
	if session.StartTime.IsZero() {
		return false, &graph.ValidationError{Field: "start_time", Reason: "must be set"}
	}
	if !session.EndTime.IsZero() && session.EndTime.Before(session.StartTime) {
		return false, &graph.ValidationError{Field: "end_time", Reason: "must not precede start_time"}
	}

	created, err := s.graph.UpsertSession(ctx, session)
	if err != nil {
		return false, fmt.Errorf("upserting session: %w", err)
	}

	if created {
		if err := s.sequencer.Place(ctx, session); err != nil {
			return created, fmt.Errorf("sequencing session: %w", err)
		}
		s.mirrorSession(ctx, session)
	}
	return created, nil
}

// UpsertActivity persists an activity inside its session.
func (s *Service) UpsertActivity(ctx context.Context, activity graph.Activity) (bool, error) {
	if activity.ID == "" {
		return false, &graph.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if activity.SessionID == "" {
		return false, &graph.ValidationError{Field: "session_id", Reason: "must not be empty"}
	}
	if activity.Timestamp.IsZero() {
		return false, &graph.ValidationError{Field: "timestamp", Reason: "must be set"}
	}
	return s.graph.UpsertActivity(ctx, activity)
}

// SubmitExtractions validates a tagged extraction batch and enqueues it for
// async resolution. Returns ValidationError on a malformed batch and an
// error when the queue is saturated.
func (s *Service) SubmitExtractions(_ context.Context, batch Batch) error {
	if batch.ActivityID == "" {
		return &graph.ValidationError{Field: "activity_id", Reason: "must not be empty"}
	}
	for i, item := range batch.Items {
		switch item.Kind {
		case KindEntity, KindConcept:
		default:
			return &graph.ValidationError{
				Field:  fmt.Sprintf("items[%d].kind", i),
				Reason: `must be "entity" or "concept"`,
			}
		}
	}

	if !s.pool.Submit(batch) {
		return fmt.Errorf("extraction queue full, batch for activity %s dropped", batch.ActivityID)
	}
	return nil
}

// mirrorSession indexes the session's workflow text in the vector store.
// Failures are logged, never fatal; the graph write already landed.
func (s *Service) mirrorSession(ctx context.Context, session graph.Session) {
	parts := make([]string, 0, 2)
	if session.Workflow.Primary != "" {
		parts = append(parts, session.Workflow.Primary)
	}
	if session.Workflow.Secondary != "" {
		parts = append(parts, session.Workflow.Secondary)
	}
	if len(parts) == 0 {
		return
	}

	embedding, err := s.embedder.Embed(ctx, strings.Join(parts, " "))
	if err != nil {
		s.logger.Warn("session embedding failed, mirror skipped",
			zap.String("session_id", session.ExternalID),
			zap.Error(err),
		)
		return
	}

	err = s.vectors.Upsert(ctx, []vector.Record{{
		Key:        session.ExternalID,
		Kind:       vector.KindSession,
		Embedding:  embedding,
		Frequency:  1,
		LastSeenAt: session.StartTime,
	}})
	if err != nil {
		s.logger.Warn("session mirror upsert failed",
			zap.String("session_id", session.ExternalID),
			zap.Error(err),
		)
	}
}

// SplitItems partitions a tagged batch into the resolver's input types.
func SplitItems(items []ExtractedItem) ([]resolve.ExtractedEntity, []resolve.ExtractedConcept) {
	var entities []resolve.ExtractedEntity
	var concepts []resolve.ExtractedConcept
	for _, item := range items {
		switch item.Kind {
		case KindEntity:
			entities = append(entities, resolve.ExtractedEntity{
				Name:       item.Name,
				Type:       item.Type,
				Confidence: item.Confidence,
				Context:    item.Context,
			})
		case KindConcept:
			concepts = append(concepts, resolve.ExtractedConcept{
				Name:       item.Name,
				Category:   item.Category,
				Confidence: item.Confidence,
				Relevance:  item.Relevance,
			})
		}
	}
	return entities, concepts
}
