// Package resolve deduplicates extracted entities and concepts against the
// graph store and keeps the vector mirrors in sync. Resolution is keyed on a
// normalized name so "VSCode", " vscode " and "vscode" land on one vertex,
// with frequency counted once per distinct source activity.
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/embeddings"
	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/vector"
)

// DefaultConfidenceThreshold is the minimum extraction confidence accepted
// when none is configured.
const DefaultConfidenceThreshold = 0.5

// ExtractedEntity is a raw entity mention produced by an upstream extractor.
type ExtractedEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`

	// Context is the surrounding text of the mention, stored on the USES edge.
	Context string `json:"context,omitempty"`
}

// ExtractedConcept is a raw concept mention produced by an upstream extractor.
type ExtractedConcept struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`

	// Relevance weights the RELATES_TO edge; falls back to Confidence when 0.
	Relevance float64 `json:"relevance,omitempty"`
}

// Engine resolves extracted mentions into deduplicated graph vertices.
type Engine struct {
	graph     graph.Driver
	vectors   vector.Driver
	embedder  embeddings.Embedder
	threshold float64
	logger    *zap.Logger
}

// NewEngine creates a resolution engine. A threshold <= 0 falls back to
// DefaultConfidenceThreshold.
func NewEngine(g graph.Driver, v vector.Driver, e embeddings.Embedder, threshold float64, logger *zap.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Engine{graph: g, vectors: v, embedder: e, threshold: threshold, logger: logger}
}

// NormalizeName lowercases, trims, and collapses internal whitespace so
// surface variants of a name share one dedup key.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ResolveEntities resolves a batch of extracted entities against the graph
// for one source activity. Malformed and low-confidence mentions are skipped,
// never fatal. Each accepted mention lands on exactly one entity vertex and
// bumps its frequency at most once for this activity.
func (e *Engine) ResolveEntities(ctx context.Context, activityID string, extracted []ExtractedEntity) ([]graph.Entity, error) {
	if activityID == "" {
		return nil, &graph.ValidationError{Field: "activityID", Reason: "must not be empty"}
	}

	resolved := make([]graph.Entity, 0, len(extracted))
	for _, ext := range extracted {
		name := NormalizeName(ext.Name)
		entityType := strings.TrimSpace(strings.ToLower(ext.Type))
		if name == "" || entityType == "" {
			e.logger.Debug("skipping malformed entity mention",
				zap.String("raw_name", ext.Name),
				zap.String("raw_type", ext.Type),
			)
			continue
		}
		if ext.Confidence < e.threshold {
			e.logger.Debug("skipping low-confidence entity mention",
				zap.String("name", name),
				zap.Float64("confidence", ext.Confidence),
				zap.Float64("threshold", e.threshold),
			)
			continue
		}

		entity, err := e.graph.CreateEntityRelationship(ctx, activityID, graph.Entity{
			Name: name,
			Type: entityType,
		}, ext.Context)
		if err != nil {
			return resolved, fmt.Errorf("resolving entity %q: %w", name, err)
		}
		resolved = append(resolved, entity)

		e.mirror(ctx, vector.KindEntity, entity.Key(), name+" ("+entityType+")", entity.Frequency, entity.LastSeenAt)
	}
	return resolved, nil
}

// ResolveConcepts resolves a batch of extracted concepts against the graph
// for one source activity, mirroring ResolveEntities' skip and frequency
// semantics with a relevance-weighted edge.
func (e *Engine) ResolveConcepts(ctx context.Context, activityID string, extracted []ExtractedConcept) ([]graph.Concept, error) {
	if activityID == "" {
		return nil, &graph.ValidationError{Field: "activityID", Reason: "must not be empty"}
	}

	resolved := make([]graph.Concept, 0, len(extracted))
	for _, ext := range extracted {
		name := NormalizeName(ext.Name)
		category := strings.TrimSpace(strings.ToLower(ext.Category))
		if name == "" || category == "" {
			e.logger.Debug("skipping malformed concept mention",
				zap.String("raw_name", ext.Name),
				zap.String("raw_category", ext.Category),
			)
			continue
		}
		if ext.Confidence < e.threshold {
			e.logger.Debug("skipping low-confidence concept mention",
				zap.String("name", name),
				zap.Float64("confidence", ext.Confidence),
				zap.Float64("threshold", e.threshold),
			)
			continue
		}

		relevance := ext.Relevance
		if relevance == 0 {
			relevance = ext.Confidence
		}

		concept, err := e.graph.CreateConceptRelationship(ctx, activityID, graph.Concept{
			Name:     name,
			Category: category,
		}, relevance)
		if err != nil {
			return resolved, fmt.Errorf("resolving concept %q: %w", name, err)
		}
		resolved = append(resolved, concept)

		e.mirror(ctx, vector.KindConcept, concept.Key(), name+" ("+category+")", concept.Frequency, concept.LastSeenAt)
	}
	return resolved, nil
}

// mirror syncs a resolved vertex into the vector store. Mirror failures are
// logged and swallowed; the graph write already succeeded and remains the
// system of record.
func (e *Engine) mirror(ctx context.Context, kind vector.Kind, key, text string, frequency int64, lastSeenAt time.Time) {
	embedding, err := e.embedder.Embed(ctx, text)
	if err != nil {
		e.logger.Warn("embedding failed, vector mirror skipped",
			zap.String("kind", string(kind)),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}

	rec := vector.Record{Key: key, Kind: kind, Embedding: embedding, Frequency: frequency, LastSeenAt: lastSeenAt}
	if err := e.vectors.Upsert(ctx, []vector.Record{rec}); err != nil {
		e.logger.Warn("vector mirror upsert failed",
			zap.String("kind", string(kind)),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
