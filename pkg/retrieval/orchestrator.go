// Package retrieval assembles cross-session context bundles. Two paths run
// in parallel under their own budgets: a bounded graph traversal from the
// node's recent sessions and a KNN similarity search seeded from the latest
// session's text. Either path alone can serve a degraded answer; the call
// fails only when both do.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/embeddings"
	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/patterns"
	"github.com/loomery/weft/pkg/vector"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultLookbackDays = 30
	DefaultMaxDepth     = 3
	DefaultMinFrequency = 1
	DefaultTopK         = 10
	DefaultPathBudget   = 800 * time.Millisecond
)

// Options tunes one retrieval call. Zero LookbackDays is meaningful (an
// empty window), so DefaultOptions is the way to get the defaults.
type Options struct {
	// LookbackDays bounds the traversal to sessions starting within the
	// last N days. 0 means an empty window; negative means default.
	LookbackDays int

	// MaxDepth caps the graph walk in hops from the seed sessions.
	MaxDepth int

	// MinFrequency drops graph candidates seen fewer times. Vector-only
	// candidates are exempt.
	MinFrequency int64

	// TopK truncates each ranked category.
	TopK int

	// PathBudget is the per-path time budget.
	PathBudget time.Duration

	// GraphWeight and VectorWeight set the fusion weights. Both zero means
	// defaults (0.6 / 0.4).
	GraphWeight  float64
	VectorWeight float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		LookbackDays: DefaultLookbackDays,
		MaxDepth:     DefaultMaxDepth,
		MinFrequency: DefaultMinFrequency,
		TopK:         DefaultTopK,
		PathBudget:   DefaultPathBudget,
		GraphWeight:  defaultGraphWeight,
		VectorWeight: defaultVectorWeight,
	}
}

func (o Options) withDefaults() Options {
	if o.LookbackDays < 0 {
		o.LookbackDays = DefaultLookbackDays
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MinFrequency < 1 {
		o.MinFrequency = DefaultMinFrequency
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.PathBudget <= 0 {
		o.PathBudget = DefaultPathBudget
	}
	if o.GraphWeight == 0 && o.VectorWeight == 0 {
		o.GraphWeight = defaultGraphWeight
		o.VectorWeight = defaultVectorWeight
	}
	return o
}

// Metadata reports how a bundle was assembled.
type Metadata struct {
	TotalTimeMs      int64  `json:"total_time_ms"`
	FusedResultCount int    `json:"fused_result_count"`
	Degraded         bool   `json:"degraded"`
	DegradedPath     string `json:"degraded_path,omitempty"`
}

// ContextBundle is the cross-session context for a (user, node) pair.
type ContextBundle struct {
	Entities         []RankedEntity     `json:"entities"`
	Concepts         []RankedConcept    `json:"concepts"`
	WorkflowPatterns []patterns.Pattern `json:"workflow_patterns"`
	RelatedSessions  []graph.Session    `json:"related_sessions"`
	Metadata         Metadata           `json:"retrieval_metadata"`
}

// Health reports per-store reachability.
type Health struct {
	GraphStore  string `json:"graph_store"`
	VectorStore string `json:"vector_store"`
}

// Orchestrator fans retrieval out over the graph and vector paths.
type Orchestrator struct {
	graph    graph.Driver
	vectors  vector.Driver
	embedder embeddings.Embedder
	miner    *patterns.Miner
	logger   *zap.Logger
}

// NewOrchestrator creates a retrieval orchestrator.
func NewOrchestrator(g graph.Driver, v vector.Driver, e embeddings.Embedder, m *patterns.Miner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{graph: g, vectors: v, embedder: e, miner: m, logger: logger}
}

type graphPathResult struct {
	traversal *graph.Traversal
	sessions  []graph.Session
	patterns  []patterns.Pattern
	err       error
}

type vectorPathResult struct {
	entityHits  []vector.QueryResult
	conceptHits []vector.QueryResult
	sessionHits []vector.QueryResult
	err         error
}

// CrossSessionContext retrieves the fused context bundle for a (user, node)
// pair. Caller cancellation cancels both paths; a single path exceeding its
// budget degrades the bundle instead of failing it.
func (o *Orchestrator) CrossSessionContext(ctx context.Context, userID, nodeID string, opts Options) (*ContextBundle, error) {
	if userID == "" {
		return nil, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if nodeID == "" {
		return nil, &graph.ValidationError{Field: "nodeId", Reason: "must not be empty"}
	}
	opts = opts.withDefaults()

	start := time.Now()
	now := start.UTC()
	since := now.AddDate(0, 0, -opts.LookbackDays)

	graphCh := make(chan graphPathResult, 1)
	vectorCh := make(chan vectorPathResult, 1)

	go func() {
		pctx, cancel := context.WithTimeout(ctx, opts.PathBudget)
		defer cancel()
		graphCh <- o.graphPath(pctx, userID, nodeID, since, now, opts)
	}()
	go func() {
		pctx, cancel := context.WithTimeout(ctx, opts.PathBudget)
		defer cancel()
		vectorCh <- o.vectorPath(pctx, userID, nodeID, since, opts)
	}()

	graphRes := <-graphCh
	vectorRes := <-vectorCh

	if graphRes.err != nil && vectorRes.err != nil {
		return nil, fmt.Errorf("both retrieval paths failed: graph: %v; vector: %w", graphRes.err, vectorRes.err)
	}

	bundle := &ContextBundle{}
	if graphRes.err != nil {
		bundle.Metadata.Degraded = true
		bundle.Metadata.DegradedPath = "graph"
		o.logger.Warn("graph path degraded", zap.String("user_id", userID), zap.Error(graphRes.err))
		graphRes.traversal = &graph.Traversal{}
	}
	if vectorRes.err != nil {
		bundle.Metadata.Degraded = true
		bundle.Metadata.DegradedPath = "vector"
		o.logger.Warn("vector path degraded", zap.String("user_id", userID), zap.Error(vectorRes.err))
	}

	bundle.Entities = fuseEntities(graphRes.traversal.Entities, vectorRes.entityHits,
		opts.GraphWeight, opts.VectorWeight, opts.MinFrequency, opts.TopK)
	bundle.Concepts = fuseConcepts(graphRes.traversal.Concepts, vectorRes.conceptHits,
		opts.GraphWeight, opts.VectorWeight, opts.MinFrequency, opts.TopK)
	bundle.WorkflowPatterns = graphRes.patterns
	bundle.RelatedSessions = o.relatedSessions(ctx, graphRes.sessions, vectorRes.sessionHits, since, now, opts)

	bundle.Metadata.TotalTimeMs = time.Since(start).Milliseconds()
	bundle.Metadata.FusedResultCount = len(bundle.Entities) + len(bundle.Concepts)
	return bundle, nil
}

// graphPath seeds from the node's recent sessions, walks the bounded
// neighborhood, and mines workflow patterns over the same window.
func (o *Orchestrator) graphPath(ctx context.Context, userID, nodeID string, since, now time.Time, opts Options) graphPathResult {
	seeds, err := o.graph.SessionsForNode(ctx, userID, nodeID, since)
	if err != nil {
		return graphPathResult{err: o.pathErr("graph traversal", err, opts)}
	}
	if len(seeds) == 0 {
		return graphPathResult{traversal: &graph.Traversal{}}
	}

	seedIDs := make([]string, 0, len(seeds))
	for _, s := range seeds {
		seedIDs = append(seedIDs, s.ExternalID)
	}

	traversal, err := o.graph.NeighborsWithinDepth(ctx, seedIDs, opts.MaxDepth, since)
	if err != nil {
		return graphPathResult{err: o.pathErr("graph traversal", err, opts)}
	}

	mined, err := o.miner.WorkflowPatterns(ctx, userID, patterns.TimeRange{From: since, To: now}, int(opts.MinFrequency))
	if err != nil {
		return graphPathResult{err: o.pathErr("pattern mining", err, opts)}
	}

	return graphPathResult{traversal: traversal, sessions: traversal.Sessions, patterns: mined}
}

// vectorPath builds a seed embedding from the latest session's aggregate
// text and runs kind-filtered KNN for entities and concepts. An empty
// window yields empty hits without error.
func (o *Orchestrator) vectorPath(ctx context.Context, userID, nodeID string, since time.Time, opts Options) vectorPathResult {
	sessions, err := o.graph.SessionsForNode(ctx, userID, nodeID, since)
	if err != nil {
		return vectorPathResult{err: o.pathErr("vector seed lookup", err, opts)}
	}
	if len(sessions) == 0 {
		return vectorPathResult{}
	}

	latest := sessions[len(sessions)-1]
	acts, err := o.graph.ActivitiesBySession(ctx, latest.ExternalID)
	if err != nil {
		return vectorPathResult{err: o.pathErr("vector seed lookup", err, opts)}
	}

	parts := make([]string, 0, len(acts)+1)
	if latest.Workflow.Primary != "" {
		parts = append(parts, latest.Workflow.Primary)
	}
	for _, a := range acts {
		if a.Summary != "" {
			parts = append(parts, a.Summary)
		}
	}
	if len(parts) == 0 {
		return vectorPathResult{}
	}

	embedding, err := o.embedder.Embed(ctx, strings.Join(parts, "\n"))
	if err != nil {
		return vectorPathResult{err: o.pathErr("seed embedding", err, opts)}
	}

	// Over-fetch so the MinFrequency filter still leaves topK candidates.
	entityHits, err := o.vectors.Query(ctx, embedding, vector.KindEntity, opts.TopK*2)
	if err != nil {
		return vectorPathResult{err: o.pathErr("entity knn", err, opts)}
	}
	conceptHits, err := o.vectors.Query(ctx, embedding, vector.KindConcept, opts.TopK*2)
	if err != nil {
		return vectorPathResult{err: o.pathErr("concept knn", err, opts)}
	}
	sessionHits, err := o.vectors.Query(ctx, embedding, vector.KindSession, opts.TopK*2)
	if err != nil {
		return vectorPathResult{err: o.pathErr("session knn", err, opts)}
	}

	return vectorPathResult{entityHits: entityHits, conceptHits: conceptHits, sessionHits: sessionHits}
}

// relatedSessions merges the graph window's sessions with vector-similar
// ones. Session hits the traversal never touched are resolved through the
// graph store; when that lookup fails the bundle keeps its graph-side
// sessions rather than degrading further.
func (o *Orchestrator) relatedSessions(ctx context.Context, graphSide []graph.Session, hits []vector.QueryResult, since, now time.Time, opts Options) []graph.Session {
	known := make(map[string]bool, len(graphSide))
	for _, s := range graphSide {
		known[s.ExternalID] = true
	}

	var missing []string
	for _, h := range hits {
		if !known[h.Key] {
			known[h.Key] = true
			missing = append(missing, h.Key)
		}
	}

	var loaded []graph.Session
	if len(missing) > 0 {
		var err error
		loaded, err = o.graph.SessionsByID(ctx, missing)
		if err != nil {
			o.logger.Warn("similar session lookup failed",
				zap.Int("hits", len(missing)), zap.Error(err))
			loaded = nil
		}
	}

	return fuseSessions(graphSide, loaded, hits, since, now, opts)
}

// pathErr converts a deadline blow into the budget-carrying timeout error.
func (o *Orchestrator) pathErr(op string, err error, opts Options) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &graph.TimeoutError{Op: op, Budget: opts.PathBudget}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// SearchEntities embeds the query text and returns the topK most similar
// entity records.
func (o *Orchestrator) SearchEntities(ctx context.Context, query string, topK int) ([]vector.QueryResult, error) {
	return o.search(ctx, query, vector.KindEntity, topK)
}

// SearchConcepts embeds the query text and returns the topK most similar
// concept records.
func (o *Orchestrator) SearchConcepts(ctx context.Context, query string, topK int) ([]vector.QueryResult, error) {
	return o.search(ctx, query, vector.KindConcept, topK)
}

func (o *Orchestrator) search(ctx context.Context, query string, kind vector.Kind, topK int) ([]vector.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &graph.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return o.vectors.Query(ctx, embedding, kind, topK)
}

// HealthCheck pings both stores and reports each as ok or fail.
func (o *Orchestrator) HealthCheck(ctx context.Context) Health {
	health := Health{GraphStore: "ok", VectorStore: "ok"}
	if err := o.graph.Ping(ctx); err != nil {
		health.GraphStore = "fail"
	}
	if err := o.vectors.Ping(ctx); err != nil {
		health.VectorStore = "fail"
	}
	return health
}
