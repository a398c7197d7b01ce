// Package patterns mines recurring workflow transitions from a user's
// session chains. A transition is an ordered pair of differing workflow tags
// on consecutive activities; mining aggregates how often each pair recurs
// and how long the hand-off takes on average.
package patterns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
)

// TimeRange bounds mining to sessions starting within [From, To).
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Pattern is one aggregated workflow transition.
type Pattern struct {
	// Transition is the "from→to" tag pair.
	Transition string `json:"transition"`

	// Frequency is how many times the transition was observed.
	Frequency int `json:"frequency"`

	// AvgTransitionTimeMs is the mean milliseconds between the two
	// activities' timestamps.
	AvgTransitionTimeMs float64 `json:"avg_transition_time_ms"`
}

// Miner extracts workflow patterns from the graph store.
type Miner struct {
	graph  graph.Driver
	logger *zap.Logger
}

// NewMiner creates a pattern miner over the given graph store.
func NewMiner(g graph.Driver, logger *zap.Logger) *Miner {
	return &Miner{graph: g, logger: logger}
}

type aggregate struct {
	count   int
	totalMs float64
}

// WorkflowPatterns walks every FOLLOWS-ordered chain of the user inside the
// time range, orders activities by timestamp within each chain, and counts
// consecutive pairs whose workflow tags differ. Pairs sharing a tag are not
// transitions. Patterns below minFrequency are dropped; results are sorted
// by frequency descending, ties by transition name.
func (m *Miner) WorkflowPatterns(ctx context.Context, userID string, timeRange TimeRange, minFrequency int) ([]Pattern, error) {
	if userID == "" {
		return nil, &graph.ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if minFrequency < 1 {
		minFrequency = 1
	}

	chains, err := m.graph.SessionChainsForUser(ctx, userID, timeRange.From, timeRange.To)
	if err != nil {
		return nil, fmt.Errorf("loading session chains: %w", err)
	}

	aggregates := make(map[string]*aggregate)
	for _, chain := range chains {
		var acts []graph.Activity
		for _, session := range chain {
			sessionActs, err := m.graph.ActivitiesBySession(ctx, session.ExternalID)
			if err != nil {
				return nil, fmt.Errorf("loading activities for %s: %w", session.ExternalID, err)
			}
			acts = append(acts, sessionActs...)
		}
		sort.Slice(acts, func(i, j int) bool { return acts[i].Timestamp.Before(acts[j].Timestamp) })

		for i := 1; i < len(acts); i++ {
			prev, curr := acts[i-1], acts[i]
			if prev.WorkflowTag == "" || curr.WorkflowTag == "" || prev.WorkflowTag == curr.WorkflowTag {
				continue
			}
			key := prev.WorkflowTag + "→" + curr.WorkflowTag
			agg, ok := aggregates[key]
			if !ok {
				agg = &aggregate{}
				aggregates[key] = agg
			}
			agg.count++
			agg.totalMs += float64(curr.Timestamp.Sub(prev.Timestamp).Milliseconds())
		}
	}

	patterns := make([]Pattern, 0, len(aggregates))
	for transition, agg := range aggregates {
		if agg.count < minFrequency {
			continue
		}
		patterns = append(patterns, Pattern{
			Transition:          transition,
			Frequency:           agg.count,
			AvgTransitionTimeMs: agg.totalMs / float64(agg.count),
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Frequency == patterns[j].Frequency {
			return patterns[i].Transition < patterns[j].Transition
		}
		return patterns[i].Frequency > patterns[j].Frequency
	})

	m.logger.Debug("workflow patterns mined",
		zap.String("user_id", userID),
		zap.Int("chains", len(chains)),
		zap.Int("patterns", len(patterns)),
	)
	return patterns, nil
}
