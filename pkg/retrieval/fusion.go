package retrieval

import (
	"sort"
	"time"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/vector"
)

// Fusion weights. The both-paths bonus is what guarantees a candidate found
// by graph and vector ranks strictly above an otherwise-equal single-path
// candidate; the weighted sum alone cannot promise that.
const (
	defaultGraphWeight  = 0.6
	defaultVectorWeight = 0.4
	bothPathsBonus      = 0.1
)

// RankedEntity is an entity candidate with its fused score.
type RankedEntity struct {
	graph.Entity

	Score      float64 `json:"score"`
	Similarity float32 `json:"similarity,omitempty"`
	InGraph    bool    `json:"in_graph"`
	InVector   bool    `json:"in_vector"`
}

// RankedConcept is a concept candidate with its fused score.
type RankedConcept struct {
	graph.Concept

	Score      float64 `json:"score"`
	Similarity float32 `json:"similarity,omitempty"`
	InGraph    bool    `json:"in_graph"`
	InVector   bool    `json:"in_vector"`
}

// candidate is the path-neutral fusion unit, deduplicated by key.
type candidate struct {
	key        string
	frequency  int64
	lastSeen   time.Time
	similarity float32
	inGraph    bool
	inVector   bool
	score      float64
}

// fuse merges graph and vector candidates, scores them, applies the
// MinFrequency filter, and truncates to topK. Vector-only candidates are
// exempt from the frequency filter since the graph never vouched for them.
func fuse(cands map[string]*candidate, graphWeight, vectorWeight float64, minFrequency int64, topK int) []*candidate {
	var maxFreq int64
	for _, c := range cands {
		if c.inGraph && c.frequency > maxFreq {
			maxFreq = c.frequency
		}
	}

	out := make([]*candidate, 0, len(cands))
	for _, c := range cands {
		if c.inGraph && c.frequency < minFrequency {
			continue
		}

		var graphSignal float64
		if c.inGraph && maxFreq > 0 {
			graphSignal = float64(c.frequency) / float64(maxFreq)
		}
		c.score = graphWeight*graphSignal + vectorWeight*float64(c.similarity)
		if c.inGraph && c.inVector {
			c.score += bothPathsBonus
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].frequency != out[j].frequency {
			return out[i].frequency > out[j].frequency
		}
		return out[i].key < out[j].key
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func fuseEntities(graphSide []graph.Entity, vectorSide []vector.QueryResult, graphWeight, vectorWeight float64, minFrequency int64, topK int) []RankedEntity {
	cands := make(map[string]*candidate)
	for _, e := range graphSide {
		cands[e.Key()] = &candidate{
			key:       e.Key(),
			frequency: e.Frequency,
			lastSeen:  e.LastSeenAt,
			inGraph:   true,
		}
	}
	mergeVectorHits(cands, vectorSide)

	fused := fuse(cands, graphWeight, vectorWeight, minFrequency, topK)
	ranked := make([]RankedEntity, 0, len(fused))
	for _, c := range fused {
		name, entityType := graph.SplitKey(c.key)
		ranked = append(ranked, RankedEntity{
			Entity: graph.Entity{
				Name:       name,
				Type:       entityType,
				Frequency:  c.frequency,
				LastSeenAt: c.lastSeen,
			},
			Score:      c.score,
			Similarity: c.similarity,
			InGraph:    c.inGraph,
			InVector:   c.inVector,
		})
	}
	return ranked
}

func fuseConcepts(graphSide []graph.Concept, vectorSide []vector.QueryResult, graphWeight, vectorWeight float64, minFrequency int64, topK int) []RankedConcept {
	cands := make(map[string]*candidate)
	for _, c := range graphSide {
		cands[c.Key()] = &candidate{
			key:       c.Key(),
			frequency: c.Frequency,
			lastSeen:  c.LastSeenAt,
			inGraph:   true,
		}
	}
	mergeVectorHits(cands, vectorSide)

	fused := fuse(cands, graphWeight, vectorWeight, minFrequency, topK)
	ranked := make([]RankedConcept, 0, len(fused))
	for _, c := range fused {
		name, category := graph.SplitKey(c.key)
		ranked = append(ranked, RankedConcept{
			Concept: graph.Concept{
				Name:       name,
				Category:   category,
				Frequency:  c.frequency,
				LastSeenAt: c.lastSeen,
			},
			Score:      c.score,
			Similarity: c.similarity,
			InGraph:    c.inGraph,
			InVector:   c.inVector,
		})
	}
	return ranked
}

// fuseSessions ranks related sessions across both paths. A session's
// graph-native signal is recency within the lookback window, not frequency,
// so the frequency filter does not apply here. Vector-only sessions that
// started before the window are dropped.
func fuseSessions(graphSide, vectorLoaded []graph.Session, hits []vector.QueryResult, since, now time.Time, opts Options) []graph.Session {
	type sessionCandidate struct {
		session    graph.Session
		similarity float32
		inGraph    bool
		inVector   bool
		score      float64
	}

	cands := make(map[string]*sessionCandidate, len(graphSide)+len(vectorLoaded))
	for _, s := range graphSide {
		cands[s.ExternalID] = &sessionCandidate{session: s, inGraph: true}
	}
	for _, s := range vectorLoaded {
		if s.StartTime.Before(since) {
			continue
		}
		if _, ok := cands[s.ExternalID]; !ok {
			cands[s.ExternalID] = &sessionCandidate{session: s}
		}
	}
	for _, h := range hits {
		c, ok := cands[h.Key]
		if !ok {
			continue
		}
		c.inVector = true
		if h.Score > c.similarity {
			c.similarity = h.Score
		}
	}

	window := now.Sub(since)
	out := make([]*sessionCandidate, 0, len(cands))
	for _, c := range cands {
		var graphSignal float64
		if c.inGraph && window > 0 {
			graphSignal = float64(c.session.StartTime.Sub(since)) / float64(window)
			if graphSignal < 0 {
				graphSignal = 0
			}
			if graphSignal > 1 {
				graphSignal = 1
			}
		}
		c.score = opts.GraphWeight*graphSignal + opts.VectorWeight*float64(c.similarity)
		if c.inGraph && c.inVector {
			c.score += bothPathsBonus
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if !out[i].session.StartTime.Equal(out[j].session.StartTime) {
			return out[i].session.StartTime.After(out[j].session.StartTime)
		}
		return out[i].session.ExternalID < out[j].session.ExternalID
	})
	if len(out) > opts.TopK {
		out = out[:opts.TopK]
	}

	sessions := make([]graph.Session, 0, len(out))
	for _, c := range out {
		sessions = append(sessions, c.session)
	}
	return sessions
}

// mergeVectorHits folds KNN hits into the candidate map, keeping the best
// similarity per key. Graph frequency stays authoritative when both paths
// saw the candidate.
func mergeVectorHits(cands map[string]*candidate, hits []vector.QueryResult) {
	for _, hit := range hits {
		c, ok := cands[hit.Key]
		if !ok {
			c = &candidate{
				key:       hit.Key,
				frequency: hit.Frequency,
				lastSeen:  hit.LastSeenAt,
			}
			cands[hit.Key] = c
		}
		c.inVector = true
		if hit.Score > c.similarity {
			c.similarity = hit.Score
		}
	}
}
