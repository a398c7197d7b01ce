// Package inmemory implements vector.Driver with brute-force cosine search
// over an in-process map. It backs the test suites and single-binary
// deployments that don't want an external vector store.
package inmemory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/loomery/weft/pkg/vector"
)

type recordKey struct {
	kind vector.Kind
	key  string
}

// Driver is an in-memory vector store.
type Driver struct {
	mu      sync.RWMutex
	records map[recordKey]vector.Record
}

// NewDriver creates an empty in-memory vector store.
func NewDriver() *Driver {
	return &Driver{records: make(map[recordKey]vector.Record)}
}

// Upsert stores records, replacing existing (kind, key) pairs.
func (d *Driver) Upsert(_ context.Context, records []vector.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range records {
		d.records[recordKey{kind: r.Kind, key: r.Key}] = r
	}
	return nil
}

// Query runs brute-force cosine similarity over all records of the kind.
// Scores are mapped from [-1, 1] into [0, 1].
func (d *Driver) Query(_ context.Context, embedding []float32, kind vector.Kind, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var results []vector.QueryResult
	for rk, rec := range d.records {
		if rk.kind != kind || len(rec.Embedding) != len(embedding) {
			continue
		}
		score := (1 + cosine(embedding, rec.Embedding)) / 2
		results = append(results, vector.QueryResult{Record: rec, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Key < results[j].Key
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get retrieves records of a kind by key.
func (d *Driver) Get(_ context.Context, kind vector.Kind, keys []string) ([]vector.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]vector.Record, 0, len(keys))
	for _, k := range keys {
		if rec, ok := d.records[recordKey{kind: kind, key: k}]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes records of a kind by key.
func (d *Driver) Delete(_ context.Context, kind vector.Kind, keys []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, k := range keys {
		delete(d.records, recordKey{kind: kind, key: k})
	}
	return nil
}

// Ping always succeeds for the in-memory store.
func (d *Driver) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (d *Driver) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ vector.Driver = (*Driver)(nil)
