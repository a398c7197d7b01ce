// Package vector provides interfaces and implementations for the embedding
// store: vector-indexed mirrors of entities, concepts and sessions used for
// similarity search only, never for graph traversal.
package vector

import (
	"context"
	"time"
)

// Kind partitions records by what they mirror.
type Kind string

const (
	KindEntity  Kind = "entity"
	KindConcept Kind = "concept"
	KindSession Kind = "session"
)

// Record is a stored embedding with its sync'd counters. Key is the same
// normalization key the graph store dedups on; the graph store remains the
// system of record for Frequency.
type Record struct {
	// Key is the normalization key (entity/concept dedup key, or the
	// session external id for session records).
	Key string

	// Kind says which mirror this record belongs to.
	Kind Kind

	// Embedding is the fixed-dimension vector representation.
	Embedding []float32

	// Frequency mirrors the graph-side counter at last upsert.
	Frequency int64

	// LastSeenAt mirrors the graph-side recency at last upsert.
	LastSeenAt time.Time
}

// QueryResult is a search hit with its similarity score in [0, 1].
type QueryResult struct {
	Record

	// Score is the similarity to the query embedding (higher = closer).
	Score float32
}

// Driver handles storage and retrieval of vector records.
type Driver interface {
	// Upsert stores records, replacing any existing record with the same
	// (kind, key).
	Upsert(ctx context.Context, records []Record) error

	// Query finds the topK records of the given kind most similar to the
	// embedding.
	Query(ctx context.Context, embedding []float32, kind Kind, topK int) ([]QueryResult, error)

	// Get retrieves records of a kind by their keys.
	Get(ctx context.Context, kind Kind, keys []string) ([]Record, error)

	// Delete removes records of a kind by their keys.
	Delete(ctx context.Context, kind Kind, keys []string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
