// Package qdrant implements vector.Driver against a Qdrant server over gRPC.
// All kinds share one collection; a payload field partitions them so KNN
// queries can filter per kind server-side.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/vector"
)

const (
	payloadKey      = "key"
	payloadKind     = "kind"
	payloadFreq     = "frequency"
	payloadLastSeen = "last_seen_at"
)

// Config holds connection settings for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host.
	Host string

	// Port is the Qdrant gRPC port (6334 by default on a stock install).
	Port int

	// Collection is the collection name holding all records.
	Collection string

	// Dimensions is the embedding dimensionality for collection creation.
	Dimensions uint64
}

// Driver is a Qdrant-backed vector store.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *zap.Logger
}

// NewDriver connects to Qdrant and ensures the collection exists.
func NewDriver(ctx context.Context, cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if cfg.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: cfg.Host, Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}
	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     cfg.Dimensions,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: creating collection: %v", vector.ErrConnection, err)
		}
	}

	logger.Info("qdrant vector driver initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
	)

	return &Driver{client: client, collection: cfg.Collection, logger: logger}, nil
}

// pointID derives a stable point id from (kind, key) so upserts replace.
func pointID(kind vector.Kind, key string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(kind)+"|"+key)).String())
}

// Upsert stores records, replacing existing (kind, key) pairs.
func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(rec.Kind, rec.Key),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadKey:      rec.Key,
				payloadKind:     string(rec.Kind),
				payloadFreq:     rec.Frequency,
				payloadLastSeen: rec.LastSeenAt.UnixMilli(),
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: upserting points: %v", vector.ErrConnection, err)
	}
	return nil
}

// Query runs a kind-filtered KNN search. Qdrant's cosine scores are already
// normalized similarity, clamped here into [0, 1].
func (d *Driver) Query(ctx context.Context, embedding []float32, kind vector.Kind, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	hits, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadKind, string(kind))},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: knn query: %v", vector.ErrConnection, err)
	}

	results := make([]vector.QueryResult, 0, len(hits))
	for _, hit := range hits {
		rec := recordFromPayload(hit.Payload, kind)
		score := hit.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		results = append(results, vector.QueryResult{Record: rec, Score: score})
	}
	return results, nil
}

// Get retrieves records of a kind by key.
func (d *Driver) Get(ctx context.Context, kind vector.Kind, keys []string) ([]vector.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ids := make([]*qdrant.PointId, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, pointID(kind, k))
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching points: %v", vector.ErrConnection, err)
	}

	out := make([]vector.Record, 0, len(points))
	for _, p := range points {
		rec := recordFromPayload(p.Payload, kind)
		if vecs := p.Vectors.GetVector(); vecs != nil {
			rec.Embedding = vecs.Data
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes records of a kind by key.
func (d *Driver) Delete(ctx context.Context, kind vector.Kind, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, pointID(kind, k))
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Points:         qdrant.NewPointsSelector(ids...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting points: %v", vector.ErrConnection, err)
	}
	return nil
}

// Ping checks server health.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func recordFromPayload(payload map[string]*qdrant.Value, kind vector.Kind) vector.Record {
	rec := vector.Record{Kind: kind}
	if v, ok := payload[payloadKey]; ok {
		rec.Key = v.GetStringValue()
	}
	if v, ok := payload[payloadFreq]; ok {
		rec.Frequency = v.GetIntegerValue()
	}
	if v, ok := payload[payloadLastSeen]; ok {
		rec.LastSeenAt = time.UnixMilli(v.GetIntegerValue()).UTC()
	}
	return rec
}

var _ vector.Driver = (*Driver)(nil)
