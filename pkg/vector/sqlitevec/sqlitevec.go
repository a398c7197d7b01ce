// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec.
// Records live in a vec0 virtual table for KNN plus a payload table mapping
// string keys to rowids and carrying the mirrored counters.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/vector"
)

// overfetch multiplies topK on the raw KNN query so that kind filtering
// still leaves enough candidates.
const overfetch = 4

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so a mapping table carries the
	// string keys and the mirrored counters.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			frequency INTEGER NOT NULL DEFAULT 0,
			last_seen_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE (kind, key)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{db: db, dimensions: c.Dimensions, logger: logger}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB format
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// Upsert stores records, replacing existing (kind, key) pairs.
func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrConnection, err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if uint(len(rec.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(rec.Embedding), d.dimensions)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO vec_records (kind, key, frequency, last_seen_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (kind, key) DO UPDATE SET
				frequency = excluded.frequency,
				last_seen_at = excluded.last_seen_at
		`, string(rec.Kind), rec.Key, rec.Frequency, rec.LastSeenAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("upserting record %s: %w", rec.Key, err)
		}

		// ON CONFLICT updates don't report the rowid; look it up.
		var rowid int64
		if err := tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_records WHERE kind = ? AND key = ?`,
			string(rec.Kind), rec.Key,
		).Scan(&rowid); err != nil {
			return fmt.Errorf("resolving rowid for %s: %w", rec.Key, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("clearing embedding for %s: %w", rec.Key, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings (rowid, embedding) VALUES (?, ?)`,
			rowid, serializeFloat32(rec.Embedding),
		); err != nil {
			return fmt.Errorf("storing embedding for %s: %w", rec.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", vector.ErrConnection, err)
	}
	return nil
}

// Query runs a KNN search and filters hits down to the requested kind.
// Cosine distance in [0, 2] maps onto a [0, 1] similarity score.
func (d *Driver) Query(ctx context.Context, embedding []float32, kind vector.Kind, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", vector.ErrDimensionMismatch, len(embedding), d.dimensions)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT r.kind, r.key, r.frequency, r.last_seen_at, e.distance
		FROM vec_embeddings e
		JOIN vec_records r ON r.rowid = e.rowid
		WHERE e.embedding MATCH ? AND e.k = ?
		ORDER BY e.distance
	`, serializeFloat32(embedding), topK*overfetch)
	if err != nil {
		return nil, fmt.Errorf("%w: knn query: %v", vector.ErrConnection, err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var (
			rkind    string
			key      string
			freq     int64
			lastSeen int64
			distance float64
		)
		if err := rows.Scan(&rkind, &key, &freq, &lastSeen, &distance); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if vector.Kind(rkind) != kind {
			continue
		}

		score := float32(1 - distance/2)
		if score < 0 {
			score = 0
		}
		results = append(results, vector.QueryResult{
			Record: vector.Record{
				Key:        key,
				Kind:       kind,
				Frequency:  freq,
				LastSeenAt: time.UnixMilli(lastSeen).UTC(),
			},
			Score: score,
		})
		if len(results) == topK {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating results: %v", vector.ErrConnection, err)
	}
	return results, nil
}

// Get retrieves records of a kind by key, embeddings included.
func (d *Driver) Get(ctx context.Context, kind vector.Kind, keys []string) ([]vector.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(keys)+1)
	args = append(args, string(kind))
	for _, k := range keys {
		args = append(args, k)
	}

	query := fmt.Sprintf(`
		SELECT r.key, r.frequency, r.last_seen_at, e.embedding
		FROM vec_records r
		JOIN vec_embeddings e ON e.rowid = r.rowid
		WHERE r.kind = ? AND r.key IN (%s)
	`, placeholders)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: get query: %v", vector.ErrConnection, err)
	}
	defer rows.Close()

	var out []vector.Record
	for rows.Next() {
		var (
			key      string
			freq     int64
			lastSeen int64
			blob     []byte
		)
		if err := rows.Scan(&key, &freq, &lastSeen, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, vector.Record{
			Key:        key,
			Kind:       kind,
			Embedding:  deserializeFloat32(blob),
			Frequency:  freq,
			LastSeenAt: time.UnixMilli(lastSeen).UTC(),
		})
	}
	return out, rows.Err()
}

// Delete removes records of a kind by key.
func (d *Driver) Delete(ctx context.Context, kind vector.Kind, keys []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", vector.ErrConnection, err)
	}
	defer tx.Rollback()

	for _, k := range keys {
		var rowid int64
		err := tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_records WHERE kind = ? AND key = ?`, string(kind), k,
		).Scan(&rowid)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("resolving rowid for %s: %w", k, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_embeddings WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("deleting embedding for %s: %w", k, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_records WHERE rowid = ?`, rowid); err != nil {
			return fmt.Errorf("deleting record for %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// Ping verifies the database handle is usable.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

var _ vector.Driver = (*Driver)(nil)
