package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomery/weft/pkg/vector"
)

// MockVectorDriver is a test vector driver that records upserts and returns
// configurable query results.
type MockVectorDriver struct {
	// Results is returned by Query for any embedding.
	Results []vector.QueryResult

	// FailUpsert causes Upsert to return ErrConnection.
	FailUpsert bool

	// FailQuery causes Query to return ErrConnection.
	FailQuery bool

	// FailPing causes Ping to return ErrConnection.
	FailPing bool

	// QueryDelay blocks Query until the context is done when set, to
	// simulate a slow store blowing a path budget.
	QueryDelay bool

	mu      sync.Mutex
	records []vector.Record
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Upsert(_ context.Context, records []vector.Record) error {
	if m.FailUpsert {
		return fmt.Errorf("%w: mock upsert failure", vector.ErrConnection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *MockVectorDriver) Query(ctx context.Context, _ []float32, kind vector.Kind, topK int) ([]vector.QueryResult, error) {
	if m.QueryDelay {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.FailQuery {
		return nil, fmt.Errorf("%w: mock query failure", vector.ErrConnection)
	}

	var out []vector.QueryResult
	for _, r := range m.Results {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *MockVectorDriver) Get(_ context.Context, kind vector.Kind, keys []string) ([]vector.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []vector.Record
	for _, k := range keys {
		for _, r := range m.records {
			if r.Kind == kind && r.Key == k {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, kind vector.Kind, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, r := range m.records {
		drop := false
		if r.Kind == kind {
			for _, k := range keys {
				if r.Key == k {
					drop = true
					break
				}
			}
		}
		if !drop {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *MockVectorDriver) Ping(_ context.Context) error {
	if m.FailPing {
		return fmt.Errorf("%w: mock ping failure", vector.ErrConnection)
	}
	return nil
}

// Records returns a copy of every record passed to Upsert.
func (m *MockVectorDriver) Records() []vector.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vector.Record(nil), m.records...)
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.Driver = (*MockVectorDriver)(nil)
