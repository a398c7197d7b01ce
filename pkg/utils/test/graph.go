package testutils

import (
	"context"
	"errors"
	"time"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/graph/memory"
)

// MockGraphDriver wraps the in-memory graph driver with failure toggles so
// suites can knock out individual read operations.
type MockGraphDriver struct {
	*memory.Driver

	// FailTraversal causes NeighborsWithinDepth to return ConnectionError.
	FailTraversal bool

	// FailChains causes SessionChainsForUser to return ConnectionError.
	FailChains bool

	// FailPing causes Ping to return ConnectionError.
	FailPing bool
}

var errMock = errors.New("mock graph failure")

func NewMockGraphDriver() *MockGraphDriver {
	return &MockGraphDriver{Driver: memory.NewDriver()}
}

func (m *MockGraphDriver) NeighborsWithinDepth(ctx context.Context, seedSessionIDs []string, maxDepth int, since time.Time) (*graph.Traversal, error) {
	if m.FailTraversal {
		return nil, &graph.ConnectionError{Store: "mock", Err: errMock}
	}
	return m.Driver.NeighborsWithinDepth(ctx, seedSessionIDs, maxDepth, since)
}

func (m *MockGraphDriver) SessionChainsForUser(ctx context.Context, userID string, from, to time.Time) ([][]graph.Session, error) {
	if m.FailChains {
		return nil, &graph.ConnectionError{Store: "mock", Err: errMock}
	}
	return m.Driver.SessionChainsForUser(ctx, userID, from, to)
}

func (m *MockGraphDriver) Ping(ctx context.Context) error {
	if m.FailPing {
		return &graph.ConnectionError{Store: "mock", Err: errMock}
	}
	return m.Driver.Ping(ctx)
}

var _ graph.Driver = (*MockGraphDriver)(nil)
