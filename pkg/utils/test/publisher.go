package testutils

import (
	"context"
	"sync"

	"github.com/loomery/weft/pkg/eventstream"
)

// MockPublisher is a test publisher that records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []eventstream.ActivityPersistedEvent

	// FailPublish causes PublishActivityPersisted to return ErrPublish.
	FailPublish bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishActivityPersisted(_ context.Context, event eventstream.ActivityPersistedEvent) error {
	if m.FailPublish {
		return eventstream.ErrPublish
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []eventstream.ActivityPersistedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]eventstream.ActivityPersistedEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
