package eventstream

import "context"

// Publisher delivers persisted-activity events to the configured transport.
// Publication is best-effort from the caller's point of view: a failed
// publish never unwinds the graph write that preceded it.
type Publisher interface {
	// PublishActivityPersisted emits one event.
	PublishActivityPersisted(ctx context.Context, event ActivityPersistedEvent) error

	// Close flushes and releases the transport.
	Close() error
}
