// Package nop provides a no-op eventstream publisher for deployments
// without a broker.
package nop

import (
	"context"

	"github.com/loomery/weft/pkg/eventstream"
)

// Publisher discards every event.
type Publisher struct{}

// NewPublisher creates a no-op publisher.
func NewPublisher() *Publisher { return &Publisher{} }

// PublishActivityPersisted discards the event.
func (p *Publisher) PublishActivityPersisted(_ context.Context, _ eventstream.ActivityPersistedEvent) error {
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error { return nil }

var _ eventstream.Publisher = (*Publisher)(nil)
