// Package worker provides an asynchronous worker pool for resolving
// extraction batches using the provided resolve.Engine and publishing
// persisted-activity events.
//
// The pool decouples resolution from the ingestion HTTP hot path so that
// submitting an extraction batch returns as soon as the batch is queued.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/eventstream"
	"github.com/loomery/weft/pkg/ingest"
	"github.com/loomery/weft/pkg/resolve"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Config is the configuration options for the worker pool.
type Config struct {
	// Resolver dedups extracted entities and concepts into the graph.
	Resolver *resolve.Engine

	// Publisher emits persisted-activity events after each batch.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes extraction batches asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan ingest.Batch
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan ingest.Batch, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Submit queues a batch for processing by the worker pool.
// Returns true if queued, false if the queue is full and the batch dropped.
func (p *Pool) Submit(batch ingest.Batch) bool {
	select {
	case p.queue <- batch:
		p.logger.Debug("extraction batch queued",
			zap.String("activity_id", batch.ActivityID),
			zap.Int("items", len(batch.Items)),
		)
		return true
	default:
		p.logger.Error("batch not queued, queue full, batch dropped",
			zap.String("activity_id", batch.ActivityID),
			zap.Int("items", len(batch.Items)),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight batches to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls batches off the queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for batch := range p.queue {
		p.processBatch(batch)
	}

	p.logger.Debug("extraction worker stopped", zap.Uint("worker_id", id))
}

// processBatch resolves one batch and publishes the persisted event.
// Per-tuple failures inside the resolver are already non-fatal; a store
// failure logs and abandons the batch without retry (the caller can
// resubmit, resolution is idempotent).
func (p *Pool) processBatch(batch ingest.Batch) {
	ctx := context.Background()

	extractedEntities, extractedConcepts := ingest.SplitItems(batch.Items)

	entities, err := p.config.Resolver.ResolveEntities(ctx, batch.ActivityID, extractedEntities)
	if err != nil {
		p.logger.Error("async entity resolution failed",
			zap.String("activity_id", batch.ActivityID),
			zap.Error(err),
		)
		return
	}

	concepts, err := p.config.Resolver.ResolveConcepts(ctx, batch.ActivityID, extractedConcepts)
	if err != nil {
		p.logger.Error("async concept resolution failed",
			zap.String("activity_id", batch.ActivityID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("extraction batch resolved",
		zap.String("activity_id", batch.ActivityID),
		zap.Int("entities", len(entities)),
		zap.Int("concepts", len(concepts)),
	)

	event := eventstream.NewActivityPersistedEvent(
		batch.ActivityID, batch.SessionID, batch.UserID, len(entities), len(concepts),
	)
	if err := p.config.Publisher.PublishActivityPersisted(ctx, event); err != nil {
		p.logger.Warn("persisted event publish failed",
			zap.String("activity_id", batch.ActivityID),
			zap.Error(err),
		)
	}
}

var _ ingest.Submitter = (*Pool)(nil)
