package worker_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/graph/memory"
	"github.com/loomery/weft/pkg/ingest"
	"github.com/loomery/weft/pkg/ingest/worker"
	"github.com/loomery/weft/pkg/resolve"
	testutils "github.com/loomery/weft/pkg/utils/test"
)

var _ = Describe("Pool", func() {
	var (
		ctx       context.Context
		store     *memory.Driver
		vectors   *testutils.MockVectorDriver
		publisher *testutils.MockPublisher
		pool      *worker.Pool
		base      time.Time
	)

	newPool := func(workers, queueSize uint) *worker.Pool {
		engine := resolve.NewEngine(store, vectors, testutils.NewMockEmbedder(), 0.5, zap.NewNop())
		p, err := worker.NewPool(&worker.Config{
			Resolver:   engine,
			Publisher:  publisher,
			NumWorkers: workers,
			QueueSize:  queueSize,
			Logger:     zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewDriver()
		vectors = testutils.NewMockVectorDriver()
		publisher = testutils.NewMockPublisher()
		base = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

		_, err := store.UpsertSession(ctx, graph.Session{
			ExternalID: "s1", UserID: "u1", NodeID: "n1",
			StartTime: base, EndTime: base.Add(time.Hour),
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.UpsertActivity(ctx, graph.Activity{ID: "a1", SessionID: "s1", Timestamp: base})
		Expect(err).NotTo(HaveOccurred())
	})

	It("resolves queued batches and publishes the persisted event", func() {
		pool = newPool(1, 8)

		ok := pool.Submit(ingest.Batch{
			ActivityID: "a1",
			SessionID:  "s1",
			UserID:     "u1",
			Items: []ingest.ExtractedItem{
				{Kind: ingest.KindEntity, Name: "Docker", Type: "tool", Confidence: 0.9},
				{Kind: ingest.KindConcept, Name: "TDD", Category: "practice", Confidence: 0.8},
			},
		})
		Expect(ok).To(BeTrue())
		pool.Close()

		entity, err := store.CreateEntityRelationship(ctx, "a1", graph.Entity{Name: "docker", Type: "tool"}, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(entity.Frequency).To(Equal(int64(1)))

		events := publisher.Events()
		Expect(events).To(HaveLen(1))
		Expect(events[0].ActivityID).To(Equal("a1"))
		Expect(events[0].SessionID).To(Equal("s1"))
		Expect(events[0].UserID).To(Equal("u1"))
		Expect(events[0].EventID).NotTo(BeEmpty())
	})

	It("abandons a batch whose activity does not exist", func() {
		pool = newPool(1, 8)

		ok := pool.Submit(ingest.Batch{
			ActivityID: "ghost",
			Items: []ingest.ExtractedItem{
				{Kind: ingest.KindEntity, Name: "docker", Type: "tool", Confidence: 0.9},
			},
		})
		Expect(ok).To(BeTrue())
		pool.Close()

		Expect(publisher.Events()).To(BeEmpty())
	})

	It("still resolves when publishing fails", func() {
		publisher.FailPublish = true
		pool = newPool(1, 8)

		ok := pool.Submit(ingest.Batch{
			ActivityID: "a1",
			Items: []ingest.ExtractedItem{
				{Kind: ingest.KindEntity, Name: "docker", Type: "tool", Confidence: 0.9},
			},
		})
		Expect(ok).To(BeTrue())
		pool.Close()

		entity, err := store.CreateEntityRelationship(ctx, "a1", graph.Entity{Name: "docker", Type: "tool"}, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(entity.Frequency).To(Equal(int64(1)))
	})

	It("drains in-flight batches on Close", func() {
		pool = newPool(2, 32)

		for i := 0; i < 10; i++ {
			ok := pool.Submit(ingest.Batch{
				ActivityID: "a1",
				SessionID:  "s1",
				UserID:     "u1",
				Items: []ingest.ExtractedItem{
					{Kind: ingest.KindConcept, Name: "tdd", Category: "practice", Confidence: 0.9},
				},
			})
			Expect(ok).To(BeTrue())
		}
		pool.Close()

		Expect(publisher.Events()).To(HaveLen(10))
	})
})
