package ingest_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/graph/memory"
	"github.com/loomery/weft/pkg/ingest"
	"github.com/loomery/weft/pkg/sequence"
	testutils "github.com/loomery/weft/pkg/utils/test"
	"github.com/loomery/weft/pkg/vector"
)

// stubSubmitter records submitted batches and can simulate a full queue.
type stubSubmitter struct {
	batches []ingest.Batch
	full    bool
}

func (s *stubSubmitter) Submit(batch ingest.Batch) bool {
	if s.full {
		return false
	}
	s.batches = append(s.batches, batch)
	return true
}

var _ = Describe("Service", func() {
	var (
		ctx      context.Context
		store    *memory.Driver
		vectors  *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		pool     *stubSubmitter
		service  *ingest.Service
		base     time.Time
	)

	session := func(id string) graph.Session {
		return graph.Session{
			ExternalID: id, UserID: "u1", NodeID: "n1",
			StartTime: base, EndTime: base.Add(time.Hour),
			Workflow: graph.Workflow{Primary: "coding", Secondary: "debugging", Confidence: 0.9},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewDriver()
		vectors = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		pool = &stubSubmitter{}
		sequencer := sequence.NewSequencer(store, zap.NewNop())
		service = ingest.NewService(store, vectors, embedder, sequencer, pool, zap.NewNop())
		base = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	})

	Describe("UpsertUser", func() {
		It("requires an id", func() {
			Expect(graph.IsValidation(service.UpsertUser(ctx, graph.User{}))).To(BeTrue())
		})

		It("persists the user", func() {
			Expect(service.UpsertUser(ctx, graph.User{ID: "u1"})).To(Succeed())
		})
	})

	Describe("UpsertNode", func() {
		It("requires id and user id", func() {
			Expect(graph.IsValidation(service.UpsertNode(ctx, graph.TimelineNode{UserID: "u1"}))).To(BeTrue())
			Expect(graph.IsValidation(service.UpsertNode(ctx, graph.TimelineNode{ID: "n1"}))).To(BeTrue())
		})
	})

	Describe("UpsertSession", func() {
		It("validates required fields", func() {
			s := session("s1")
			s.StartTime = time.Time{}
			_, err := service.UpsertSession(ctx, s)
			Expect(graph.IsValidation(err)).To(BeTrue())

			s = session("s1")
			s.EndTime = s.StartTime.Add(-time.Minute)
			_, err = service.UpsertSession(ctx, s)
			Expect(graph.IsValidation(err)).To(BeTrue())
		})

		It("sequences and mirrors only on first creation", func() {
			created, err := service.UpsertSession(ctx, session("s1"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			Expect(vectors.Records()).To(HaveLen(1))
			Expect(vectors.Records()[0].Kind).To(Equal(vector.KindSession))
			Expect(vectors.Records()[0].Key).To(Equal("s1"))

			created, err = service.UpsertSession(ctx, session("s1"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(vectors.Records()).To(HaveLen(1))
		})

		It("links new sessions into the chain", func() {
			_, err := service.UpsertSession(ctx, session("s1"))
			Expect(err).NotTo(HaveOccurred())

			later := session("s2")
			later.StartTime = base.Add(2 * time.Hour)
			later.EndTime = base.Add(3 * time.Hour)
			_, err = service.UpsertSession(ctx, later)
			Expect(err).NotTo(HaveOccurred())

			Expect(store.FollowsEdges()).To(Equal(map[string]string{"s1": "s2"}))
		})

		It("treats a failed mirror as non-fatal", func() {
			vectors.FailUpsert = true
			created, err := service.UpsertSession(ctx, session("s1"))
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
		})
	})

	Describe("UpsertActivity", func() {
		It("validates required fields", func() {
			_, err := service.UpsertActivity(ctx, graph.Activity{SessionID: "s1", Timestamp: base})
			Expect(graph.IsValidation(err)).To(BeTrue())
			_, err = service.UpsertActivity(ctx, graph.Activity{ID: "a1", Timestamp: base})
			Expect(graph.IsValidation(err)).To(BeTrue())
			_, err = service.UpsertActivity(ctx, graph.Activity{ID: "a1", SessionID: "s1"})
			Expect(graph.IsValidation(err)).To(BeTrue())
		})

		It("persists activities under their session", func() {
			_, err := service.UpsertSession(ctx, session("s1"))
			Expect(err).NotTo(HaveOccurred())

			created, err := service.UpsertActivity(ctx, graph.Activity{ID: "a1", SessionID: "s1", Timestamp: base})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
		})
	})

	Describe("SubmitExtractions", func() {
		batch := func(kinds ...string) ingest.Batch {
			items := make([]ingest.ExtractedItem, 0, len(kinds))
			for _, k := range kinds {
				items = append(items, ingest.ExtractedItem{Kind: k, Name: "x", Type: "t", Category: "c", Confidence: 0.9})
			}
			return ingest.Batch{ActivityID: "a1", Items: items}
		}

		It("requires an activity id", func() {
			err := service.SubmitExtractions(ctx, ingest.Batch{})
			Expect(graph.IsValidation(err)).To(BeTrue())
		})

		It("rejects unknown item kinds", func() {
			err := service.SubmitExtractions(ctx, batch("entity", "widget"))
			Expect(graph.IsValidation(err)).To(BeTrue())
			Expect(pool.batches).To(BeEmpty())
		})

		It("enqueues valid batches", func() {
			Expect(service.SubmitExtractions(ctx, batch("entity", "concept"))).To(Succeed())
			Expect(pool.batches).To(HaveLen(1))
		})

		It("errors when the queue is saturated", func() {
			pool.full = true
			err := service.SubmitExtractions(ctx, batch("entity"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("queue full"))
		})
	})

	Describe("SplitItems", func() {
		It("partitions tagged items into resolver inputs", func() {
			entities, concepts := ingest.SplitItems([]ingest.ExtractedItem{
				{Kind: ingest.KindEntity, Name: "docker", Type: "tool", Confidence: 0.9, Context: "compose"},
				{Kind: ingest.KindConcept, Name: "tdd", Category: "practice", Confidence: 0.8, Relevance: 0.7},
			})
			Expect(entities).To(HaveLen(1))
			Expect(entities[0].Context).To(Equal("compose"))
			Expect(concepts).To(HaveLen(1))
			Expect(concepts[0].Relevance).To(Equal(0.7))
		})
	})
})
