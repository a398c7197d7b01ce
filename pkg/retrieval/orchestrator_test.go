package retrieval_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/patterns"
	"github.com/loomery/weft/pkg/retrieval"
	testutils "github.com/loomery/weft/pkg/utils/test"
	"github.com/loomery/weft/pkg/vector"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx          context.Context
		store        *testutils.MockGraphDriver
		vectors      *testutils.MockVectorDriver
		embedder     *testutils.MockEmbedder
		orchestrator *retrieval.Orchestrator
		recent       time.Time
	)

	entityHit := func(key string, score float32) vector.QueryResult {
		return vector.QueryResult{
			Record: vector.Record{Key: key, Kind: vector.KindEntity, Frequency: 1, LastSeenAt: recent},
			Score:  score,
		}
	}

	sessionHit := func(key string, score float32) vector.QueryResult {
		return vector.QueryResult{
			Record: vector.Record{Key: key, Kind: vector.KindSession, Frequency: 1, LastSeenAt: recent},
			Score:  score,
		}
	}

	seedGraph := func() {
		_, err := store.UpsertSession(ctx, graph.Session{
			ExternalID: "s1", UserID: "u1", NodeID: "n1",
			StartTime: recent, EndTime: recent.Add(time.Hour),
			Workflow: graph.Workflow{Primary: "coding", Confidence: 0.9},
		})
		Expect(err).NotTo(HaveOccurred())

		for i, id := range []string{"a1", "a2"} {
			_, err := store.UpsertActivity(ctx, graph.Activity{
				ID: id, SessionID: "s1",
				Timestamp: recent.Add(time.Duration(i) * time.Minute),
				Summary:   "working on containers",
			})
			Expect(err).NotTo(HaveOccurred())
		}
	}

	addEntity := func(name string, activityIDs ...string) {
		for _, actID := range activityIDs {
			_, err := store.CreateEntityRelationship(ctx, actID, graph.Entity{Name: name, Type: "tool"}, "")
			Expect(err).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockGraphDriver()
		vectors = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		miner := patterns.NewMiner(store, zap.NewNop())
		orchestrator = retrieval.NewOrchestrator(store, vectors, embedder, miner, zap.NewNop())
		recent = time.Now().UTC().Add(-time.Hour)
	})

	Describe("CrossSessionContext", func() {
		It("rejects empty identifiers", func() {
			_, err := orchestrator.CrossSessionContext(ctx, "", "n1", retrieval.DefaultOptions())
			Expect(graph.IsValidation(err)).To(BeTrue())
			_, err = orchestrator.CrossSessionContext(ctx, "u1", "", retrieval.DefaultOptions())
			Expect(graph.IsValidation(err)).To(BeTrue())
		})

		It("returns an empty bundle for an unknown node", func() {
			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Entities).To(BeEmpty())
			Expect(bundle.RelatedSessions).To(BeEmpty())
			Expect(bundle.Metadata.Degraded).To(BeFalse())
		})

		It("treats a zero lookback as an empty window", func() {
			seedGraph()

			opts := retrieval.DefaultOptions()
			opts.LookbackDays = 0

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.RelatedSessions).To(BeEmpty())
			Expect(bundle.Entities).To(BeEmpty())
			Expect(bundle.Metadata.Degraded).To(BeFalse())
		})

		It("ranks candidates found by both paths above graph-only peers", func() {
			seedGraph()
			addEntity("docker", "a1", "a2")
			addEntity("kubernetes", "a1", "a2")

			// Equal graph frequency, zero similarity contribution; only the
			// dual-path bonus separates them.
			vectors.Results = []vector.QueryResult{entityHit("docker|tool", 0)}

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Entities).To(HaveLen(2))
			Expect(bundle.Entities[0].Name).To(Equal("docker"))
			Expect(bundle.Entities[0].InGraph).To(BeTrue())
			Expect(bundle.Entities[0].InVector).To(BeTrue())
			Expect(bundle.Entities[0].Score).To(BeNumerically(">", bundle.Entities[1].Score))
			Expect(bundle.Entities[1].Name).To(Equal("kubernetes"))
			Expect(bundle.Entities[1].InVector).To(BeFalse())
		})

		It("keeps graph frequency authoritative for dual-path candidates", func() {
			seedGraph()
			addEntity("docker", "a1", "a2")
			vectors.Results = []vector.QueryResult{entityHit("docker|tool", 0.8)}

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Entities).To(HaveLen(1))
			Expect(bundle.Entities[0].Frequency).To(Equal(int64(2)))
			Expect(bundle.Entities[0].Similarity).To(Equal(float32(0.8)))
		})

		It("filters low-frequency graph candidates but not vector-only hits", func() {
			seedGraph()
			addEntity("docker", "a1")
			vectors.Results = []vector.QueryResult{entityHit("grpc|framework", 0.8)}

			opts := retrieval.DefaultOptions()
			opts.MinFrequency = 2

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Entities).To(HaveLen(1))
			Expect(bundle.Entities[0].Name).To(Equal("grpc"))
			Expect(bundle.Entities[0].InGraph).To(BeFalse())
		})

		It("truncates each category to topK", func() {
			seedGraph()
			for _, name := range []string{"docker", "kubernetes", "terraform", "helm"} {
				addEntity(name, "a1")
			}

			opts := retrieval.DefaultOptions()
			opts.TopK = 2

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Entities).To(HaveLen(2))
		})

		It("includes the node's sessions and mined patterns", func() {
			seedGraph()

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.RelatedSessions).To(HaveLen(1))
			Expect(bundle.RelatedSessions[0].ExternalID).To(Equal("s1"))
		})

		It("folds similar sessions from other nodes into the related set", func() {
			seedGraph()
			_, err := store.UpsertSession(ctx, graph.Session{
				ExternalID: "s9", UserID: "u1", NodeID: "n9",
				StartTime: recent.Add(-time.Hour), EndTime: recent,
				Workflow: graph.Workflow{Primary: "coding"},
			})
			Expect(err).NotTo(HaveOccurred())
			vectors.Results = []vector.QueryResult{sessionHit("s9", 0.9)}

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.RelatedSessions).To(HaveLen(2))
			Expect(bundle.RelatedSessions[0].ExternalID).To(Equal("s1"))
			Expect(bundle.RelatedSessions[1].ExternalID).To(Equal("s9"))
		})

		It("ranks a session found by both paths above a graph-only peer", func() {
			seedGraph()
			_, err := store.UpsertSession(ctx, graph.Session{
				ExternalID: "s2", UserID: "u1", NodeID: "n1",
				StartTime: recent, EndTime: recent.Add(time.Hour),
				Workflow: graph.Workflow{Primary: "coding"},
			})
			Expect(err).NotTo(HaveOccurred())

			// Equal recency, zero similarity contribution; only the
			// dual-path bonus separates them.
			vectors.Results = []vector.QueryResult{sessionHit("s2", 0)}

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.RelatedSessions).To(HaveLen(2))
			Expect(bundle.RelatedSessions[0].ExternalID).To(Equal("s2"))
		})

		It("drops similar sessions that started before the lookback window", func() {
			seedGraph()
			_, err := store.UpsertSession(ctx, graph.Session{
				ExternalID: "s9", UserID: "u1", NodeID: "n9",
				StartTime: recent.Add(-60 * 24 * time.Hour), EndTime: recent,
			})
			Expect(err).NotTo(HaveOccurred())
			vectors.Results = []vector.QueryResult{sessionHit("s9", 0.95)}

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.RelatedSessions).To(HaveLen(1))
			Expect(bundle.RelatedSessions[0].ExternalID).To(Equal("s1"))
		})

		It("degrades to graph results when the vector store fails", func() {
			seedGraph()
			addEntity("docker", "a1")
			vectors.FailQuery = true

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Metadata.Degraded).To(BeTrue())
			Expect(bundle.Metadata.DegradedPath).To(Equal("vector"))
			Expect(bundle.Entities).To(HaveLen(1))
			Expect(bundle.Entities[0].Name).To(Equal("docker"))
		})

		It("degrades when the vector store blows its budget", func() {
			seedGraph()
			addEntity("docker", "a1")
			vectors.QueryDelay = true

			opts := retrieval.DefaultOptions()
			opts.PathBudget = 30 * time.Millisecond

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Metadata.Degraded).To(BeTrue())
			Expect(bundle.Metadata.DegradedPath).To(Equal("vector"))
			Expect(bundle.Entities).To(HaveLen(1))
		})

		It("degrades to vector hits when the traversal fails", func() {
			seedGraph()
			store.FailTraversal = true
			vectors.Results = []vector.QueryResult{entityHit("docker|tool", 0.9)}

			bundle, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(bundle.Metadata.Degraded).To(BeTrue())
			Expect(bundle.Metadata.DegradedPath).To(Equal("graph"))
			Expect(bundle.Entities).To(HaveLen(1))
			Expect(bundle.Entities[0].InGraph).To(BeFalse())
			Expect(bundle.RelatedSessions).To(BeEmpty())
		})

		It("fails only when both paths fail", func() {
			seedGraph()
			store.FailTraversal = true
			vectors.FailQuery = true

			_, err := orchestrator.CrossSessionContext(ctx, "u1", "n1", retrieval.DefaultOptions())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("both retrieval paths failed"))
		})
	})

	Describe("SearchEntities", func() {
		It("rejects a blank query", func() {
			_, err := orchestrator.SearchEntities(ctx, "   ", 5)
			Expect(graph.IsValidation(err)).To(BeTrue())
		})

		It("returns similarity hits for the query", func() {
			vectors.Results = []vector.QueryResult{entityHit("docker|tool", 0.9)}

			hits, err := orchestrator.SearchEntities(ctx, "container tooling", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].Key).To(Equal("docker|tool"))
			Expect(embedder.Calls()).To(ContainElement("container tooling"))
		})
	})

	Describe("HealthCheck", func() {
		It("reports both stores ok when reachable", func() {
			health := orchestrator.HealthCheck(ctx)
			Expect(health.GraphStore).To(Equal("ok"))
			Expect(health.VectorStore).To(Equal("ok"))
		})

		It("reports a failing store", func() {
			vectors.FailPing = true
			health := orchestrator.HealthCheck(ctx)
			Expect(health.GraphStore).To(Equal("ok"))
			Expect(health.VectorStore).To(Equal("fail"))
		})
	})
})
