package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/graph/memory"
	"github.com/loomery/weft/pkg/ingest"
	"github.com/loomery/weft/pkg/patterns"
	"github.com/loomery/weft/pkg/retrieval"
	"github.com/loomery/weft/pkg/sequence"
	testutils "github.com/loomery/weft/pkg/utils/test"
)

// recordingSubmitter captures batches instead of running the worker pool.
type recordingSubmitter struct {
	batches []ingest.Batch
	full    bool
}

func (r *recordingSubmitter) Submit(batch ingest.Batch) bool {
	if r.full {
		return false
	}
	r.batches = append(r.batches, batch)
	return true
}

var _ = Describe("Server", func() {
	var (
		server  *Server
		store   *memory.Driver
		vectors *testutils.MockVectorDriver
		pool    *recordingSubmitter
		base    time.Time
	)

	doJSON := func(method, path string, body any) *http.Response {
		var reader io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}

	sessionBody := func(id string) graph.Session {
		return graph.Session{
			ExternalID: id, UserID: "u1", NodeID: "n1",
			StartTime: base, EndTime: base.Add(time.Hour),
			Workflow: graph.Workflow{Primary: "coding", Confidence: 0.9},
		}
	}

	BeforeEach(func() {
		store = memory.NewDriver()
		vectors = testutils.NewMockVectorDriver()
		embedder := testutils.NewMockEmbedder()
		pool = &recordingSubmitter{}
		logger := zap.NewNop()

		sequencer := sequence.NewSequencer(store, logger)
		ingestor := ingest.NewService(store, vectors, embedder, sequencer, pool, logger)
		miner := patterns.NewMiner(store, logger)
		retriever := retrieval.NewOrchestrator(store, vectors, embedder, miner, logger)

		server = NewServer(Config{
			ListenAddr:        ":0",
			RetrievalDefaults: retrieval.DefaultOptions(),
		}, ingestor, retriever, miner, logger)

		base = time.Now().UTC().Add(-time.Hour)
	})

	Describe("GET /ping", func() {
		It("responds pong", func() {
			resp := doJSON(http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /v1/users", func() {
		It("accepts a valid user", func() {
			resp := doJSON(http.MethodPost, "/v1/users", graph.User{ID: "u1"})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})

		It("rejects a user without an id", func() {
			resp := doJSON(http.MethodPost, "/v1/users", graph.User{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /v1/sessions", func() {
		It("returns 201 on creation and 200 on repeats", func() {
			resp := doJSON(http.MethodPost, "/v1/sessions", sessionBody("s1"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var body UpsertResponse
			decode(resp, &body)
			Expect(body.Created).To(BeTrue())

			resp = doJSON(http.MethodPost, "/v1/sessions", sessionBody("s1"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp, &body)
			Expect(body.Created).To(BeFalse())
		})

		It("rejects a session whose end precedes its start", func() {
			s := sessionBody("s1")
			s.EndTime = s.StartTime.Add(-time.Minute)
			resp := doJSON(http.MethodPost, "/v1/sessions", s)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /v1/activities", func() {
		It("persists activities under an existing session", func() {
			doJSON(http.MethodPost, "/v1/sessions", sessionBody("s1"))

			resp := doJSON(http.MethodPost, "/v1/activities", graph.Activity{
				ID: "a1", SessionID: "s1", Timestamp: base, Summary: "work",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})
	})

	Describe("POST /v1/activities/:id/entities", func() {
		It("queues the batch with the kind stamped", func() {
			resp := doJSON(http.MethodPost, "/v1/activities/a1/entities", ExtractionRequest{
				SessionID: "s1",
				UserID:    "u1",
				Items: []ingest.ExtractedItem{
					{Name: "docker", Type: "tool", Confidence: 0.9},
					{Name: "neovim", Type: "tool", Confidence: 0.8},
				},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			var body map[string]int
			decode(resp, &body)
			Expect(body["queued"]).To(Equal(2))

			Expect(pool.batches).To(HaveLen(1))
			Expect(pool.batches[0].ActivityID).To(Equal("a1"))
			Expect(pool.batches[0].SessionID).To(Equal("s1"))
			for _, item := range pool.batches[0].Items {
				Expect(item.Kind).To(Equal(ingest.KindEntity))
			}
		})

		It("reports a saturated queue as a server error", func() {
			pool.full = true
			resp := doJSON(http.MethodPost, "/v1/activities/a1/entities", ExtractionRequest{
				Items: []ingest.ExtractedItem{{Name: "docker", Type: "tool", Confidence: 0.9}},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("POST /v1/activities/:id/concepts", func() {
		It("stamps the concept kind", func() {
			resp := doJSON(http.MethodPost, "/v1/activities/a1/concepts", ExtractionRequest{
				Items: []ingest.ExtractedItem{{Name: "tdd", Category: "practice", Confidence: 0.9}},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			Expect(pool.batches[0].Items[0].Kind).To(Equal(ingest.KindConcept))
		})
	})

	Describe("GET /v1/context/:userID/:nodeID", func() {
		It("returns the fused bundle", func() {
			doJSON(http.MethodPost, "/v1/sessions", sessionBody("s1"))
			doJSON(http.MethodPost, "/v1/activities", graph.Activity{
				ID: "a1", SessionID: "s1", Timestamp: base, Summary: "container work",
			})

			resp := doJSON(http.MethodGet, "/v1/context/u1/n1", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var bundle retrieval.ContextBundle
			decode(resp, &bundle)
			Expect(bundle.RelatedSessions).To(HaveLen(1))
			Expect(bundle.Metadata.Degraded).To(BeFalse())
		})

		It("rejects invalid tuning parameters", func() {
			for _, q := range []string{"lookback_days=-1", "max_depth=0", "min_frequency=0", "top_k=zero"} {
				resp := doJSON(http.MethodGet, "/v1/context/u1/n1?"+q, nil)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest), q)
			}
		})

		It("honors a zero lookback window", func() {
			doJSON(http.MethodPost, "/v1/sessions", sessionBody("s1"))

			resp := doJSON(http.MethodGet, "/v1/context/u1/n1?lookback_days=0", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var bundle retrieval.ContextBundle
			decode(resp, &bundle)
			Expect(bundle.RelatedSessions).To(BeEmpty())
		})
	})

	Describe("GET /v1/search/entities", func() {
		It("rejects a missing query", func() {
			resp := doJSON(http.MethodGet, "/v1/search/entities", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns similarity hits", func() {
			resp := doJSON(http.MethodGet, "/v1/search/entities?q=containers&top_k=5", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("GET /v1/patterns/:userID", func() {
		It("rejects malformed time bounds", func() {
			resp := doJSON(http.MethodGet, "/v1/patterns/u1?from=yesterday", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns mined patterns", func() {
			doJSON(http.MethodPost, "/v1/sessions", sessionBody("s1"))
			for i, tag := range []string{"coding", "debugging"} {
				doJSON(http.MethodPost, "/v1/activities", graph.Activity{
					ID: fmt.Sprintf("a%d", i), SessionID: "s1",
					Timestamp: base.Add(time.Duration(i) * time.Minute), WorkflowTag: tag,
				})
			}

			resp := doJSON(http.MethodGet, "/v1/patterns/u1", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Patterns []patterns.Pattern `json:"patterns"`
			}
			decode(resp, &body)
			Expect(body.Patterns).To(HaveLen(1))
			Expect(body.Patterns[0].Transition).To(Equal("coding→debugging"))
		})
	})

	Describe("GET /v1/health", func() {
		It("reports ok when both stores respond", func() {
			resp := doJSON(http.MethodGet, "/v1/health", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("returns 503 when a store is down", func() {
			vectors.FailPing = true
			resp := doJSON(http.MethodGet, "/v1/health", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})
})
