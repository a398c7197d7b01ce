package neo4j

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomery/weft/pkg/graph"
)

var _ = Describe("assembleChain", func() {
	var base, from, to time.Time

	session := func(id string, start time.Time) graph.Session {
		return graph.Session{ExternalID: id, UserID: "u1", NodeID: "n1", StartTime: start}
	}

	ids := func(chain []graph.Session) []string {
		out := make([]string, 0, len(chain))
		for _, s := range chain {
			out = append(out, s.ExternalID)
		}
		return out
	}

	BeforeEach(func() {
		base = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
		from = base.Add(-time.Hour)
		to = base.Add(24 * time.Hour)
	})

	It("prepends the head exactly once", func() {
		head := session("s1", base)
		tail := []graph.Session{session("s2", base.Add(time.Hour)), session("s3", base.Add(2 * time.Hour))}

		Expect(ids(assembleChain(head, tail, from, to))).To(Equal([]string{"s1", "s2", "s3"}))
	})

	It("drops a tail row that echoes the head", func() {
		head := session("s1", base)
		tail := []graph.Session{session("s1", base), session("s2", base.Add(time.Hour))}

		Expect(ids(assembleChain(head, tail, from, to))).To(Equal([]string{"s1", "s2"}))
	})

	It("keeps a head-only chain", func() {
		Expect(ids(assembleChain(session("s1", base), nil, from, to))).To(Equal([]string{"s1"}))
	})

	It("restricts the chain to the time range", func() {
		head := session("s1", base.Add(-2*time.Hour))
		tail := []graph.Session{session("s2", base), session("s3", to)}

		Expect(ids(assembleChain(head, tail, from, to))).To(Equal([]string{"s2"}))
	})
})
