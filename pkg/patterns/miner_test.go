package patterns_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
	"github.com/loomery/weft/pkg/graph/memory"
	"github.com/loomery/weft/pkg/patterns"
)

var _ = Describe("Miner", func() {
	var (
		ctx   context.Context
		store *memory.Driver
		miner *patterns.Miner
		base  time.Time
		next  int
	)

	addSession := func(id string, start time.Time) {
		_, err := store.UpsertSession(ctx, graph.Session{
			ExternalID: id, UserID: "u1", NodeID: "n1",
			StartTime: start, EndTime: start.Add(time.Hour),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	addActivity := func(sessionID, tag string, at time.Time) {
		next++
		_, err := store.UpsertActivity(ctx, graph.Activity{
			ID:          fmt.Sprintf("a%d", next),
			SessionID:   sessionID,
			Timestamp:   at,
			WorkflowTag: tag,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.NewDriver()
		miner = patterns.NewMiner(store, zap.NewNop())
		base = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
		next = 0
	})

	rangeAll := func() patterns.TimeRange {
		return patterns.TimeRange{From: base.Add(-time.Hour), To: base.Add(24 * time.Hour)}
	}

	It("aggregates repeated transitions with their mean hand-off time", func() {
		addSession("s1", base)
		at := base
		// Seven coding→debugging hand-offs, alternating 60s and 120s apart.
		for i := 0; i < 7; i++ {
			gap := 60 * time.Second
			if i%2 == 1 {
				gap = 120 * time.Second
			}
			addActivity("s1", "coding", at)
			at = at.Add(gap)
			addActivity("s1", "debugging", at)
			at = at.Add(10 * time.Minute)
		}

		got, err := miner.WorkflowPatterns(ctx, "u1", rangeAll(), 1)
		Expect(err).NotTo(HaveOccurred())

		var coding *patterns.Pattern
		for i := range got {
			if got[i].Transition == "coding→debugging" {
				coding = &got[i]
			}
		}
		Expect(coding).NotTo(BeNil())
		Expect(coding.Frequency).To(Equal(7))
		// 4 gaps of 60s and 3 of 120s.
		Expect(coding.AvgTransitionTimeMs).To(BeNumerically("~", (4*60000+3*120000)/7.0, 0.01))
	})

	It("drops patterns below the minimum frequency", func() {
		// Unlinked sessions are independent chains, so pairs never bleed
		// across them.
		for i := 0; i < 7; i++ {
			id := fmt.Sprintf("cd%d", i)
			start := base.Add(time.Duration(i) * time.Hour)
			addSession(id, start)
			addActivity(id, "coding", start)
			addActivity(id, "debugging", start.Add(time.Minute))
		}
		for i := 0; i < 2; i++ {
			id := fmt.Sprintf("rw%d", i)
			start := base.Add(time.Duration(10+i) * time.Hour)
			addSession(id, start)
			addActivity(id, "research", start)
			addActivity(id, "writing", start.Add(time.Minute))
		}

		got, err := miner.WorkflowPatterns(ctx, "u1", rangeAll(), 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].Transition).To(Equal("coding→debugging"))
		Expect(got[0].Frequency).To(Equal(7))
	})

	It("ignores consecutive activities sharing a tag", func() {
		addSession("s1", base)
		addActivity("s1", "coding", base)
		addActivity("s1", "coding", base.Add(time.Minute))
		addActivity("s1", "coding", base.Add(2*time.Minute))

		got, err := miner.WorkflowPatterns(ctx, "u1", rangeAll(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("ignores untagged activities", func() {
		addSession("s1", base)
		addActivity("s1", "coding", base)
		addActivity("s1", "", base.Add(time.Minute))
		addActivity("s1", "debugging", base.Add(2*time.Minute))

		got, err := miner.WorkflowPatterns(ctx, "u1", rangeAll(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("crosses session boundaries within a chain", func() {
		addSession("s1", base)
		addSession("s2", base.Add(2*time.Hour))
		Expect(store.SetFollows(ctx, "s1", "s2")).To(Succeed())

		addActivity("s1", "coding", base)
		addActivity("s2", "debugging", base.Add(2*time.Hour))

		got, err := miner.WorkflowPatterns(ctx, "u1", rangeAll(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].Transition).To(Equal("coding→debugging"))
	})

	It("sorts by frequency descending, ties by name", func() {
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("cd%d", i)
			start := base.Add(time.Duration(i) * time.Hour)
			addSession(id, start)
			addActivity(id, "coding", start)
			addActivity(id, "debugging", start.Add(time.Minute))
		}
		addSession("rw", base.Add(10*time.Hour))
		addActivity("rw", "review", base.Add(10*time.Hour))
		addActivity("rw", "writing", base.Add(10*time.Hour+time.Minute))
		addSession("rr", base.Add(11*time.Hour))
		addActivity("rr", "research", base.Add(11*time.Hour))
		addActivity("rr", "review", base.Add(11*time.Hour+time.Minute))

		got, err := miner.WorkflowPatterns(ctx, "u1", rangeAll(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(3))
		Expect(got[0].Transition).To(Equal("coding→debugging"))
		Expect(got[1].Transition).To(Equal("research→review"))
		Expect(got[2].Transition).To(Equal("review→writing"))
	})

	It("rejects an empty user id", func() {
		_, err := miner.WorkflowPatterns(ctx, "", rangeAll(), 1)
		Expect(graph.IsValidation(err)).To(BeTrue())
	})
})
