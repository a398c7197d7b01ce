package eventstream_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomery/weft/pkg/eventstream"
	"github.com/loomery/weft/pkg/eventstream/nop"
)

var _ = Describe("NewActivityPersistedEvent", func() {
	It("stamps a unique id and occurrence time", func() {
		first := eventstream.NewActivityPersistedEvent("a1", "s1", "u1", 2, 1)
		second := eventstream.NewActivityPersistedEvent("a1", "s1", "u1", 2, 1)

		Expect(first.EventID).NotTo(BeEmpty())
		Expect(first.EventID).NotTo(Equal(second.EventID))
		Expect(first.OccurredAt).NotTo(BeZero())
		Expect(first.ActivityID).To(Equal("a1"))
		Expect(first.Entities).To(Equal(2))
		Expect(first.Concepts).To(Equal(1))
	})
})

var _ = Describe("nop publisher", func() {
	It("accepts and discards events", func() {
		p := nop.NewPublisher()
		event := eventstream.NewActivityPersistedEvent("a1", "", "", 0, 0)
		Expect(p.PublishActivityPersisted(context.Background(), event)).To(Succeed())
		Expect(p.Close()).To(Succeed())
	})
})
