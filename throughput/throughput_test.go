package throughput_test

import (
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/hotrace/flow"
	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
	"github.com/sarchlab/hotrace/throughput"
)

var (
	remote = netip.MustParseAddr("1.0.0.2")
	ue1    = netip.MustParseAddr("7.0.0.2")
	ue2    = netip.MustParseAddr("7.0.0.3")
)

func downlink(id flow.ID, dst netip.Addr, rx uint64) flow.Stats {
	return flow.Stats{
		ID:      id,
		Tuple:   flow.FiveTuple{Source: remote, Destination: dst, Protocol: 17},
		RxBytes: rx,
	}
}

func uplink(id flow.ID, src netip.Addr, tx uint64) flow.Stats {
	return flow.Stats{
		ID:      id,
		Tuple:   flow.FiveTuple{Source: src, Destination: remote, Protocol: 17},
		TxBytes: tx,
	}
}

var _ = Describe("Attributor", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *sim.SerialEngine
		source   *MockFlowSource
		reg      *registry.Registry
		cache    *measure.Cache
		a        *throughput.Attributor
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		source = NewMockFlowSource(mockCtrl)
		reg = registry.New()
		cache = measure.NewCache()
		a = throughput.New(engine, 1, 0.5, 10, source, reg, cache)

		Expect(reg.Bind(ue1, 1)).To(Succeed())
		Expect(reg.Bind(ue2, 2)).To(Succeed())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should compute the cumulative downlink and uplink rates", func() {
		source.EXPECT().Flows().Return([]flow.Stats{
			downlink(1, ue1, 1_000_000),
			uplink(2, ue1, 500_000),
		})

		a.Attribute(2)

		Expect(cache.Get(1).ThroughputDL).To(Equal(4.0))
		Expect(cache.Get(1).ThroughputUL).To(Equal(2.0))
	})

	It("should sum the flows of one entity", func() {
		source.EXPECT().Flows().Return([]flow.Stats{
			downlink(1, ue1, 1_000_000),
			downlink(2, ue1, 250_000),
		})

		a.Attribute(1)

		Expect(cache.Get(1).ThroughputDL).To(Equal(10.0))
	})

	It("should overwrite instead of accumulate", func() {
		source.EXPECT().Flows().Return([]flow.Stats{
			downlink(1, ue1, 1_000_000),
		}).Times(2)

		a.Attribute(1)
		a.Attribute(2)

		Expect(cache.Get(1).ThroughputDL).To(Equal(4.0))
	})

	It("should leave entities without flows untouched", func() {
		cache.Set(2, measure.FieldThroughputDL, 9)
		source.EXPECT().Flows().Return([]flow.Stats{
			downlink(1, ue1, 1_000_000),
		})

		a.Attribute(1)

		Expect(cache.Get(2).ThroughputDL).To(Equal(9.0))
		Expect(cache.Has(1, measure.FieldThroughputUL)).To(BeFalse())
	})

	It("should skip when no time has elapsed", func() {
		a.Attribute(0)

		Expect(cache.Has(1, measure.FieldThroughputDL)).To(BeFalse())
	})

	It("should ignore flows without bound endpoints", func() {
		var unattributed []flow.Stats
		a.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == sim.HookPosFlowUnattributed {
				unattributed = append(unattributed, ctx.Item.(flow.Stats))
			}
		}))

		stray := downlink(3, netip.MustParseAddr("10.1.1.1"), 1_000)
		source.EXPECT().Flows().Return([]flow.Stats{stray})

		a.Attribute(1)

		Expect(unattributed).To(Equal([]flow.Stats{stray}))
		Expect(cache.Get(1).ThroughputDL).To(Equal(measure.DefaultThroughput))
	})

	It("should tick from the start time at every interval", func() {
		engine.StopAt(2)
		source.EXPECT().Flows().Return(nil).Times(3)

		a.Start()
		Expect(engine.Run()).To(Succeed())
	})

	It("should attribute over the whole run at the end", func() {
		source.EXPECT().Flows().Return([]flow.Stats{
			downlink(1, ue1, 5_000_000),
		})

		a.Final(10)

		Expect(cache.Get(1).ThroughputDL).To(Equal(4.0))
	})

	Context("in interval mode", func() {
		BeforeEach(func() {
			a.WithMode(throughput.ModeInterval)
		})

		It("should use the bytes since the previous attribution", func() {
			gomock.InOrder(
				source.EXPECT().Flows().Return([]flow.Stats{
					downlink(1, ue1, 1_000_000),
				}),
				source.EXPECT().Flows().Return([]flow.Stats{
					downlink(1, ue1, 1_500_000),
				}),
			)

			a.Attribute(1)
			Expect(cache.Get(1).ThroughputDL).To(Equal(8.0))

			a.Attribute(2)
			Expect(cache.Get(1).ThroughputDL).To(Equal(4.0))
		})
	})
})

var _ = Describe("ParseMode", func() {
	It("should parse mode names", func() {
		Expect(throughput.ParseMode("cumulative")).To(Equal(throughput.ModeCumulative))
		Expect(throughput.ParseMode("interval")).To(Equal(throughput.ModeInterval))
		Expect(throughput.ModeInterval.String()).To(Equal("interval"))
	})

	It("should reject unknown modes", func() {
		_, err := throughput.ParseMode("sliding")
		Expect(err).To(HaveOccurred())
	})
})
