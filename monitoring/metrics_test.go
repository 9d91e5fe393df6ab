package monitoring

import (
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarchlab/hotrace/correlator"
	"github.com/sarchlab/hotrace/flow"
	"github.com/sarchlab/hotrace/record"
	"github.com/sarchlab/hotrace/sim"
)

type timedEvent struct {
	sim.EventBase
}

var _ = Describe("Metrics", func() {
	var (
		reg     *prometheus.Registry
		metrics *Metrics
	)

	BeforeEach(func() {
		var err error

		reg = prometheus.NewRegistry()
		metrics, err = NewMetrics(reg)
		Expect(err).ToNot(HaveOccurred())
	})

	It("should count notifications by kind", func() {
		metrics.Func(sim.HookCtx{
			Pos:  sim.HookPosNotification,
			Item: correlator.Attachment{Entity: 1, Cell: 2},
		})
		metrics.Func(sim.HookCtx{
			Pos:  sim.HookPosNotification,
			Item: correlator.Attachment{Entity: 2, Cell: 2},
		})

		Expect(testutil.ToFloat64(
			metrics.Notifications.WithLabelValues("attach"))).To(Equal(2.0))
	})

	It("should count records by type", func() {
		metrics.Func(sim.HookCtx{
			Pos:  sim.HookPosRecordEmitted,
			Item: record.Record{Kind: record.KindHandover},
		})

		Expect(testutil.ToFloat64(
			metrics.Records.WithLabelValues("HANDOVER"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(
			metrics.Records.WithLabelValues("MEASUREMENT"))).To(Equal(0.0))
	})

	It("should count unattributed flows", func() {
		metrics.Func(sim.HookCtx{
			Pos:  sim.HookPosFlowUnattributed,
			Item: flow.Stats{ID: 3},
		})

		Expect(testutil.ToFloat64(metrics.UnattributedFlows)).To(Equal(1.0))
	})

	It("should track the simulated time", func() {
		evt := timedEvent{sim.NewEventBase(2.5, nil)}

		metrics.Func(sim.HookCtx{Pos: sim.HookPosAfterEvent, Item: evt})

		Expect(testutil.ToFloat64(metrics.SimulatedTime)).To(Equal(2.5))
		Expect(testutil.ToFloat64(metrics.Events)).To(Equal(1.0))
	})

	It("should ignore items of unexpected types", func() {
		metrics.Func(sim.HookCtx{Pos: sim.HookPosRecordEmitted, Item: 42})

		Expect(testutil.CollectAndCount(metrics.Records)).To(Equal(0))
	})

	It("should reuse collectors already registered", func() {
		again, err := NewMetrics(reg)

		Expect(err).ToNot(HaveOccurred())
		Expect(again.Records).To(BeIdenticalTo(metrics.Records))
	})

	It("should serve the metrics", func() {
		metrics.Func(sim.HookCtx{
			Pos:  sim.HookPosRecordEmitted,
			Item: record.Record{Kind: record.KindMeasurement},
		})

		rec := httptest.NewRecorder()
		metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		Expect(rec.Code).To(Equal(200))
		Expect(rec.Body.String()).To(
			ContainSubstring(`hotrace_records_total{type="MEASUREMENT"} 1`))
	})
})
