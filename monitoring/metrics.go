package monitoring

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarchlab/hotrace/correlator"
	"github.com/sarchlab/hotrace/record"
	"github.com/sarchlab/hotrace/sim"
)

// Metrics bundles the Prometheus metrics of a run. It is a sim.Hook and can be
// attached to the engine, the correlator, the snapshot scheduler and the
// throughput attributor.
type Metrics struct {
	gatherer prometheus.Gatherer

	Notifications     *prometheus.CounterVec
	Records           *prometheus.CounterVec
	UnattributedFlows prometheus.Counter
	SimulatedTime     prometheus.Gauge
	Events            prometheus.Counter
}

// NewMetrics registers the metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	notifications, err := registerCounterVec(reg,
		prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotrace_notifications_total",
			Help: "Notifications accepted by the correlator, labeled by kind.",
		}, []string{"kind"}),
		"hotrace_notifications_total")
	if err != nil {
		return nil, err
	}

	records, err := registerCounterVec(reg,
		prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotrace_records_total",
			Help: "Dataset records written, labeled by handover type.",
		}, []string{"type"}),
		"hotrace_records_total")
	if err != nil {
		return nil, err
	}

	unattributed, err := registerCounter(reg,
		prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotrace_unattributed_flows_total",
			Help: "Flow observations with no endpoint bound to a UE.",
		}),
		"hotrace_unattributed_flows_total")
	if err != nil {
		return nil, err
	}

	events, err := registerCounter(reg,
		prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotrace_events_total",
			Help: "Events handled by the engine.",
		}),
		"hotrace_events_total")
	if err != nil {
		return nil, err
	}

	simTime, err := registerGauge(reg,
		prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hotrace_simulated_time_seconds",
			Help: "Time of the last handled event.",
		}),
		"hotrace_simulated_time_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:          gatherer,
		Notifications:     notifications,
		Records:           records,
		UnattributedFlows: unattributed,
		SimulatedTime:     simTime,
		Events:            events,
	}, nil
}

// Func updates the metrics from a hook site.
func (m *Metrics) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosAfterEvent:
		evt, ok := ctx.Item.(sim.Event)
		if !ok {
			return
		}

		m.Events.Inc()
		m.SimulatedTime.Set(float64(evt.Time()))
	case sim.HookPosNotification:
		n, ok := ctx.Item.(correlator.Notification)
		if !ok {
			return
		}

		m.Notifications.WithLabelValues(correlator.KindName(n)).Inc()
	case sim.HookPosRecordEmitted:
		r, ok := ctx.Item.(record.Record)
		if !ok {
			return
		}

		m.Records.WithLabelValues(r.Kind.String()).Inc()
	case sim.HookPosFlowUnattributed:
		m.UnattributedFlows.Inc()
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(
	reg prometheus.Registerer,
	vec *prometheus.CounterVec,
	name string,
) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}

			return nil, fmt.Errorf(
				"collector %s already registered with incompatible type", name)
		}

		return nil, err
	}

	return vec, nil
}

func registerCounter(
	reg prometheus.Registerer,
	counter prometheus.Counter,
	name string,
) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}

			return nil, fmt.Errorf(
				"collector %s already registered with incompatible type", name)
		}

		return nil, err
	}

	return counter, nil
}

func registerGauge(
	reg prometheus.Registerer,
	gauge prometheus.Gauge,
	name string,
) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}

			return nil, fmt.Errorf(
				"collector %s already registered with incompatible type", name)
		}

		return nil, err
	}

	return gauge, nil
}
