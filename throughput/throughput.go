// Package throughput attributes the traffic of network flows to the entities
// at their endpoints.
package throughput

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sarchlab/hotrace/flow"
	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// A FlowSource exposes the cumulative counters of all flows.
type FlowSource interface {
	Flows() []flow.Stats
}

// Mode selects how the rate of a flow is derived from its counters.
type Mode int

const (
	// ModeCumulative divides the bytes since the start of the run by the
	// time since the start of the run. The result is a running average.
	ModeCumulative Mode = iota

	// ModeInterval divides the bytes transferred since the previous
	// attribution by the time since the previous attribution.
	ModeInterval
)

func (m Mode) String() string {
	switch m {
	case ModeCumulative:
		return "cumulative"
	case ModeInterval:
		return "interval"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "cumulative", "":
		return ModeCumulative, nil
	case "interval":
		return ModeInterval, nil
	default:
		return 0, fmt.Errorf("unknown throughput mode %q", s)
	}
}

type counters struct {
	tx, rx uint64
}

// An Attributor periodically overwrites the cached downlink and uplink
// throughput of every entity that is an endpoint of at least one flow.
type Attributor struct {
	sim.HookableBase

	source   FlowSource
	registry *registry.Registry
	cache    *measure.Cache
	mode     Mode
	logger   zerolog.Logger

	lastTime sim.VTimeInSec
	last     map[flow.ID]counters

	ticks *sim.TickScheduler
}

// New creates an Attributor that runs at start, start+interval, and so on up
// to the stop time.
func New(
	engine sim.EventScheduler,
	start, interval, stopTime sim.VTimeInSec,
	source FlowSource,
	reg *registry.Registry,
	cache *measure.Cache,
) *Attributor {
	a := &Attributor{
		source:   source,
		registry: reg,
		cache:    cache,
		logger:   log.With().Str("component", "throughput").Logger(),
		last:     make(map[flow.ID]counters),
	}

	a.ticks = sim.NewTickScheduler(a, engine, start, interval).
		WithStopTime(stopTime)

	return a
}

// WithMode selects the rate computation.
func (a *Attributor) WithMode(m Mode) *Attributor {
	a.mode = m
	return a
}

// Mode returns the rate computation in use.
func (a *Attributor) Mode() Mode {
	return a.mode
}

// Start schedules the first attribution.
func (a *Attributor) Start() {
	a.ticks.Start()
}

// Tick runs one attribution.
func (a *Attributor) Tick(now sim.VTimeInSec) error {
	a.Attribute(now)
	return nil
}

// Attribute computes the throughput of all flows at time now and overwrites
// the cached values of the entities involved. Nothing happens when no time
// has elapsed.
func (a *Attributor) Attribute(now sim.VTimeInSec) {
	if a.mode == ModeInterval {
		a.attributeInterval(now)
		return
	}

	a.attribute(now, float64(now), func(s flow.Stats) counters {
		return counters{tx: s.TxBytes, rx: s.RxBytes}
	})
}

// Final attributes the run-average throughput over the whole run.
func (a *Attributor) Final(stopTime sim.VTimeInSec) {
	a.attribute(stopTime, float64(stopTime), func(s flow.Stats) counters {
		return counters{tx: s.TxBytes, rx: s.RxBytes}
	})
}

func (a *Attributor) attributeInterval(now sim.VTimeInSec) {
	flows := a.source.Flows()
	elapsed := float64(now - a.lastTime)

	if elapsed <= 0 {
		return
	}

	a.attributeFlows(now, flows, elapsed, func(s flow.Stats) counters {
		prev := a.last[s.ID]
		return counters{
			tx: deltaOf(s.TxBytes, prev.tx),
			rx: deltaOf(s.RxBytes, prev.rx),
		}
	})

	for _, s := range flows {
		a.last[s.ID] = counters{tx: s.TxBytes, rx: s.RxBytes}
	}

	a.lastTime = now
}

func deltaOf(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}

	return cur - prev
}

func (a *Attributor) attribute(
	now sim.VTimeInSec,
	elapsed float64,
	bytesOf func(flow.Stats) counters,
) {
	if elapsed <= 0 {
		return
	}

	a.attributeFlows(now, a.source.Flows(), elapsed, bytesOf)
}

func (a *Attributor) attributeFlows(
	now sim.VTimeInSec,
	flows []flow.Stats,
	elapsed float64,
	bytesOf func(flow.Stats) counters,
) {
	downlink := make(map[registry.EntityID]float64)
	uplink := make(map[registry.EntityID]float64)

	for _, s := range flows {
		b := bytesOf(s)
		attributed := false

		if id, ok := a.registry.LookupByAddress(s.Tuple.Destination); ok {
			mbps, _ := flow.MbpsOver(b.rx, elapsed)
			downlink[id] += mbps
			attributed = true
		}

		if id, ok := a.registry.LookupByAddress(s.Tuple.Source); ok {
			mbps, _ := flow.MbpsOver(b.tx, elapsed)
			uplink[id] += mbps
			attributed = true
		}

		if !attributed {
			a.logger.Debug().
				Uint32("flow", uint32(s.ID)).
				Str("tuple", s.Tuple.String()).
				Msg("flow has no bound endpoint")

			a.InvokeHook(sim.HookCtx{
				Domain: a,
				Pos:    sim.HookPosFlowUnattributed,
				Item:   s,
				Detail: now,
			})
		}
	}

	for id, v := range downlink {
		a.cache.Set(id, measure.FieldThroughputDL, v)
	}

	for id, v := range uplink {
		a.cache.Set(id, measure.FieldThroughputUL, v)
	}
}
