// Package snapshot emits a MEASUREMENT record for every live entity at a
// fixed interval.
package snapshot

import (
	"fmt"

	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/mobility"
	"github.com/sarchlab/hotrace/record"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// A Scheduler samples the state of every live entity at interval, 2*interval,
// and so on, up to and including the stop time.
type Scheduler struct {
	sim.HookableBase

	registry *registry.Registry
	cache    *measure.Cache
	mobility mobility.Model
	sink     record.Sink

	ticks *sim.TickScheduler
}

// New creates a Scheduler that schedules its ticks on engine.
func New(
	engine sim.EventScheduler,
	interval, stopTime sim.VTimeInSec,
	reg *registry.Registry,
	cache *measure.Cache,
	model mobility.Model,
	sink record.Sink,
) *Scheduler {
	s := &Scheduler{
		registry: reg,
		cache:    cache,
		mobility: model,
		sink:     sink,
	}

	s.ticks = sim.NewTickScheduler(s, engine, interval, interval).
		WithStopTime(stopTime)

	return s
}

// Start schedules the first tick.
func (s *Scheduler) Start() {
	s.ticks.Start()
}

// Ticks returns the number of ticks run so far.
func (s *Scheduler) Ticks() int {
	return s.ticks.Ticks()
}

// Tick records one snapshot of every live entity, in entity order.
func (s *Scheduler) Tick(now sim.VTimeInSec) error {
	for _, id := range s.registry.Entities() {
		if err := s.sample(now, id); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) sample(now sim.VTimeInSec, id registry.EntityID) error {
	cell, _ := s.registry.ServingCell(id)

	if s.mobility != nil {
		if m, ok := s.mobility.Sample(id, now); ok {
			s.cache.SetPosition(id, m.Position, m.Speed())
		}
	}

	rsrp := s.cache.ResolveRSRP(id, cell)
	sinr := s.cache.ResolveSINR(id, cell)
	cached := s.cache.Get(id)

	radio := measure.RadioQuality{RSRP: rsrp, RSRQ: cached.RSRQ, SINR: sinr}
	rec := record.NewSnapshot(now, id, cell, radio, cached)

	if err := s.sink.Write(rec); err != nil {
		return fmt.Errorf("snapshot of UE %d at %.6f: %w", id, now, err)
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    sim.HookPosRecordEmitted,
		Item:   rec,
	})

	return nil
}
