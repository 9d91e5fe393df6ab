// Package simulation assembles a run: the engine, the entity state, the
// correlator, the periodic samplers, the sinks, and the optional monitor.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sarchlab/hotrace/config"
	"github.com/sarchlab/hotrace/correlator"
	"github.com/sarchlab/hotrace/flow"
	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/monitoring"
	"github.com/sarchlab/hotrace/record"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
	"github.com/sarchlab/hotrace/snapshot"
	"github.com/sarchlab/hotrace/throughput"
)

// A Simulation is one assembled run.
type Simulation struct {
	id       string
	cfg      config.Config
	stopTime sim.VTimeInSec
	logger   zerolog.Logger

	engine     *sim.SerialEngine
	registry   *registry.Registry
	cache      *measure.Cache
	flows      *flow.Table
	correlator *correlator.Correlator
	snapshot   *snapshot.Scheduler
	attributor *throughput.Attributor

	sink   record.MultiSink
	sqlite *record.SQLiteSink

	monitor    *monitoring.Monitor
	monitorURL string

	flowSummaries []flow.Summary
	finishErr     error
}

// ID returns the unique identifier of the run.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// GetRegistry returns the entity registry.
func (s *Simulation) GetRegistry() *registry.Registry {
	return s.registry
}

// GetCache returns the measurement cache.
func (s *Simulation) GetCache() *measure.Cache {
	return s.cache
}

// GetFlows returns the flow table fed by the replayed events.
func (s *Simulation) GetFlows() *flow.Table {
	return s.flows
}

// GetMonitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns where the monitor listens. It is empty when monitoring
// is off.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// FlowSummaries returns the flow statistics rows computed at the end of the
// run.
func (s *Simulation) FlowSummaries() []flow.Summary {
	return s.flowSummaries
}

// Run triggers every event up to the stop time and then writes the end of
// run outputs.
func (s *Simulation) Run() error {
	start := time.Now()

	s.logger.Info().
		Str("run", s.id).
		Float64("stop_time", float64(s.stopTime)).
		Int("entities", s.registry.Len()).
		Msg("simulation started")

	if err := s.engine.Run(); err != nil {
		return fmt.Errorf("running simulation: %w", err)
	}

	s.engine.Finished()

	if s.finishErr != nil {
		return s.finishErr
	}

	s.logger.Info().
		Str("run", s.id).
		Int("snapshots", s.snapshot.Ticks()).
		Int("flows", len(s.flowSummaries)).
		Dur("wall_time", time.Since(start)).
		Msg("simulation finished")

	return nil
}

// Handle computes the end-of-run throughput and writes the flow statistics.
func (s *Simulation) Handle(_ sim.VTimeInSec) {
	s.attributor.Final(s.stopTime)

	flows := s.flows.Flows()
	s.flowSummaries = make([]flow.Summary, 0, len(flows))
	for _, f := range flows {
		s.flowSummaries = append(s.flowSummaries,
			flow.Summarize(f, float64(s.stopTime)))
	}

	var errs []error

	if s.cfg.FlowOutput != "" {
		err := record.CreateFlowStats(s.cfg.FlowOutput, s.flowSummaries)
		errs = append(errs, err)
	}

	if s.sqlite != nil {
		errs = append(errs, s.sqlite.WriteFlowStats(s.flowSummaries))
	}

	s.finishErr = errors.Join(errs...)
}

// Terminate closes the sinks and stops the monitor.
func (s *Simulation) Terminate() error {
	errs := []error{s.sink.Close()}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		errs = append(errs, s.monitor.StopServer(ctx))
	}

	return errors.Join(errs...)
}
