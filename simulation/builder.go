package simulation

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sarchlab/hotrace/config"
	"github.com/sarchlab/hotrace/correlator"
	"github.com/sarchlab/hotrace/datarecording"
	"github.com/sarchlab/hotrace/flow"
	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/mobility"
	"github.com/sarchlab/hotrace/monitoring"
	"github.com/sarchlab/hotrace/record"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/scenario"
	"github.com/sarchlab/hotrace/sim"
	"github.com/sarchlab/hotrace/snapshot"
	"github.com/sarchlab/hotrace/throughput"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg        config.Config
	model      mobility.Model
	entries    []scenario.Entry
	hasEntries bool
	sinks      []record.Sink
	registerer prometheus.Registerer
	logger     zerolog.Logger
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg:    config.Default(),
		logger: log.With().Str("component", "simulation").Logger(),
	}
}

// WithConfig sets the configuration of the run.
func (b Builder) WithConfig(c config.Config) Builder {
	b.cfg = c
	return b
}

// WithMobility uses the given model instead of loading the configured
// mobility trace.
func (b Builder) WithMobility(m mobility.Model) Builder {
	b.model = m
	return b
}

// WithEntries replays the given entries instead of loading the configured
// events file.
func (b Builder) WithEntries(entries []scenario.Entry) Builder {
	b.entries = entries
	b.hasEntries = true
	return b
}

// WithSink adds a sink that receives every record next to the dataset file.
func (b Builder) WithSink(s record.Sink) Builder {
	b.sinks = append(append([]record.Sink(nil), b.sinks...), s)
	return b
}

// WithRegisterer sets where the run metrics are registered. A private
// registry is used when it is not set.
func (b Builder) WithRegisterer(reg prometheus.Registerer) Builder {
	b.registerer = reg
	return b
}

// WithLogger sets the logger of the run.
func (b Builder) WithLogger(l zerolog.Logger) Builder {
	b.logger = l
	return b
}

// Build validates the configuration, loads the inputs, opens the outputs and
// wires everything on a new engine. Nothing is run until Simulation.Run.
func (b Builder) Build() (*Simulation, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		id:       sim.NewRunID(),
		cfg:      b.cfg,
		stopTime: sim.VTimeInSec(b.cfg.StopTime),
		engine:   sim.NewSerialEngine(),
		registry: registry.New(),
		cache:    measure.NewCache(),
		flows:    flow.NewTable(),
		logger:   b.logger,
	}
	s.engine.StopAt(s.stopTime)

	model, err := b.mobilityModel()
	if err != nil {
		return nil, err
	}

	entries, err := b.scenarioEntries()
	if err != nil {
		return nil, err
	}

	if err := b.openSinks(s); err != nil {
		return nil, err
	}

	if lister, ok := model.(mobility.EntityLister); ok {
		for _, id := range lister.Entities() {
			s.registry.Register(id)
		}
	}

	b.buildComponents(s, model)

	if err := b.buildMonitor(s); err != nil {
		_ = s.sink.Close()
		return nil, err
	}

	scenario.Schedule(s.engine, entries, s.correlator, s.flows)
	s.snapshot.Start()
	s.attributor.Start()

	s.engine.AcceptHook(sim.NewEventLogger(b.logger))
	s.engine.RegisterSimulationEndHandler(s)

	return s, nil
}

func (b Builder) mobilityModel() (mobility.Model, error) {
	if b.model != nil {
		return b.model, nil
	}

	if b.cfg.MobilityTrace == "" {
		return mobility.Fixed{}, nil
	}

	var (
		trace *mobility.Trace
		err   error
	)

	switch b.cfg.MobilityFormat {
	case config.FormatFCD:
		var fcd *mobility.FCD

		fcd, err = mobility.LoadFCD(b.cfg.MobilityTrace)
		if err == nil {
			trace = fcd.ToTrace(b.cfg.MobilityTrace)
		}
	default:
		trace, err = mobility.LoadNS2(b.cfg.MobilityTrace)
	}

	if err != nil {
		return nil, fmt.Errorf("loading mobility: %w", err)
	}

	b.logger.Info().
		Str("trace", b.cfg.MobilityTrace).
		Int("nodes", trace.Nodes()).
		Msg("mobility trace loaded")

	return mobility.NewWaypoint(trace, b.cfg.IMSIOffset), nil
}

func (b Builder) scenarioEntries() ([]scenario.Entry, error) {
	if b.hasEntries {
		return b.entries, nil
	}

	if b.cfg.EventsFile == "" {
		b.logger.Warn().Msg("no events file, only snapshots are recorded")
		return nil, nil
	}

	entries, err := scenario.Load(b.cfg.EventsFile)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}

	return entries, nil
}

func (b Builder) openSinks(s *Simulation) error {
	csv, err := record.CreateCSV(b.cfg.Output)
	if err != nil {
		return err
	}

	sinks := record.MultiSink{csv}

	if b.cfg.SQLite != "" {
		recorder, err := datarecording.New(b.cfg.SQLite)
		if err != nil {
			_ = csv.Close()
			return fmt.Errorf("opening sqlite mirror: %w", err)
		}

		s.sqlite, err = record.NewSQLiteSink(recorder)
		if err != nil {
			_ = csv.Close()
			return errors.Join(err, recorder.Close())
		}

		sinks = append(sinks, s.sqlite)
	}

	s.sink = append(sinks, b.sinks...)

	return nil
}

func (b Builder) buildComponents(s *Simulation, model mobility.Model) {
	s.correlator = correlator.New(s.registry, s.cache, s.sink).
		WithPreHandoverSnapshot(b.cfg.PreHandoverSnapshot)

	s.snapshot = snapshot.New(
		s.engine,
		sim.VTimeInSec(b.cfg.SnapshotInterval), s.stopTime,
		s.registry, s.cache, model, s.sink,
	)

	s.attributor = throughput.New(
		s.engine,
		sim.VTimeInSec(b.cfg.ThroughputStart),
		sim.VTimeInSec(b.cfg.ThroughputInterval),
		s.stopTime,
		s.flows, s.registry, s.cache,
	).WithMode(b.cfg.Mode())
}

func (b Builder) buildMonitor(s *Simulation) error {
	if !b.cfg.Monitor {
		return nil
	}

	reg := b.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	metrics, err := monitoring.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	s.engine.AcceptHook(metrics)
	s.correlator.AcceptHook(metrics)
	s.snapshot.AcceptHook(metrics)
	s.attributor.AcceptHook(metrics)

	s.monitor = monitoring.NewMonitor().
		WithPortNumber(b.cfg.MonitorPort).
		WithBrowser(b.cfg.OpenBrowser)
	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterEntities(s.registry, s.cache)
	s.monitor.RegisterMetrics(metrics)
	s.engine.AcceptHook(s.monitor.TrackTime(s.stopTime))

	s.monitorURL, err = s.monitor.StartServer()

	return err
}
