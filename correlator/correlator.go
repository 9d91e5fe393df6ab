// Package correlator turns the notifications of the host simulator into
// cache updates and output records.
package correlator

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/record"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// A Correlator resolves identifiers, updates the measurement cache, and
// emits HANDOVER and MEASUREMENT records as notifications arrive.
//
// Notifications are processed exactly in delivery order.
type Correlator struct {
	sim.HookableBase

	registry *registry.Registry
	cache    *measure.Cache
	sink     record.Sink
	logger   zerolog.Logger

	preHandoverSnapshot bool
	beforeHandover      map[registry.EntityID]measure.RadioQuality
}

// New creates a Correlator that emits records into sink.
func New(
	reg *registry.Registry,
	cache *measure.Cache,
	sink record.Sink,
) *Correlator {
	return &Correlator{
		registry:       reg,
		cache:          cache,
		sink:           sink,
		logger:         log.With().Str("component", "correlator").Logger(),
		beforeHandover: make(map[registry.EntityID]measure.RadioQuality),
	}
}

// WithLogger replaces the logger.
func (c *Correlator) WithLogger(l zerolog.Logger) *Correlator {
	c.logger = l
	return c
}

// WithPreHandoverSnapshot makes HandoverStart capture the entity's radio
// quality so that the next HANDOVER record reports it in the _Old columns.
// This changes the output: without it the _Old columns repeat the _New ones.
func (c *Correlator) WithPreHandoverSnapshot(on bool) *Correlator {
	c.preHandoverSnapshot = on
	return c
}

// Handle processes a NotificationEvent.
func (c *Correlator) Handle(e sim.Event) error {
	evt, ok := e.(NotificationEvent)
	if !ok {
		return fmt.Errorf("correlator cannot handle %T", e)
	}

	return c.Process(evt.Time(), evt.Payload)
}

// Process applies one notification received at time now.
func (c *Correlator) Process(now sim.VTimeInSec, n Notification) error {
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    sim.HookPosNotification,
		Item:   n,
	})

	switch n := n.(type) {
	case Attachment:
		return c.attach(n)
	case HandoverStart:
		return c.handoverStart(n)
	case HandoverComplete:
		return c.handoverComplete(now, n)
	case MeasurementReport:
		return c.measurementReport(now, n)
	case UEMeasurement:
		return c.ueMeasurement(now, n)
	case PhySample:
		c.cache.SetCellSample(n.Cell, n.RSRP, n.SINR)
		return nil
	case AddressAssigned:
		return c.addressAssigned(n)
	default:
		return fmt.Errorf("unknown notification %T", n)
	}
}

func (c *Correlator) attach(n Attachment) error {
	c.registry.SetServingCell(n.Entity, n.Cell)

	c.logger.Info().
		Uint64("ue", uint64(n.Entity)).
		Uint16("cell", uint16(n.Cell)).
		Msg("connection established")

	return nil
}

func (c *Correlator) handoverStart(n HandoverStart) error {
	seeded := c.registry.SeedServingCell(n.Entity, n.FromCell)

	if c.preHandoverSnapshot {
		c.beforeHandover[n.Entity] = c.cache.Get(n.Entity).Radio()
	}

	c.logger.Info().
		Uint64("ue", uint64(n.Entity)).
		Uint16("from", uint16(n.FromCell)).
		Uint16("to", uint16(n.ToCell)).
		Bool("seeded", seeded).
		Msg("handover start")

	return nil
}

func (c *Correlator) handoverComplete(
	now sim.VTimeInSec,
	n HandoverComplete,
) error {
	oldCell, tracked := c.registry.ServingCell(n.Entity)
	if !tracked {
		oldCell = n.NewCell
	}

	cached := c.cache.Get(n.Entity)
	after := cached.Radio()
	before := after

	if c.preHandoverSnapshot {
		if snap, ok := c.beforeHandover[n.Entity]; ok {
			before = snap
			delete(c.beforeHandover, n.Entity)
		}
	}

	rec := record.NewTransition(
		now, n.Entity, oldCell, n.NewCell, before, after, cached)
	err := c.emit(rec)

	c.registry.SetServingCell(n.Entity, n.NewCell)

	c.logger.Info().
		Uint64("ue", uint64(n.Entity)).
		Uint16("from", uint16(oldCell)).
		Uint16("to", uint16(n.NewCell)).
		Msg("handover complete")

	return err
}

func (c *Correlator) measurementReport(
	now sim.VTimeInSec,
	n MeasurementReport,
) error {
	rsrp := measure.DecodeRSRP(n.EncodedRSRP)
	rsrq := measure.DecodeRSRQ(n.EncodedRSRQ)

	return c.servingMeasurement(now, n.Entity, n.Cell, rsrp, rsrq)
}

func (c *Correlator) ueMeasurement(now sim.VTimeInSec, n UEMeasurement) error {
	if !n.ServingCell {
		return nil
	}

	return c.servingMeasurement(now, n.Entity, n.Cell, n.RSRP, n.RSRQ)
}

func (c *Correlator) servingMeasurement(
	now sim.VTimeInSec,
	id registry.EntityID,
	cell registry.CellID,
	rsrp, rsrq float64,
) error {
	c.registry.Register(id)
	c.cache.Set(id, measure.FieldRSRP, rsrp)
	c.cache.Set(id, measure.FieldRSRQ, rsrq)
	sinr := c.cache.ResolveSINR(id, cell)

	radio := measure.RadioQuality{RSRP: rsrp, RSRQ: rsrq, SINR: sinr}
	rec := record.NewSnapshot(now, id, cell, radio, c.cache.Get(id))

	return c.emit(rec)
}

func (c *Correlator) addressAssigned(n AddressAssigned) error {
	if err := c.registry.Bind(n.Address, n.Entity); err != nil {
		return err
	}

	c.logger.Debug().
		Uint64("ue", uint64(n.Entity)).
		Str("addr", n.Address.String()).
		Msg("address assigned")

	return nil
}

func (c *Correlator) emit(r record.Record) error {
	if err := c.sink.Write(r); err != nil {
		return fmt.Errorf("emitting %s record for UE %d: %w",
			r.Kind, r.Entity, err)
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    sim.HookPosRecordEmitted,
		Item:   r,
	})

	return nil
}
