// Package record defines the rows of the produced datasets and the sinks that
// write them.
package record

import (
	"errors"

	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// ErrClosed is returned when writing to a closed sink.
var ErrClosed = errors.New("sink is closed")

// Kind tells which variant a record is.
type Kind int

// The record variants.
const (
	KindMeasurement Kind = iota
	KindHandover
)

func (k Kind) String() string {
	switch k {
	case KindHandover:
		return "HANDOVER"
	case KindMeasurement:
		return "MEASUREMENT"
	default:
		return "UNKNOWN"
	}
}

// A Record is one row of the primary dataset.
//
// For a transition record OldCell and Old describe the state before the
// handover. For a snapshot record OldCell equals NewCell and Old is unused.
type Record struct {
	Time         sim.VTimeInSec
	Entity       registry.EntityID
	OldCell      registry.CellID
	NewCell      registry.CellID
	Old          measure.RadioQuality
	New          measure.RadioQuality
	ThroughputDL float64
	ThroughputUL float64
	Position     measure.Vector
	Speed        float64
	Kind         Kind
}

// NewTransition creates a HANDOVER record. Throughput, position and speed are
// taken from the cached snapshot.
func NewTransition(
	now sim.VTimeInSec,
	id registry.EntityID,
	oldCell, newCell registry.CellID,
	before, after measure.RadioQuality,
	cached measure.Snapshot,
) Record {
	return Record{
		Time:         now,
		Entity:       id,
		OldCell:      oldCell,
		NewCell:      newCell,
		Old:          before,
		New:          after,
		ThroughputDL: cached.ThroughputDL,
		ThroughputUL: cached.ThroughputUL,
		Position:     cached.Position,
		Speed:        cached.Speed,
		Kind:         KindHandover,
	}
}

// NewSnapshot creates a MEASUREMENT record for the entity's serving cell.
func NewSnapshot(
	now sim.VTimeInSec,
	id registry.EntityID,
	cell registry.CellID,
	radio measure.RadioQuality,
	cached measure.Snapshot,
) Record {
	return Record{
		Time:         now,
		Entity:       id,
		OldCell:      cell,
		NewCell:      cell,
		New:          radio,
		ThroughputDL: cached.ThroughputDL,
		ThroughputUL: cached.ThroughputUL,
		Position:     cached.Position,
		Speed:        cached.Speed,
		Kind:         KindMeasurement,
	}
}

// A Sink receives records in emission order.
type Sink interface {
	// Write appends one complete record.
	Write(r Record) error

	// Close flushes and releases the sink.
	Close() error
}

// MultiSink writes every record to all of its sinks.
type MultiSink []Sink

// Write writes r to every sink and returns the joined errors.
func (m MultiSink) Write(r Record) error {
	var errs []error

	for _, s := range m {
		if err := s.Write(r); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close closes every sink.
func (m MultiSink) Close() error {
	var errs []error

	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
