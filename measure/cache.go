// Package measure provides the per-entity last-known-value store of radio
// quality, throughput, and position.
package measure

import (
	"fmt"
	"sync"

	"github.com/sarchlab/hotrace/registry"
)

// Values reported for a field that has never been observed.
const (
	DefaultRSRP       = -100.0
	DefaultRSRQ       = -20.0
	DefaultSINR       = 0.0
	DefaultThroughput = 0.0
)

// A Field names one cached quantity.
type Field int

// The cached fields.
const (
	FieldX Field = iota
	FieldY
	FieldSpeed
	FieldRSRP
	FieldRSRQ
	FieldSINR
	FieldThroughputDL
	FieldThroughputUL
	numFields
)

var fieldNames = [numFields]string{
	"X", "Y", "Speed", "RSRP", "RSRQ", "SINR", "ThroughputDL", "ThroughputUL",
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}

	return fieldNames[f]
}

// Vector is a position in meters.
type Vector struct {
	X, Y float64
}

// Snapshot is a copy of everything cached for one entity.
type Snapshot struct {
	Position     Vector
	Speed        float64
	RSRP         float64
	RSRQ         float64
	SINR         float64
	ThroughputDL float64
	ThroughputUL float64
}

// RadioQuality is the radio part of a snapshot.
type RadioQuality struct {
	RSRP float64
	RSRQ float64
	SINR float64
}

// Radio returns the radio-quality part of the snapshot.
func (s Snapshot) Radio() RadioQuality {
	return RadioQuality{RSRP: s.RSRP, RSRQ: s.RSRQ, SINR: s.SINR}
}

type entityValues struct {
	values [numFields]float64
	set    [numFields]bool
}

func (v *entityValues) valueOr(f Field, def float64) float64 {
	if v == nil || !v.set[f] {
		return def
	}

	return v.values[f]
}

type cellSample struct {
	rsrp, sinr float64
}

// A Cache stores the last known values of each entity and the latest
// PHY-layer sample of each cell.
//
// Each field has a single writer: position and speed come from mobility
// samples, RSRP and RSRQ from measurement reports or the cell fallback, and
// throughput from the attributor. The Cache itself does not enforce that.
// All methods are safe for concurrent use.
type Cache struct {
	lock     sync.RWMutex
	entities map[registry.EntityID]*entityValues
	cells    map[registry.CellID]cellSample
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		entities: make(map[registry.EntityID]*entityValues),
		cells:    make(map[registry.CellID]cellSample),
	}
}

// Get returns the cached values of an entity, using the documented defaults
// for anything not observed yet.
func (c *Cache) Get(id registry.EntityID) Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()

	v := c.entities[id]

	return Snapshot{
		Position: Vector{
			X: v.valueOr(FieldX, 0),
			Y: v.valueOr(FieldY, 0),
		},
		Speed:        v.valueOr(FieldSpeed, 0),
		RSRP:         v.valueOr(FieldRSRP, DefaultRSRP),
		RSRQ:         v.valueOr(FieldRSRQ, DefaultRSRQ),
		SINR:         v.valueOr(FieldSINR, DefaultSINR),
		ThroughputDL: v.valueOr(FieldThroughputDL, DefaultThroughput),
		ThroughputUL: v.valueOr(FieldThroughputUL, DefaultThroughput),
	}
}

// Has tells if a field has ever been set for the entity.
func (c *Cache) Has(id registry.EntityID, f Field) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	v, ok := c.entities[id]
	return ok && v.set[f]
}

func (c *Cache) mustGet(id registry.EntityID) *entityValues {
	v, ok := c.entities[id]
	if !ok {
		v = &entityValues{}
		c.entities[id] = v
	}

	return v
}

// Set overwrites one field of an entity.
func (c *Cache) Set(id registry.EntityID, f Field, value float64) {
	if f < 0 || f >= numFields {
		panic(fmt.Sprintf("unknown field %d", int(f)))
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	v := c.mustGet(id)
	v.values[f] = value
	v.set[f] = true
}

// SetPosition records a mobility sample.
func (c *Cache) SetPosition(id registry.EntityID, pos Vector, speed float64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	v := c.mustGet(id)
	v.values[FieldX], v.set[FieldX] = pos.X, true
	v.values[FieldY], v.set[FieldY] = pos.Y, true
	v.values[FieldSpeed], v.set[FieldSpeed] = speed, true
}

// SetCellSample stores the latest PHY-layer RSRP and SINR of a cell.
func (c *Cache) SetCellSample(cell registry.CellID, rsrp, sinr float64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.cells[cell] = cellSample{rsrp: rsrp, sinr: sinr}
}

// CellSample returns the latest PHY-layer RSRP and SINR of a cell.
func (c *Cache) CellSample(cell registry.CellID) (rsrp, sinr float64, ok bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	s, ok := c.cells[cell]
	return s.rsrp, s.sinr, ok
}

// ResolveSINR returns the entity's own SINR if one was ever observed.
// Otherwise it falls back to the latest SINR of the given cell and adopts it
// as the entity's value. Without either, DefaultSINR is returned and nothing
// is cached.
func (c *Cache) ResolveSINR(id registry.EntityID, cell registry.CellID) float64 {
	return c.resolveWithCellFallback(id, cell, FieldSINR, DefaultSINR,
		func(s cellSample) float64 { return s.sinr })
}

// ResolveRSRP applies the same priority as ResolveSINR to RSRP.
func (c *Cache) ResolveRSRP(id registry.EntityID, cell registry.CellID) float64 {
	return c.resolveWithCellFallback(id, cell, FieldRSRP, DefaultRSRP,
		func(s cellSample) float64 { return s.rsrp })
}

func (c *Cache) resolveWithCellFallback(
	id registry.EntityID,
	cell registry.CellID,
	f Field,
	def float64,
	pick func(cellSample) float64,
) float64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	if v, ok := c.entities[id]; ok && v.set[f] {
		return v.values[f]
	}

	if cell == registry.NoCell {
		return def
	}

	s, ok := c.cells[cell]
	if !ok {
		return def
	}

	value := pick(s)
	v := c.mustGet(id)
	v.values[f] = value
	v.set[f] = true

	return value
}
