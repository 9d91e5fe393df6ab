// Package mobility provides the positions and velocities of the simulated
// terminals.
package mobility

import (
	"errors"
	"math"
	"sort"

	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// ErrTraceNotFound is returned when a mobility trace file does not exist.
var ErrTraceNotFound = errors.New("mobility trace not found")

// A Sample is the kinematic state of an entity at one instant.
type Sample struct {
	Position measure.Vector
	Velocity measure.Vector
}

// Speed is the horizontal magnitude of the velocity.
func (s Sample) Speed() float64 {
	return math.Hypot(s.Velocity.X, s.Velocity.Y)
}

// A Model answers where an entity is.
type Model interface {
	// Sample returns the state of the entity at time now. The second return
	// value is false if the model knows nothing about the entity.
	Sample(id registry.EntityID, now sim.VTimeInSec) (Sample, bool)
}

// An EntityLister knows the entities it describes up front.
type EntityLister interface {
	Entities() []registry.EntityID
}

// Fixed is a Model in which every listed entity stays where it is.
type Fixed map[registry.EntityID]measure.Vector

// Sample returns the fixed position with zero velocity.
func (f Fixed) Sample(id registry.EntityID, _ sim.VTimeInSec) (Sample, bool) {
	pos, ok := f[id]
	if !ok {
		return Sample{}, false
	}

	return Sample{Position: pos}, true
}

// Entities returns the listed entities in ascending order.
func (f Fixed) Entities() []registry.EntityID {
	ids := make([]registry.EntityID, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
