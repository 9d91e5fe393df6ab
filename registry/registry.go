// Package registry keeps track of the simulated mobile terminals and the
// secondary keys that refer to them.
package registry

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
)

// EntityID is the stable identity of a mobile terminal (the IMSI).
type EntityID uint64

// CellID identifies a base station cell. NoCell means no serving cell.
type CellID uint16

// NoCell is the serving cell of an entity that is not attached.
const NoCell CellID = 0

var (
	// ErrAddressBound is returned when an address is already bound to
	// another entity.
	ErrAddressBound = errors.New("address already bound to another entity")

	// ErrEntityBound is returned when an entity already has a different
	// address.
	ErrEntityBound = errors.New("entity already bound to another address")
)

type entry struct {
	servingCell CellID
	tracked     bool
	address     netip.Addr
}

// A Registry maps entities to their serving cell and network address.
//
// Entities are created on first sight and never removed during a run. All
// methods are safe for concurrent use.
type Registry struct {
	lock      sync.RWMutex
	entities  map[EntityID]*entry
	byAddress map[netip.Addr]EntityID
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entities:  make(map[EntityID]*entry),
		byAddress: make(map[netip.Addr]EntityID),
	}
}

// Resolve turns a radio-layer identifier into an EntityID. Radio-layer
// identifiers already are the stable identity, so this is the identity
// function.
func (r *Registry) Resolve(lowLevelID uint64) EntityID {
	return EntityID(lowLevelID)
}

func (r *Registry) mustGetEntry(id EntityID) *entry {
	e, ok := r.entities[id]
	if !ok {
		e = &entry{}
		r.entities[id] = e
	}

	return e
}

// Register makes sure the entity exists. It has no effect on an entity that
// is already known.
func (r *Registry) Register(id EntityID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.mustGetEntry(id)
}

// Contains tells if the entity is known.
func (r *Registry) Contains(id EntityID) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, ok := r.entities[id]
	return ok
}

// SetServingCell records the current serving cell of an entity, creating the
// entity if needed.
func (r *Registry) SetServingCell(id EntityID, cell CellID) {
	r.lock.Lock()
	defer r.lock.Unlock()

	e := r.mustGetEntry(id)
	e.servingCell = cell
	e.tracked = true
}

// SeedServingCell sets the serving cell only if none has been tracked for
// the entity yet. It returns true if the value was taken.
func (r *Registry) SeedServingCell(id EntityID, cell CellID) bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	e := r.mustGetEntry(id)
	if e.tracked {
		return false
	}

	e.servingCell = cell
	e.tracked = true

	return true
}

// ServingCell returns the tracked serving cell. The second return value is
// false if no cell has ever been tracked for the entity, in which case the
// cell is NoCell.
func (r *Registry) ServingCell(id EntityID) (CellID, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	e, ok := r.entities[id]
	if !ok || !e.tracked {
		return NoCell, false
	}

	return e.servingCell, true
}

// Bind associates an address with an entity. Binding the same pair again is
// not an error.
func (r *Registry) Bind(addr netip.Addr, id EntityID) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if owner, ok := r.byAddress[addr]; ok {
		if owner == id {
			return nil
		}

		return fmt.Errorf("binding %s to entity %d: %w (entity %d)",
			addr, id, ErrAddressBound, owner)
	}

	e := r.mustGetEntry(id)
	if e.address.IsValid() {
		return fmt.Errorf("binding %s to entity %d: %w (%s)",
			addr, id, ErrEntityBound, e.address)
	}

	e.address = addr
	r.byAddress[addr] = id

	return nil
}

// LookupByAddress returns the entity bound to the address. The second return
// value is false if the address is unbound.
func (r *Registry) LookupByAddress(addr netip.Addr) (EntityID, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	id, ok := r.byAddress[addr]
	return id, ok
}

// Address returns the address bound to the entity, if any.
func (r *Registry) Address(id EntityID) (netip.Addr, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	e, ok := r.entities[id]
	if !ok || !e.address.IsValid() {
		return netip.Addr{}, false
	}

	return e.address, true
}

// Entities returns all the known entities in ascending order.
func (r *Registry) Entities() []EntityID {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ids := make([]EntityID, 0, len(r.entities))
	for id := range r.entities {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Len returns the number of known entities.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.entities)
}
