// Package flow models the cumulative per-flow traffic counters maintained by
// the traffic-statistics collaborator.
package flow

import (
	"fmt"
	"net/netip"
	"sort"
	"sync"
)

// ID identifies a flow.
type ID uint32

// FiveTuple is the classifier key of a flow.
type FiveTuple struct {
	Source          netip.Addr
	Destination     netip.Addr
	SourcePort      uint16
	DestinationPort uint16
	Protocol        uint8
}

func (t FiveTuple) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d (%d)",
		t.Source, t.SourcePort, t.Destination, t.DestinationPort, t.Protocol)
}

// Stats are the counters of one flow, cumulative since the start of the run.
// DelaySum and JitterSum are in seconds.
type Stats struct {
	ID          ID
	Tuple       FiveTuple
	TxBytes     uint64
	RxBytes     uint64
	TxPackets   uint64
	RxPackets   uint64
	LostPackets uint64
	DelaySum    float64
	JitterSum   float64
}

// A Table holds the latest counters of every flow seen so far.
type Table struct {
	lock  sync.RWMutex
	flows map[ID]Stats
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{flows: make(map[ID]Stats)}
}

// Update replaces the counters of a flow.
func (t *Table) Update(s Stats) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.flows[s.ID] = s
}

// Flows returns the current counters of all flows ordered by flow ID.
func (t *Table) Flows() []Stats {
	t.lock.RLock()
	defer t.lock.RUnlock()

	out := make([]Stats, 0, len(t.flows))
	for _, s := range t.flows {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Len returns the number of flows.
func (t *Table) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return len(t.flows)
}
