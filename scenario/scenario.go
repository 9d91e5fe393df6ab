// Package scenario reads recorded notification logs and replays them on an
// engine.
//
// A log is a JSON Lines file. Every line carries the time of the entry in
// "t" and the entry kind in "kind"; the other fields depend on the kind.
// Blank lines and lines starting with "#" are skipped.
package scenario

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/sarchlab/hotrace/correlator"
	"github.com/sarchlab/hotrace/flow"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// ErrUnknownKind is returned for a log entry of an unknown kind.
var ErrUnknownKind = errors.New("unknown entry kind")

// KindFlow is the kind of flow counter entries.
const KindFlow = "flow"

// An Entry is one decoded line of a log. Exactly one of Notification and Flow
// is set.
type Entry struct {
	Time         sim.VTimeInSec
	Notification correlator.Notification
	Flow         *flow.Stats
}

type line struct {
	T    *float64 `json:"t"`
	Kind string   `json:"kind"`

	UE     uint64 `json:"ue"`
	Cell   uint16 `json:"cell"`
	Target uint16 `json:"target"`

	RSRP    uint8   `json:"rsrp"`
	RSRQ    uint8   `json:"rsrq"`
	RSRPDbm float64 `json:"rsrp_dbm"`
	RSRQDb  float64 `json:"rsrq_db"`
	SINRDb  float64 `json:"sinr_db"`
	Serving bool    `json:"serving"`

	Addr string `json:"addr"`

	Flow        uint32  `json:"flow"`
	Src         string  `json:"src"`
	Dst         string  `json:"dst"`
	SrcPort     uint16  `json:"src_port"`
	DstPort     uint16  `json:"dst_port"`
	Proto       uint8   `json:"proto"`
	TxBytes     uint64  `json:"tx_bytes"`
	RxBytes     uint64  `json:"rx_bytes"`
	TxPackets   uint64  `json:"tx_packets"`
	RxPackets   uint64  `json:"rx_packets"`
	LostPackets uint64  `json:"lost_packets"`
	DelaySum    float64 `json:"delay_sum"`
	JitterSum   float64 `json:"jitter_sum"`
}

// Read decodes all entries of a log.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}

		entry, err := decodeLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Load decodes the log stored in the file at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	entries, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return entries, nil
}

func decodeLine(raw []byte) (Entry, error) {
	var l line

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&l); err != nil {
		return Entry{}, err
	}

	if l.T == nil {
		return Entry{}, errors.New("missing time")
	}

	if *l.T < 0 {
		return Entry{}, fmt.Errorf("negative time %g", *l.T)
	}

	entry := Entry{Time: sim.VTimeInSec(*l.T)}

	if l.Kind == KindFlow {
		s, err := l.flowStats()
		if err != nil {
			return Entry{}, err
		}

		entry.Flow = &s

		return entry, nil
	}

	n, err := l.notification()
	if err != nil {
		return Entry{}, err
	}

	entry.Notification = n

	return entry, nil
}

func (l line) notification() (correlator.Notification, error) {
	ue := registry.EntityID(l.UE)
	cell := registry.CellID(l.Cell)

	switch l.Kind {
	case "attach":
		return correlator.Attachment{Entity: ue, Cell: cell}, nil
	case "handover_start":
		return correlator.HandoverStart{
			Entity:   ue,
			FromCell: cell,
			ToCell:   registry.CellID(l.Target),
		}, nil
	case "handover_complete":
		return correlator.HandoverComplete{Entity: ue, NewCell: cell}, nil
	case "measurement_report":
		return correlator.MeasurementReport{
			Entity:      ue,
			Cell:        cell,
			EncodedRSRP: l.RSRP,
			EncodedRSRQ: l.RSRQ,
		}, nil
	case "ue_measurement":
		return correlator.UEMeasurement{
			Entity:      ue,
			Cell:        cell,
			RSRP:        l.RSRPDbm,
			RSRQ:        l.RSRQDb,
			ServingCell: l.Serving,
		}, nil
	case "phy":
		return correlator.PhySample{Cell: cell, RSRP: l.RSRPDbm, SINR: l.SINRDb}, nil
	case "address":
		addr, err := netip.ParseAddr(l.Addr)
		if err != nil {
			return nil, err
		}

		return correlator.AddressAssigned{Entity: ue, Address: addr}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, l.Kind)
	}
}

func (l line) flowStats() (flow.Stats, error) {
	src, err := netip.ParseAddr(l.Src)
	if err != nil {
		return flow.Stats{}, fmt.Errorf("flow %d source: %w", l.Flow, err)
	}

	dst, err := netip.ParseAddr(l.Dst)
	if err != nil {
		return flow.Stats{}, fmt.Errorf("flow %d destination: %w", l.Flow, err)
	}

	return flow.Stats{
		ID: flow.ID(l.Flow),
		Tuple: flow.FiveTuple{
			Source:          src,
			Destination:     dst,
			SourcePort:      l.SrcPort,
			DestinationPort: l.DstPort,
			Protocol:        l.Proto,
		},
		TxBytes:     l.TxBytes,
		RxBytes:     l.RxBytes,
		TxPackets:   l.TxPackets,
		RxPackets:   l.RxPackets,
		LostPackets: l.LostPackets,
		DelaySum:    l.DelaySum,
		JitterSum:   l.JitterSum,
	}, nil
}

// Schedule puts every entry on the engine. Notifications are delivered to
// handler and flow entries update the table. Entries with the same time are
// delivered in log order.
func Schedule(
	engine sim.EventScheduler,
	entries []Entry,
	handler sim.Handler,
	flows *flow.Table,
) {
	for _, e := range entries {
		if e.Flow != nil {
			s := *e.Flow
			sim.ScheduleAt(engine, e.Time, func(sim.VTimeInSec) error {
				flows.Update(s)
				return nil
			})

			continue
		}

		engine.Schedule(correlator.NewNotificationEvent(e.Time, handler, e.Notification))
	}
}
