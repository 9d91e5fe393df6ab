package mobility

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/sarchlab/hotrace/sim"
)

// A Vehicle is one vehicle state in a SUMO floating car data timestep.
type Vehicle struct {
	ID    string  `xml:"id,attr"`
	X     float64 `xml:"x,attr"`
	Y     float64 `xml:"y,attr"`
	Speed float64 `xml:"speed,attr"`
	Angle float64 `xml:"angle,attr"`
}

// A Timestep lists the vehicles present at one time.
type Timestep struct {
	Time     float64   `xml:"time,attr"`
	Vehicles []Vehicle `xml:"vehicle"`
}

// FCD is a SUMO floating car data export.
type FCD struct {
	Timesteps []Timestep
}

type fcdDocument struct {
	XMLName   xml.Name
	Time      float64    `xml:"time,attr"`
	Timesteps []Timestep `xml:"timestep"`
	Vehicles  []Vehicle  `xml:"vehicle"`
}

// ReadFCD decodes an FCD document. Both an <fcd-export> root and a single
// <timestep> root are accepted.
func ReadFCD(r io.Reader) (*FCD, error) {
	var doc fcdDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding FCD: %w", err)
	}

	if doc.XMLName.Local == "timestep" {
		return &FCD{Timesteps: []Timestep{
			{Time: doc.Time, Vehicles: doc.Vehicles},
		}}, nil
	}

	return &FCD{Timesteps: doc.Timesteps}, nil
}

// LoadFCD reads the FCD file at path.
func LoadFCD(path string) (*FCD, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, path)
	}

	if err != nil {
		return nil, err
	}

	defer f.Close()

	return ReadFCD(f)
}

type vehiclePoint struct {
	time float64
	Vehicle
}

// VehicleIDs returns the vehicle ids in lexicographic order. The position of
// an id in the list is its node index in the converted trace.
func (d *FCD) VehicleIDs() []string {
	ids := make([]string, 0, len(d.byVehicle()))
	for id := range d.byVehicle() {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func (d *FCD) byVehicle() map[string][]vehiclePoint {
	points := make(map[string][]vehiclePoint)

	for _, ts := range d.Timesteps {
		for _, v := range ts.Vehicles {
			points[v.ID] = append(points[v.ID], vehiclePoint{ts.Time, v})
		}
	}

	return points
}

// ToTrace converts the vehicle movements into an ns-2 trace. Every vehicle
// starts at its first recorded position and then heads to each later point
// it reaches while moving.
func (d *FCD) ToTrace(source string) *Trace {
	points := d.byVehicle()
	ids := d.VehicleIDs()

	trace := &Trace{Comments: []string{
		"SUMO trace converted to ns3 format",
		"Generated from: " + source,
		"Vehicle ID mappings:",
	}}

	for idx, id := range ids {
		trace.Comments = append(trace.Comments,
			fmt.Sprintf("%s -> Node %d", id, idx))
	}

	for idx, id := range ids {
		data := points[id]
		sort.SliceStable(data, func(i, j int) bool {
			return data[i].time < data[j].time
		})

		first := data[0]
		trace.Commands = append(trace.Commands,
			Command{Node: idx, Op: OpSetX, Value: first.X},
			Command{Node: idx, Op: OpSetY, Value: first.Y},
			Command{Node: idx, Op: OpSetZ, Value: 1.5},
			setDest(idx, first),
		)

		for i := 1; i < len(data); i++ {
			dt := data[i].time - data[i-1].time
			if dt > 0 && data[i].Speed > 0 {
				trace.Commands = append(trace.Commands, setDest(idx, data[i]))
			}
		}
	}

	return trace
}

func setDest(node int, p vehiclePoint) Command {
	return Command{
		Timed: true,
		Time:  sim.VTimeInSec(p.time),
		Node:  node,
		Op:    OpSetDest,
		DestX: p.X,
		DestY: p.Y,
		Speed: p.Speed,
	}
}

// WriteCSV writes one row per vehicle sample.
func (d *FCD) WriteCSV(w io.Writer) error {
	var b strings.Builder

	b.WriteString("Time,VehicleID,X,Y,Speed,Angle\n")

	for _, ts := range d.Timesteps {
		for _, v := range ts.Vehicles {
			fmt.Fprintf(&b, "%.2f,%s,%.2f,%.2f,%.2f,%.2f\n",
				ts.Time, v.ID, v.X, v.Y, v.Speed, v.Angle)
		}
	}

	_, err := io.WriteString(w, b.String())

	return err
}
