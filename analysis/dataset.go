// Package analysis summarizes the datasets produced by a run.
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// A Row is one parsed row of the primary dataset. The Old values are nil
// when the columns are empty.
type Row struct {
	Time         float64
	UE           uint64
	OldCell      uint16
	NewCell      uint16
	RSRPOld      *float64
	RSRPNew      float64
	RSRQOld      *float64
	RSRQNew      float64
	SINROld      *float64
	SINRNew      float64
	ThroughputDL float64
	ThroughputUL float64
	X            float64
	Y            float64
	Speed        float64
	Type         string
}

// IsHandover tells if the row is a HANDOVER row.
func (r Row) IsHandover() bool {
	return r.Type == "HANDOVER"
}

// A FlowRow is one parsed row of the flow statistics dataset.
type FlowRow struct {
	ID               uint32
	Source           string
	Destination      string
	ThroughputDLMbps float64
	ThroughputULMbps float64
	PacketsSent      uint64
	PacketsReceived  uint64
	PacketsLost      uint64
	DelayMeanMs      float64
	JitterMs         *float64
}

type columns struct {
	index  map[string]int
	record []string
	err    error
}

func newColumns(header []string) *columns {
	c := &columns{index: make(map[string]int, len(header))}
	for i, name := range header {
		c.index[name] = i
	}

	return c
}

func (c *columns) require(names ...string) error {
	for _, n := range names {
		if _, ok := c.index[n]; !ok {
			return fmt.Errorf("missing column %s", n)
		}
	}

	return nil
}

func (c *columns) raw(name string) string {
	return c.record[c.index[name]]
}

func (c *columns) float(name string) float64 {
	v, err := strconv.ParseFloat(c.raw(name), 64)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("column %s: %w", name, err)
	}

	return v
}

func (c *columns) optionalFloat(name string) *float64 {
	if c.raw(name) == "" {
		return nil
	}

	v := c.float(name)

	return &v
}

func (c *columns) uint(name string, bits int) uint64 {
	v, err := strconv.ParseUint(c.raw(name), 10, bits)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("column %s: %w", name, err)
	}

	return v
}

func readCSV(
	r io.Reader,
	required []string,
	row func(c *columns),
) error {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	cols := newColumns(header)
	if err := cols.require(required...); err != nil {
		return err
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}

		line++

		if err != nil {
			return err
		}

		cols.record = record
		row(cols)

		if cols.err != nil {
			return fmt.Errorf("line %d: %w", line, cols.err)
		}
	}
}

var datasetColumns = []string{
	"Time", "UE_ID", "Old_gNB_ID", "New_gNB_ID",
	"RSRP_Old", "RSRP_New", "RSRQ_Old", "RSRQ_New", "SINR_Old", "SINR_New",
	"Throughput_DL", "Throughput_UL", "X_Position", "Y_Position", "Speed",
	"Handover_Type",
}

// ReadDataset parses a primary dataset. Columns are matched by name.
func ReadDataset(r io.Reader) ([]Row, error) {
	var rows []Row

	err := readCSV(r, datasetColumns, func(c *columns) {
		rows = append(rows, Row{
			Time:         c.float("Time"),
			UE:           c.uint("UE_ID", 64),
			OldCell:      uint16(c.uint("Old_gNB_ID", 16)),
			NewCell:      uint16(c.uint("New_gNB_ID", 16)),
			RSRPOld:      c.optionalFloat("RSRP_Old"),
			RSRPNew:      c.float("RSRP_New"),
			RSRQOld:      c.optionalFloat("RSRQ_Old"),
			RSRQNew:      c.float("RSRQ_New"),
			SINROld:      c.optionalFloat("SINR_Old"),
			SINRNew:      c.float("SINR_New"),
			ThroughputDL: c.float("Throughput_DL"),
			ThroughputUL: c.float("Throughput_UL"),
			X:            c.float("X_Position"),
			Y:            c.float("Y_Position"),
			Speed:        c.float("Speed"),
			Type:         c.raw("Handover_Type"),
		})
	})

	return rows, err
}

var flowColumns = []string{
	"Flow_ID", "Source", "Destination",
	"Throughput_DL_Mbps", "Throughput_UL_Mbps",
	"Packets_Sent", "Packets_Received", "Packets_Lost",
	"Delay_Mean_ms", "Jitter_ms",
}

// ReadFlows parses a flow statistics dataset.
func ReadFlows(r io.Reader) ([]FlowRow, error) {
	var rows []FlowRow

	err := readCSV(r, flowColumns, func(c *columns) {
		rows = append(rows, FlowRow{
			ID:               uint32(c.uint("Flow_ID", 32)),
			Source:           c.raw("Source"),
			Destination:      c.raw("Destination"),
			ThroughputDLMbps: c.float("Throughput_DL_Mbps"),
			ThroughputULMbps: c.float("Throughput_UL_Mbps"),
			PacketsSent:      c.uint("Packets_Sent", 64),
			PacketsReceived:  c.uint("Packets_Received", 64),
			PacketsLost:      c.uint("Packets_Lost", 64),
			DelayMeanMs:      c.float("Delay_Mean_ms"),
			JitterMs:         c.optionalFloat("Jitter_ms"),
		})
	})

	return rows, err
}

// LoadDataset reads the primary dataset file at path.
func LoadDataset(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	rows, err := ReadDataset(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return rows, nil
}

// LoadFlows reads the flow statistics file at path.
func LoadFlows(path string) ([]FlowRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	rows, err := ReadFlows(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return rows, nil
}
