package record

import (
	"fmt"
	"sync"

	"github.com/sarchlab/hotrace/datarecording"
	"github.com/sarchlab/hotrace/flow"
)

// Table names used in the SQLite mirror.
const (
	DatasetTable   = "handover_dataset"
	FlowStatsTable = "flow_statistics"
)

type datasetRow struct {
	Time          float64
	UE_ID         uint64
	Old_gNB_ID    uint16
	New_gNB_ID    uint16
	RSRP_Old      *float64
	RSRP_New      float64
	RSRQ_Old      *float64
	RSRQ_New      float64
	SINR_Old      *float64
	SINR_New      float64
	Throughput_DL float64
	Throughput_UL float64
	X_Position    float64
	Y_Position    float64
	Speed         float64
	Handover_Type string
}

type flowRow struct {
	Flow_ID            uint32
	Source             string
	Destination        string
	Throughput_DL_Mbps float64
	Throughput_UL_Mbps float64
	Packets_Sent       uint64
	Packets_Received   uint64
	Packets_Lost       uint64
	Delay_Mean_ms      float64
	Jitter_ms          *float64
}

func toDatasetRow(r Record) datasetRow {
	row := datasetRow{
		Time:          float64(r.Time),
		UE_ID:         uint64(r.Entity),
		Old_gNB_ID:    uint16(r.OldCell),
		New_gNB_ID:    uint16(r.NewCell),
		RSRP_New:      r.New.RSRP,
		RSRQ_New:      r.New.RSRQ,
		SINR_New:      r.New.SINR,
		Throughput_DL: r.ThroughputDL,
		Throughput_UL: r.ThroughputUL,
		X_Position:    r.Position.X,
		Y_Position:    r.Position.Y,
		Speed:         r.Speed,
		Handover_Type: r.Kind.String(),
	}

	if r.Kind == KindHandover {
		old := r.Old
		row.RSRP_Old = &old.RSRP
		row.RSRQ_Old = &old.RSRQ
		row.SINR_Old = &old.SINR
	}

	return row
}

// SQLiteSink mirrors the datasets into SQLite tables. Rows are buffered by
// the recorder and written in batches.
type SQLiteSink struct {
	lock     sync.Mutex
	recorder datarecording.DataRecorder
	flowsOn  bool
	closed   bool
}

// NewSQLiteSink creates the dataset table in the recorder.
func NewSQLiteSink(recorder datarecording.DataRecorder) (*SQLiteSink, error) {
	if err := recorder.CreateTable(DatasetTable, datasetRow{}); err != nil {
		return nil, fmt.Errorf("creating %s: %w", DatasetTable, err)
	}

	return &SQLiteSink{recorder: recorder}, nil
}

// Write buffers one record.
func (s *SQLiteSink) Write(r Record) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrClosed
	}

	return s.recorder.InsertData(DatasetTable, toDatasetRow(r))
}

// WriteFlowStats stores the flow statistics rows.
func (s *SQLiteSink) WriteFlowStats(rows []flow.Summary) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrClosed
	}

	if !s.flowsOn {
		if err := s.recorder.CreateTable(FlowStatsTable, flowRow{}); err != nil {
			return fmt.Errorf("creating %s: %w", FlowStatsTable, err)
		}

		s.flowsOn = true
	}

	for _, f := range rows {
		row := flowRow{
			Flow_ID:            uint32(f.ID),
			Source:             f.Source.String(),
			Destination:        f.Destination.String(),
			Throughput_DL_Mbps: f.ThroughputDLMbps,
			Throughput_UL_Mbps: f.ThroughputULMbps,
			Packets_Sent:       f.PacketsSent,
			Packets_Received:   f.PacketsReceived,
			Packets_Lost:       f.PacketsLost,
			Delay_Mean_ms:      f.DelayMeanMs,
		}

		if f.HasJitter {
			jitter := f.JitterMeanMs
			row.Jitter_ms = &jitter
		}

		if err := s.recorder.InsertData(FlowStatsTable, row); err != nil {
			return err
		}
	}

	return s.recorder.Flush()
}

// Flush writes the buffered rows.
func (s *SQLiteSink) Flush() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.recorder.Flush()
}

// Close flushes and closes the recorder.
func (s *SQLiteSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.recorder.Close()
}
