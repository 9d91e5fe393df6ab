package record

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/hotrace/flow"
)

// DatasetHeader is the header line of the primary dataset.
const DatasetHeader = "Time,UE_ID,Old_gNB_ID,New_gNB_ID,RSRP_Old,RSRP_New," +
	"RSRQ_Old,RSRQ_New,SINR_Old,SINR_New,Throughput_DL,Throughput_UL," +
	"X_Position,Y_Position,Speed,Handover_Type"

// FlowHeader is the header line of the flow statistics dataset.
const FlowHeader = "Flow_ID,Source,Destination,Throughput_DL_Mbps," +
	"Throughput_UL_Mbps,Packets_Sent,Packets_Received,Packets_Lost," +
	"Delay_Mean_ms,Jitter_ms"

func appendFixed(buf []byte, v float64) []byte {
	return strconv.AppendFloat(buf, v, 'f', 6, 64)
}

// AppendRow formats a record as one dataset line, including the newline.
func AppendRow(buf []byte, r Record) []byte {
	buf = appendFixed(buf, float64(r.Time))
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, uint64(r.Entity), 10)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, uint64(r.OldCell), 10)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, uint64(r.NewCell), 10)

	pairs := [][2]float64{
		{r.Old.RSRP, r.New.RSRP},
		{r.Old.RSRQ, r.New.RSRQ},
		{r.Old.SINR, r.New.SINR},
	}
	for _, p := range pairs {
		buf = append(buf, ',')
		if r.Kind == KindHandover {
			buf = appendFixed(buf, p[0])
		}
		buf = append(buf, ',')
		buf = appendFixed(buf, p[1])
	}

	for _, v := range []float64{
		r.ThroughputDL, r.ThroughputUL, r.Position.X, r.Position.Y, r.Speed,
	} {
		buf = append(buf, ',')
		buf = appendFixed(buf, v)
	}

	buf = append(buf, ',')
	buf = append(buf, r.Kind.String()...)
	buf = append(buf, '\n')

	return buf
}

// CSVWriter writes the primary dataset. Every record is formatted completely
// and handed to the underlying writer in a single Write, then flushed.
type CSVWriter struct {
	lock   sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	buf    []byte
	closed bool
}

// NewCSVWriter writes the header to w and returns a writer for the rows.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	c := &CSVWriter{
		w:   bufio.NewWriter(w),
		buf: make([]byte, 0, 256),
	}

	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}

	if _, err := c.w.WriteString(DatasetHeader + "\n"); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	if err := c.w.Flush(); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	return c, nil
}

// CreateCSV creates (or truncates) the dataset file at path. The file is
// flushed and closed at exit if the caller does not close it first.
func CreateCSV(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating dataset: %w", err)
	}

	c, err := NewCSVWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	atexit.Register(func() { _ = c.Close() })

	return c, nil
}

// Write appends one row.
func (c *CSVWriter) Write(r Record) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.buf = AppendRow(c.buf[:0], r)

	if _, err := c.w.Write(c.buf); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("flushing record: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer if it is closable.
func (c *CSVWriter) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	if err := c.w.Flush(); err != nil {
		return err
	}

	if c.closer != nil {
		return c.closer.Close()
	}

	return nil
}

// AppendFlowRow formats one flow statistics line, including the newline.
func AppendFlowRow(buf []byte, s flow.Summary) []byte {
	buf = strconv.AppendUint(buf, uint64(s.ID), 10)
	buf = append(buf, ',')
	buf = append(buf, s.Source.String()...)
	buf = append(buf, ',')
	buf = append(buf, s.Destination.String()...)
	buf = append(buf, ',')
	buf = appendFixed(buf, s.ThroughputDLMbps)
	buf = append(buf, ',')
	buf = appendFixed(buf, s.ThroughputULMbps)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, s.PacketsSent, 10)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, s.PacketsReceived, 10)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, s.PacketsLost, 10)
	buf = append(buf, ',')
	buf = appendFixed(buf, s.DelayMeanMs)
	buf = append(buf, ',')
	if s.HasJitter {
		buf = appendFixed(buf, s.JitterMeanMs)
	}
	buf = append(buf, '\n')

	return buf
}

// WriteFlowStats writes the flow statistics dataset to w.
func WriteFlowStats(w io.Writer, rows []flow.Summary) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(FlowHeader + "\n"); err != nil {
		return err
	}

	buf := make([]byte, 0, 128)
	for _, s := range rows {
		buf = AppendFlowRow(buf[:0], s)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// CreateFlowStats writes the flow statistics dataset into the file at path.
func CreateFlowStats(path string, rows []flow.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating flow statistics: %w", err)
	}

	if err := WriteFlowStats(f, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing flow statistics: %w", err)
	}

	return f.Close()
}
