package simulation

import (
	"database/sql"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hotrace/analysis"
	"github.com/sarchlab/hotrace/config"
	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/mobility"
	"github.com/sarchlab/hotrace/record"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/scenario"
	"github.com/sarchlab/hotrace/sim"
)

const handoverEvents = `# one UE, one handover
{"t":0,"kind":"attach","ue":1,"cell":3}
{"t":0,"kind":"address","ue":1,"addr":"7.0.0.2"}
{"t":2,"kind":"flow","flow":1,"src":"1.0.0.2","dst":"7.0.0.2","src_port":49153,"dst_port":1234,"proto":17,"tx_bytes":1000000,"rx_bytes":1000000,"tx_packets":1000,"rx_packets":1000,"lost_packets":0,"delay_sum":10,"jitter_sum":0.999}
{"t":5,"kind":"measurement_report","ue":1,"cell":3,"rsrp":40,"rsrq":20}
{"t":12,"kind":"handover_complete","ue":1,"cell":7}
`

type collectSink struct {
	records []record.Record
	closed  bool
}

func (s *collectSink) Write(r record.Record) error {
	s.records = append(s.records, r)
	return nil
}

func (s *collectSink) Close() error {
	s.closed = true
	return nil
}

var _ = Describe("Simulation", func() {
	var (
		dir  string
		cfg  config.Config
		sink *collectSink
	)

	entries := func() []scenario.Entry {
		e, err := scenario.Read(strings.NewReader(handoverEvents))
		Expect(err).ToNot(HaveOccurred())
		return e
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		sink = &collectSink{}

		cfg = config.Default()
		cfg.StopTime = 13
		cfg.Output = filepath.Join(dir, "handover_dataset.csv")
		cfg.FlowOutput = filepath.Join(dir, "flow_statistics.csv")
	})

	It("should refuse an invalid configuration", func() {
		cfg.SnapshotInterval = 0

		_, err := MakeBuilder().WithConfig(cfg).Build()

		Expect(err).To(MatchError(config.ErrInvalid))
	})

	It("should refuse a missing mobility trace", func() {
		cfg.MobilityTrace = filepath.Join(dir, "missing.tcl")

		_, err := MakeBuilder().WithConfig(cfg).Build()

		Expect(err).To(MatchError(mobility.ErrTraceNotFound))
		_, statErr := os.Stat(cfg.Output)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})

	It("should refuse a missing events file", func() {
		cfg.EventsFile = filepath.Join(dir, "missing.jsonl")

		_, err := MakeBuilder().WithConfig(cfg).Build()

		Expect(err).To(HaveOccurred())
	})

	Context("when replaying a handover", func() {
		var s *Simulation

		BeforeEach(func() {
			var err error

			s, err = MakeBuilder().
				WithConfig(cfg).
				WithMobility(mobility.Fixed{1: {X: 10, Y: 20}}).
				WithEntries(entries()).
				WithSink(sink).
				Build()
			Expect(err).ToNot(HaveOccurred())

			Expect(s.Run()).To(Succeed())
			Expect(s.Terminate()).To(Succeed())
		})

		It("should emit snapshots and notification rows in time order", func() {
			Expect(sink.records).To(HaveLen(15))
			Expect(sink.closed).To(BeTrue())

			for i := 1; i < len(sink.records); i++ {
				Expect(sink.records[i].Time).To(
					BeNumerically(">=", sink.records[i-1].Time))
			}
		})

		It("should emit the decoded measurement report", func() {
			r := sink.records[4]

			Expect(r.Time).To(Equal(sim.VTimeInSec(5)))
			Expect(r.Kind).To(Equal(record.KindMeasurement))
			Expect(r.New.RSRP).To(Equal(-100.0))
			Expect(r.New.RSRQ).To(Equal(-9.5))
		})

		It("should emit the handover with identical old and new values", func() {
			var handovers []record.Record
			for _, r := range sink.records {
				if r.Kind == record.KindHandover {
					handovers = append(handovers, r)
				}
			}

			Expect(handovers).To(HaveLen(1))
			Expect(handovers[0].Time).To(Equal(sim.VTimeInSec(12)))
			Expect(handovers[0].OldCell).To(Equal(registry.CellID(3)))
			Expect(handovers[0].NewCell).To(Equal(registry.CellID(7)))
			Expect(handovers[0].Old).To(Equal(handovers[0].New))
		})

		It("should place snapshots at the live position and serving cell", func() {
			last := sink.records[len(sink.records)-1]

			Expect(last.Time).To(Equal(sim.VTimeInSec(13)))
			Expect(last.NewCell).To(Equal(registry.CellID(7)))
			Expect(last.OldCell).To(Equal(last.NewCell))
			Expect(last.Position).To(Equal(measure.Vector{X: 10, Y: 20}))
			Expect(last.ThroughputDL).To(BeNumerically("~", 0.64, 1e-9))
		})

		It("should write the primary dataset", func() {
			rows, err := analysis.LoadDataset(cfg.Output)

			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(HaveLen(15))
			Expect(rows[0].RSRPOld).To(BeNil())
		})

		It("should write the flow statistics", func() {
			data, err := os.ReadFile(cfg.FlowOutput)
			Expect(err).ToNot(HaveOccurred())

			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines).To(Equal([]string{
				record.FlowHeader,
				"1,1.0.0.2,7.0.0.2,0.615385,0.615385,1000,1000,0," +
					"10.000000,1.000000",
			}))
		})

		It("should leave the run-average throughput in the cache", func() {
			Expect(s.GetCache().Get(1).ThroughputDL).To(
				BeNumerically("~", 8.0/13.0, 1e-9))
			Expect(s.FlowSummaries()).To(HaveLen(1))
		})
	})

	It("should register the entities of the mobility trace", func() {
		trace := filepath.Join(dir, "mobility.tcl")
		Expect(os.WriteFile(trace, []byte(
			"$node_(0) set X_ 10.00\n"+
				"$node_(0) set Y_ 20.00\n"+
				"$node_(1) set X_ 30.00\n"+
				"$node_(1) set Y_ 40.00\n"), 0o644)).To(Succeed())

		cfg.MobilityTrace = trace
		cfg.StopTime = 2

		s, err := MakeBuilder().
			WithConfig(cfg).
			WithEntries(nil).
			WithSink(sink).
			Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.GetRegistry().Entities()).To(
			Equal([]registry.EntityID{1, 2}))

		Expect(s.Run()).To(Succeed())
		Expect(s.Terminate()).To(Succeed())

		Expect(sink.records).To(HaveLen(4))
		Expect(sink.records[1].Entity).To(Equal(registry.EntityID(2)))
		Expect(sink.records[1].Position).To(Equal(measure.Vector{X: 30, Y: 40}))
		Expect(sink.records[1].NewCell).To(Equal(registry.NoCell))
	})

	It("should mirror the datasets into SQLite", func() {
		cfg.SQLite = filepath.Join(dir, "run.sqlite3")

		s, err := MakeBuilder().
			WithConfig(cfg).
			WithMobility(mobility.Fixed{1: {X: 10, Y: 20}}).
			WithEntries(entries()).
			Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Run()).To(Succeed())
		Expect(s.Terminate()).To(Succeed())

		db, err := sql.Open("sqlite3", cfg.SQLite)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		var rows, flows int
		Expect(db.QueryRow("SELECT COUNT(*) FROM " + record.DatasetTable).
			Scan(&rows)).To(Succeed())
		Expect(db.QueryRow("SELECT COUNT(*) FROM " + record.FlowStatsTable).
			Scan(&flows)).To(Succeed())
		Expect(rows).To(Equal(15))
		Expect(flows).To(Equal(1))
	})

	It("should serve metrics while monitoring", func() {
		cfg.Monitor = true

		s, err := MakeBuilder().
			WithConfig(cfg).
			WithMobility(mobility.Fixed{1: {X: 10, Y: 20}}).
			WithEntries(entries()).
			Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.GetMonitor()).ToNot(BeNil())
		Expect(s.MonitorURL()).To(HavePrefix("http://localhost:"))

		Expect(s.Run()).To(Succeed())

		rsp, err := http.Get(s.MonitorURL() + "/metrics")
		Expect(err).ToNot(HaveOccurred())
		body, err := io.ReadAll(rsp.Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(rsp.Body.Close()).To(Succeed())

		Expect(string(body)).To(
			ContainSubstring(`hotrace_records_total{type="HANDOVER"} 1`))
		Expect(string(body)).To(
			ContainSubstring(`hotrace_notifications_total{kind="attach"} 1`))

		Expect(s.Terminate()).To(Succeed())
	})
})
