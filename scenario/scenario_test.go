package scenario_test

import (
	"errors"
	"net/netip"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hotrace/correlator"
	"github.com/sarchlab/hotrace/flow"
	"github.com/sarchlab/hotrace/scenario"
	"github.com/sarchlab/hotrace/sim"
)

const sampleLog = `# recorded run
{"t": 0, "kind": "attach", "ue": 1, "cell": 3}
{"t": 0.1, "kind": "address", "ue": 1, "addr": "7.0.0.2"}

{"t": 2, "kind": "phy", "cell": 3, "rsrp_dbm": -95.5, "sinr_db": 11}
{"t": 5, "kind": "measurement_report", "ue": 1, "cell": 3, "rsrp": 40, "rsrq": 20}
{"t": 6, "kind": "ue_measurement", "ue": 1, "cell": 4, "rsrp_dbm": -99, "rsrq_db": -12, "serving": false}
{"t": 11, "kind": "handover_start", "ue": 1, "cell": 3, "target": 7}
{"t": 12, "kind": "handover_complete", "ue": 1, "cell": 7}
{"t": 12.5, "kind": "flow", "flow": 1, "src": "1.0.0.2", "dst": "7.0.0.2", "src_port": 49153, "dst_port": 1234, "proto": 17, "tx_bytes": 2000, "rx_bytes": 1800, "tx_packets": 2, "rx_packets": 2, "lost_packets": 0, "delay_sum": 0.02, "jitter_sum": 0.001}
`

var _ = Describe("Read", func() {
	It("should decode every kind", func() {
		entries, err := scenario.Read(strings.NewReader(sampleLog))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(8))

		Expect(entries[0]).To(Equal(scenario.Entry{
			Time:         0,
			Notification: correlator.Attachment{Entity: 1, Cell: 3},
		}))
		Expect(entries[1].Notification).To(Equal(correlator.AddressAssigned{
			Entity: 1, Address: netip.MustParseAddr("7.0.0.2"),
		}))
		Expect(entries[2].Notification).To(Equal(correlator.PhySample{
			Cell: 3, RSRP: -95.5, SINR: 11,
		}))
		Expect(entries[3].Notification).To(Equal(correlator.MeasurementReport{
			Entity: 1, Cell: 3, EncodedRSRP: 40, EncodedRSRQ: 20,
		}))
		Expect(entries[4].Notification).To(Equal(correlator.UEMeasurement{
			Entity: 1, Cell: 4, RSRP: -99, RSRQ: -12,
		}))
		Expect(entries[5].Notification).To(Equal(correlator.HandoverStart{
			Entity: 1, FromCell: 3, ToCell: 7,
		}))
		Expect(entries[6].Notification).To(Equal(correlator.HandoverComplete{
			Entity: 1, NewCell: 7,
		}))

		f := entries[7]
		Expect(f.Notification).To(BeNil())
		Expect(f.Time).To(Equal(sim.VTimeInSec(12.5)))
		Expect(f.Flow.ID).To(Equal(flow.ID(1)))
		Expect(f.Flow.Tuple.SourcePort).To(Equal(uint16(49153)))
		Expect(f.Flow.Tuple.Destination).To(Equal(netip.MustParseAddr("7.0.0.2")))
		Expect(f.Flow.RxBytes).To(Equal(uint64(1800)))
		Expect(f.Flow.JitterSum).To(Equal(0.001))
	})

	It("should name the line of an unknown kind", func() {
		_, err := scenario.Read(strings.NewReader(
			"{\"t\": 0, \"kind\": \"attach\", \"ue\": 1, \"cell\": 1}\n" +
				"{\"t\": 1, \"kind\": \"teleport\", \"ue\": 1}\n"))

		Expect(errors.Is(err, scenario.ErrUnknownKind)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("line 2"))
	})

	It("should reject entries without a time", func() {
		_, err := scenario.Read(strings.NewReader(`{"kind": "attach"}`))

		Expect(err).To(MatchError(ContainSubstring("missing time")))
	})

	It("should reject an encoded RSRP out of range", func() {
		_, err := scenario.Read(strings.NewReader(
			`{"t": 1, "kind": "measurement_report", "ue": 1, "cell": 1, "rsrp": 300, "rsrq": 1}`))

		Expect(err).To(HaveOccurred())
	})

	It("should reject malformed addresses", func() {
		_, err := scenario.Read(strings.NewReader(
			`{"t": 1, "kind": "address", "ue": 1, "addr": "nowhere"}`))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Schedule", func() {
	It("should deliver notifications in order and update flows", func() {
		entries, err := scenario.Read(strings.NewReader(sampleLog))
		Expect(err).NotTo(HaveOccurred())

		engine := sim.NewSerialEngine()
		table := flow.NewTable()

		var kinds []string
		handler := sim.HandlerFunc(func(e sim.Event) error {
			evt := e.(correlator.NotificationEvent)
			kinds = append(kinds, correlator.KindName(evt.Payload))
			return nil
		})

		scenario.Schedule(engine, entries, handler, table)
		Expect(engine.Run()).To(Succeed())

		Expect(kinds).To(Equal([]string{
			"attach", "address", "phy", "measurement_report",
			"ue_measurement", "handover_start", "handover_complete",
		}))
		Expect(table.Len()).To(Equal(1))
		Expect(engine.CurrentTime()).To(Equal(sim.VTimeInSec(12.5)))
	})

	It("should not deliver entries after the stop time", func() {
		entries, err := scenario.Read(strings.NewReader(sampleLog))
		Expect(err).NotTo(HaveOccurred())

		engine := sim.NewSerialEngine()
		engine.StopAt(10)
		table := flow.NewTable()

		count := 0
		handler := sim.HandlerFunc(func(sim.Event) error {
			count++
			return nil
		})

		scenario.Schedule(engine, entries, handler, table)
		Expect(engine.Run()).To(Succeed())

		Expect(count).To(Equal(5))
		Expect(table.Len()).To(Equal(0))
	})
})
