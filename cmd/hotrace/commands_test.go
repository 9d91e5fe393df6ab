package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/hotrace/analysis"
)

const fcdExport = `<fcd-export>
  <timestep time="0.00">
    <vehicle id="veh0" x="0.0" y="0.0" speed="0.0" angle="90.0"/>
  </timestep>
  <timestep time="1.00">
    <vehicle id="veh0" x="10.0" y="0.0" speed="10.0" angle="90.0"/>
  </timestep>
</fcd-export>`

const events = `{"t":0,"kind":"attach","ue":1,"cell":1}
{"t":1.5,"kind":"handover_complete","ue":1,"cell":2}
`

var _ = Describe("Commands", func() {
	var (
		dir string
		out *bytes.Buffer
	)

	execute := func(args ...string) error {
		rootCmd.SetArgs(args)
		return rootCmd.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = bytes.NewBuffer(nil)
		rootCmd.SetOut(out)
	})

	It("should print the version", func() {
		Expect(execute("version")).To(Succeed())
		Expect(out.String()).To(Equal("hotrace dev\n"))
	})

	It("should convert an FCD export to an ns-2 trace", func() {
		in := filepath.Join(dir, "fcd.xml")
		Expect(os.WriteFile(in, []byte(fcdExport), 0o644)).To(Succeed())
		dst := filepath.Join(dir, "mobility.tcl")

		Expect(execute("convert", in, dst)).To(Succeed())

		data, err := os.ReadFile(dst)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`$node_(0) set X_ 0.00`))
		Expect(string(data)).To(
			ContainSubstring(`$ns_ at 1.00 "$node_(0) setdest 10.00 0.00 10.00"`))
	})

	It("should fail to convert a missing file", func() {
		err := execute("convert", filepath.Join(dir, "none.xml"),
			filepath.Join(dir, "out.tcl"))

		Expect(err).To(HaveOccurred())
	})

	It("should run and summarize a replay", func() {
		eventsFile := filepath.Join(dir, "events.jsonl")
		Expect(os.WriteFile(eventsFile, []byte(events), 0o644)).To(Succeed())
		dataset := filepath.Join(dir, "handover_dataset.csv")

		Expect(execute("run",
			"--stop-time", "3",
			"--snapshot-interval", "1",
			"--events", eventsFile,
			"--output", dataset,
			"--flow-output", filepath.Join(dir, "flow_statistics.csv"),
			"--log-level", "warn",
		)).To(Succeed())

		rows, err := analysis.LoadDataset(dataset)
		Expect(err).ToNot(HaveOccurred())
		Expect(rows).To(HaveLen(4))

		out.Reset()
		Expect(execute("summary", dataset)).To(Succeed())

		var summary map[string]any
		Expect(yaml.Unmarshal(out.Bytes(), &summary)).To(Succeed())
		Expect(summary["handovers"]).To(Equal(1))
		Expect(summary["measurements"]).To(Equal(3))
		Expect(strings.Contains(out.String(), "handovers_per_ue")).To(BeTrue())
	})

	It("should reject an invalid run configuration", func() {
		err := execute("run",
			"--snapshot-interval", "0",
			"--output", filepath.Join(dir, "x.csv"))

		Expect(err).To(HaveOccurred())
	})
})
