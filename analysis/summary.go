package analysis

import (
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// RadioStats describes the radio values reported on HANDOVER rows.
type RadioStats struct {
	RSRPOld Stats `yaml:"rsrp_old_dbm"`
	RSRPNew Stats `yaml:"rsrp_new_dbm"`
	RSRQOld Stats `yaml:"rsrq_old_db"`
	RSRQNew Stats `yaml:"rsrq_new_db"`
	SINROld Stats `yaml:"sinr_old_db"`
	SINRNew Stats `yaml:"sinr_new_db"`
}

// MobilityStats describes where and how fast the UEs moved.
type MobilityStats struct {
	Speed Stats      `yaml:"speed_mps"`
	X     [2]float64 `yaml:"x_range,flow"`
	Y     [2]float64 `yaml:"y_range,flow"`
}

// FlowStats describes the flow statistics dataset.
type FlowStats struct {
	Flows           int     `yaml:"flows"`
	PacketsSent     uint64  `yaml:"packets_sent"`
	PacketsReceived uint64  `yaml:"packets_received"`
	PacketsLost     uint64  `yaml:"packets_lost"`
	LossRatio       float64 `yaml:"loss_ratio"`
	ThroughputDL    Stats   `yaml:"throughput_dl_mbps"`
	ThroughputUL    Stats   `yaml:"throughput_ul_mbps"`
	Delay           Stats   `yaml:"delay_ms"`
}

// Summary is the digest of one run.
type Summary struct {
	Handovers        int            `yaml:"handovers"`
	Measurements     int            `yaml:"measurements"`
	UEs              int            `yaml:"ues"`
	Cells            int            `yaml:"cells"`
	HandoverRate     float64        `yaml:"handover_rate_per_s"`
	HandoversPerUE   Distribution   `yaml:"handovers_per_ue"`
	HandoversPerCell map[uint16]int `yaml:"handovers_per_cell"`
	CellDistribution Distribution   `yaml:"handovers_per_cell_distribution"`
	Radio            RadioStats     `yaml:"radio"`
	Mobility         MobilityStats  `yaml:"mobility"`
	ThroughputDL     float64        `yaml:"mean_throughput_dl_mbps"`
	ThroughputUL     float64        `yaml:"mean_throughput_ul_mbps"`
	Flows            *FlowStats     `yaml:"flows,omitempty"`
}

type radioColumns struct {
	rsrpOld, rsrpNew, rsrqOld, rsrqNew, sinrOld, sinrNew []float64
}

func (c *radioColumns) add(r Row) {
	c.rsrpNew = append(c.rsrpNew, r.RSRPNew)
	c.rsrqNew = append(c.rsrqNew, r.RSRQNew)
	c.sinrNew = append(c.sinrNew, r.SINRNew)

	if r.RSRPOld != nil {
		c.rsrpOld = append(c.rsrpOld, *r.RSRPOld)
	}

	if r.RSRQOld != nil {
		c.rsrqOld = append(c.rsrqOld, *r.RSRQOld)
	}

	if r.SINROld != nil {
		c.sinrOld = append(c.sinrOld, *r.SINROld)
	}
}

func (c *radioColumns) stats() RadioStats {
	return RadioStats{
		RSRPOld: Describe(c.rsrpOld),
		RSRPNew: Describe(c.rsrpNew),
		RSRQOld: Describe(c.rsrqOld),
		RSRQNew: Describe(c.rsrqNew),
		SINROld: Describe(c.sinrOld),
		SINRNew: Describe(c.sinrNew),
	}
}

// Summarize digests the rows of a primary dataset and, when flows is not
// nil, the rows of a flow statistics dataset.
func Summarize(rows []Row, flows []FlowRow) Summary {
	s := Summary{HandoversPerCell: make(map[uint16]int)}

	ues := make(map[uint64]bool)
	cells := make(map[uint16]bool)
	perUE := make(map[uint64]int)

	var (
		radio        radioColumns
		speeds       []float64
		sumDL, sumUL float64
		maxTime      float64
	)

	for i, r := range rows {
		ues[r.UE] = true
		cells[r.NewCell] = true
		sumDL += r.ThroughputDL
		sumUL += r.ThroughputUL

		if i == 0 || r.Time > maxTime {
			maxTime = r.Time
		}

		s.Mobility.extend(i == 0, r)

		if r.Speed > 0 {
			speeds = append(speeds, r.Speed)
		}

		if !r.IsHandover() {
			s.Measurements++
			continue
		}

		s.Handovers++
		perUE[r.UE]++
		s.HandoversPerCell[r.NewCell]++
		radio.add(r)
	}

	s.UEs = len(ues)
	s.Cells = len(cells)
	s.HandoversPerUE = DistributionOf(sortedCounts(perUE))
	s.CellDistribution = DistributionOf(sortedCounts(s.HandoversPerCell))
	s.Radio = radio.stats()
	s.Mobility.Speed = Describe(speeds)

	if maxTime > 0 {
		s.HandoverRate = float64(s.Handovers) / maxTime
	}

	if len(rows) > 0 {
		s.ThroughputDL = sumDL / float64(len(rows))
		s.ThroughputUL = sumUL / float64(len(rows))
	}

	if flows != nil {
		s.Flows = summarizeFlows(flows)
	}

	return s
}

func (m *MobilityStats) extend(first bool, r Row) {
	if first {
		m.X = [2]float64{r.X, r.X}
		m.Y = [2]float64{r.Y, r.Y}

		return
	}

	m.X[0], m.X[1] = min(m.X[0], r.X), max(m.X[1], r.X)
	m.Y[0], m.Y[1] = min(m.Y[0], r.Y), max(m.Y[1], r.Y)
}

func sortedCounts[K uint16 | uint64](m map[K]int) []int {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	counts := make([]int, len(keys))
	for i, k := range keys {
		counts[i] = m[k]
	}

	return counts
}

func summarizeFlows(flows []FlowRow) *FlowStats {
	fs := &FlowStats{Flows: len(flows)}

	var dl, ul, delay []float64

	for _, f := range flows {
		fs.PacketsSent += f.PacketsSent
		fs.PacketsReceived += f.PacketsReceived
		fs.PacketsLost += f.PacketsLost
		dl = append(dl, f.ThroughputDLMbps)
		ul = append(ul, f.ThroughputULMbps)
		delay = append(delay, f.DelayMeanMs)
	}

	if fs.PacketsSent > 0 {
		fs.LossRatio = float64(fs.PacketsLost) / float64(fs.PacketsSent)
	}

	fs.ThroughputDL = Describe(dl)
	fs.ThroughputUL = Describe(ul)
	fs.Delay = Describe(delay)

	return fs
}

// WriteYAML renders the summary as a YAML document.
func (s Summary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(s); err != nil {
		return err
	}

	return enc.Close()
}
