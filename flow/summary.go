package flow

import "net/netip"

// MbpsOver converts a byte count transferred during elapsed seconds into
// megabits per second. It returns false when elapsed is not positive.
func MbpsOver(bytes uint64, elapsed float64) (float64, bool) {
	if elapsed <= 0 {
		return 0, false
	}

	return float64(bytes) * 8.0 / (elapsed * 1e6), true
}

// Summary is one row of the flow statistics dataset.
type Summary struct {
	ID               ID
	Source           netip.Addr
	Destination      netip.Addr
	ThroughputDLMbps float64
	ThroughputULMbps float64
	PacketsSent      uint64
	PacketsReceived  uint64
	PacketsLost      uint64
	DelayMeanMs      float64

	// JitterMeanMs is only meaningful when HasJitter is true, which needs at
	// least two received packets.
	JitterMeanMs float64
	HasJitter    bool
}

// Summarize computes the run-average figures of a flow over a run of
// duration seconds.
func Summarize(s Stats, duration float64) Summary {
	sum := Summary{
		ID:              s.ID,
		Source:          s.Tuple.Source,
		Destination:     s.Tuple.Destination,
		PacketsSent:     s.TxPackets,
		PacketsReceived: s.RxPackets,
		PacketsLost:     s.LostPackets,
	}

	sum.ThroughputDLMbps, _ = MbpsOver(s.RxBytes, duration)
	sum.ThroughputULMbps, _ = MbpsOver(s.TxBytes, duration)

	if s.RxPackets > 0 {
		sum.DelayMeanMs = s.DelaySum / float64(s.RxPackets) * 1000.0
	}

	if s.RxPackets > 1 {
		sum.JitterMeanMs = s.JitterSum / float64(s.RxPackets-1) * 1000.0
		sum.HasJitter = true
	}

	return sum
}
