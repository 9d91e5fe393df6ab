package analysis

import (
	"math"
	"sort"
)

// Stats describes a sample of values. Std is the sample standard deviation
// and is zero for fewer than two values.
type Stats struct {
	Count int     `yaml:"count"`
	Mean  float64 `yaml:"mean"`
	Std   float64 `yaml:"std"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

// Describe computes the Stats of values.
func Describe(values []float64) Stats {
	s := Stats{Count: len(values)}
	if s.Count == 0 {
		return s
	}

	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	sum := 0.0

	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}

	s.Mean = sum / float64(s.Count)

	if s.Count > 1 {
		sq := 0.0
		for _, v := range values {
			sq += (v - s.Mean) * (v - s.Mean)
		}

		s.Std = math.Sqrt(sq / float64(s.Count-1))
	}

	return s
}

// Distribution describes a set of counts.
type Distribution struct {
	Min    int     `yaml:"min"`
	Max    int     `yaml:"max"`
	Mean   float64 `yaml:"mean"`
	Median float64 `yaml:"median"`
}

// DistributionOf computes the Distribution of counts.
func DistributionOf(counts []int) Distribution {
	if len(counts) == 0 {
		return Distribution{}
	}

	sorted := append([]int(nil), counts...)
	sort.Ints(sorted)

	sum := 0
	for _, c := range sorted {
		sum += c
	}

	n := len(sorted)
	median := float64(sorted[n/2])
	if n%2 == 0 {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	return Distribution{
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   float64(sum) / float64(n),
		Median: median,
	}
}
