package measure_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hotrace/measure"
)

var _ = Describe("Decoding", func() {
	DescribeTable("RSRP",
		func(encoded uint8, dBm float64) {
			Expect(measure.DecodeRSRP(encoded)).To(Equal(dBm))
		},
		Entry("lowest", uint8(0), -140.0),
		Entry("default report", uint8(40), -100.0),
		Entry("zero dBm", uint8(140), 0.0),
		Entry("highest", uint8(255), 115.0),
	)

	DescribeTable("RSRQ",
		func(encoded uint8, dB float64) {
			Expect(measure.DecodeRSRQ(encoded)).To(Equal(dB))
		},
		Entry("lowest", uint8(0), -19.5),
		Entry("half step", uint8(1), -19.0),
		Entry("report", uint8(20), -9.5),
		Entry("zero dB", uint8(39), 0.0),
	)
})
