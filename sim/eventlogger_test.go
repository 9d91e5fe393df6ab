package sim

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
)

var _ = Describe("EventLogger", func() {
	It("should log events before they are handled", func() {
		var buf bytes.Buffer
		engine := NewSerialEngine()
		engine.AcceptHook(NewEventLogger(zerolog.New(&buf)))

		ScheduleAt(engine, 2, func(VTimeInSec) error { return nil })
		Expect(engine.Run()).To(Succeed())

		Expect(buf.String()).To(ContainSubstring(`"time":2`))
		Expect(buf.String()).To(ContainSubstring("sim.CallbackEvent"))
		Expect(bytes.Count(buf.Bytes(), []byte("\n"))).To(Equal(1))
	})
})
