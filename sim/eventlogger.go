package sim

import (
	"reflect"

	"github.com/rs/zerolog"
)

// EventLogger is a hook that logs every event the engine triggers.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger returns a new EventLogger which writes into the logger at
// debug level.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.logger.Debug().
		Float64("time", float64(evt.Time())).
		Str("event", reflect.TypeOf(evt).String()).
		Str("handler", reflect.TypeOf(evt.Handler()).String()).
		Msg("event")
}
