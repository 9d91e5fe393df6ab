package sim

// CallbackEvent is an event that runs a function when it is triggered.
type CallbackEvent struct {
	EventBase
	fn func(now VTimeInSec) error
}

// NewCallbackEvent creates an event that calls fn at time t.
func NewCallbackEvent(t VTimeInSec, fn func(now VTimeInSec) error) CallbackEvent {
	return CallbackEvent{
		EventBase: NewEventBase(t, callbackHandler{}),
		fn:        fn,
	}
}

type callbackHandler struct{}

func (callbackHandler) Handle(e Event) error {
	evt := e.(CallbackEvent)
	return evt.fn(evt.Time())
}

// ScheduleAt registers fn to be called at time t.
func ScheduleAt(
	s EventScheduler,
	t VTimeInSec,
	fn func(now VTimeInSec) error,
) {
	s.Schedule(NewCallbackEvent(t, fn))
}
