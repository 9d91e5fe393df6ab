package sim

import (
	"sync"
)

// TickEvent triggers one round of periodic work.
type TickEvent struct {
	EventBase
	Index int
}

// MakeTickEvent creates a new TickEvent
func MakeTickEvent(handler Handler, time VTimeInSec, index int) TickEvent {
	return TickEvent{
		EventBase: NewEventBase(time, handler),
		Index:     index,
	}
}

// A Ticker is an object that does some work at every tick.
type Ticker interface {
	Tick(now VTimeInSec) error
}

// TickerFunc adapts a function into a Ticker.
type TickerFunc func(now VTimeInSec) error

// Tick calls f(now).
func (f TickerFunc) Tick(now VTimeInSec) error {
	return f(now)
}

// TickScheduler drives a Ticker at First, First+Period, First+2*Period, and
// so on. Tick times are computed from the tick index, so they do not drift.
// No tick is scheduled after the stop time.
type TickScheduler struct {
	lock     sync.Mutex
	ticker   Ticker
	Engine   EventScheduler
	First    VTimeInSec
	Period   VTimeInSec
	StopTime VTimeInSec

	ticked int
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	ticker Ticker,
	engine EventScheduler,
	first, period VTimeInSec,
) *TickScheduler {
	if period <= 0 {
		panic("tick period must be positive")
	}

	return &TickScheduler{
		ticker:   ticker,
		Engine:   engine,
		First:    first,
		Period:   period,
		StopTime: NoStopTime,
	}
}

// WithStopTime sets the time after which no tick is scheduled.
func (t *TickScheduler) WithStopTime(stop VTimeInSec) *TickScheduler {
	t.StopTime = stop
	return t
}

// TimeOf returns the time of the tick with the given index.
func (t *TickScheduler) TimeOf(index int) VTimeInSec {
	return t.First + VTimeInSec(index)*t.Period
}

// Start schedules the first tick.
func (t *TickScheduler) Start() {
	t.scheduleTick(0)
}

func (t *TickScheduler) scheduleTick(index int) {
	time := t.TimeOf(index)
	if t.StopTime != NoStopTime && time > t.StopTime {
		return
	}

	t.Engine.Schedule(MakeTickEvent(t, time, index))
}

// Handle runs the ticker and schedules the tick after.
func (t *TickScheduler) Handle(e Event) error {
	tick := e.(TickEvent)

	t.lock.Lock()
	t.ticked++
	t.lock.Unlock()

	t.scheduleTick(tick.Index + 1)

	return t.ticker.Tick(tick.Time())
}

// Ticks returns the number of ticks handled so far.
func (t *TickScheduler) Ticks() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.ticked
}
