package mobility

import (
	"math"
	"sort"

	"github.com/sarchlab/hotrace/measure"
	"github.com/sarchlab/hotrace/registry"
	"github.com/sarchlab/hotrace/sim"
)

// A leg is a straight movement at constant velocity that starts at start and
// ends at arrive. A stationary leg has arrive == start.
type leg struct {
	start    sim.VTimeInSec
	arrive   sim.VTimeInSec
	from     measure.Vector
	velocity measure.Vector
}

func (l leg) at(now sim.VTimeInSec) Sample {
	moving := now < l.arrive
	t := now
	if !moving {
		t = l.arrive
	}

	dt := float64(t - l.start)
	s := Sample{Position: measure.Vector{
		X: l.from.X + l.velocity.X*dt,
		Y: l.from.Y + l.velocity.Y*dt,
	}}

	if moving {
		s.Velocity = l.velocity
	}

	return s
}

// Waypoint replays a movement trace. Each node moves in straight lines
// between the destinations it is given.
type Waypoint struct {
	courses map[registry.EntityID][]leg
}

// NewWaypoint builds the replay model of a trace. Node i of the trace becomes
// entity i+offset.
func NewWaypoint(trace *Trace, offset uint64) *Waypoint {
	byNode := make(map[int][]Command)
	for _, c := range trace.Commands {
		byNode[c.Node] = append(byNode[c.Node], c)
	}

	w := &Waypoint{courses: make(map[registry.EntityID][]leg)}
	for node, cmds := range byNode {
		id := registry.EntityID(uint64(node) + offset)
		w.courses[id] = buildCourse(cmds)
	}

	return w
}

func buildCourse(cmds []Command) []leg {
	var initial measure.Vector

	timed := make([]Command, 0, len(cmds))

	for _, c := range cmds {
		if c.Timed {
			timed = append(timed, c)
			continue
		}

		applySet(&initial, c)
	}

	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Time < timed[j].Time
	})

	course := []leg{{from: initial}}

	for _, c := range timed {
		cur := course[len(course)-1].at(c.Time).Position

		if c.Op != OpSetDest {
			applySet(&cur, c)
			course = append(course, leg{start: c.Time, arrive: c.Time, from: cur})

			continue
		}

		course = append(course, moveTowards(c, cur))
	}

	return course
}

func applySet(pos *measure.Vector, c Command) {
	switch c.Op {
	case OpSetX:
		pos.X = c.Value
	case OpSetY:
		pos.Y = c.Value
	}
}

func moveTowards(c Command, cur measure.Vector) leg {
	dx := c.DestX - cur.X
	dy := c.DestY - cur.Y
	dist := math.Hypot(dx, dy)

	l := leg{start: c.Time, arrive: c.Time, from: cur}
	if dist == 0 || c.Speed <= 0 {
		return l
	}

	l.velocity = measure.Vector{X: dx / dist * c.Speed, Y: dy / dist * c.Speed}
	l.arrive = c.Time + sim.VTimeInSec(dist/c.Speed)

	return l
}

// Sample returns the interpolated position and the current velocity.
func (w *Waypoint) Sample(
	id registry.EntityID,
	now sim.VTimeInSec,
) (Sample, bool) {
	course, ok := w.courses[id]
	if !ok {
		return Sample{}, false
	}

	i := sort.Search(len(course), func(i int) bool {
		return course[i].start > now
	})
	if i > 0 {
		i--
	}

	return course[i].at(now), true
}

// Entities returns the entities the trace moves, in order.
func (w *Waypoint) Entities() []registry.EntityID {
	ids := make([]registry.EntityID, 0, len(w.courses))
	for id := range w.courses {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
