package mobility

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/hotrace/sim"
)

// Op is the kind of a trace command.
type Op int

// The trace commands understood by the replay model.
const (
	OpSetX Op = iota
	OpSetY
	OpSetZ
	OpSetDest
)

func (o Op) coordName() string {
	switch o {
	case OpSetX:
		return "X_"
	case OpSetY:
		return "Y_"
	case OpSetZ:
		return "Z_"
	default:
		return ""
	}
}

// A Command is one line of an ns-2 movement trace.
//
// Untimed commands set the initial coordinates. Timed commands are applied at
// Time. For OpSetDest the node starts moving from wherever it is towards
// (DestX, DestY) at Speed m/s; for the set operations Value is the new
// coordinate.
type Command struct {
	Timed bool
	Time  sim.VTimeInSec
	Node  int
	Op    Op
	Value float64
	DestX float64
	DestY float64
	Speed float64
}

// A Trace is an ordered list of movement commands.
type Trace struct {
	Comments []string
	Commands []Command
}

// Nodes returns the number of distinct nodes in the trace.
func (t *Trace) Nodes() int {
	seen := make(map[int]bool)
	for _, c := range t.Commands {
		seen[c.Node] = true
	}

	return len(seen)
}

// WriteNS2 writes the trace in ns-2 TCL syntax.
func (t *Trace) WriteNS2(w io.Writer) error {
	var b strings.Builder

	for _, c := range t.Comments {
		b.WriteString("# ")
		b.WriteString(c)
		b.WriteByte('\n')
	}

	if len(t.Comments) > 0 {
		b.WriteByte('\n')
	}

	for _, c := range t.Commands {
		b.WriteString(formatCommand(c))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())

	return err
}

func formatCommand(c Command) string {
	var body string

	if c.Op == OpSetDest {
		body = fmt.Sprintf("$node_(%d) setdest %.2f %.2f %.2f",
			c.Node, c.DestX, c.DestY, c.Speed)
	} else {
		body = fmt.Sprintf("$node_(%d) set %s %.2f",
			c.Node, c.Op.coordName(), c.Value)
	}

	if !c.Timed {
		return body
	}

	return fmt.Sprintf("$ns_ at %.2f \"%s\"", float64(c.Time), body)
}
