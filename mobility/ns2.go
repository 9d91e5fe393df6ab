package mobility

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sarchlab/hotrace/sim"
)

var (
	initialSetRE = regexp.MustCompile(
		`^\$node_\((\d+)\)\s+set\s+([XYZ])_\s+(\S+)$`)
	timedSetRE = regexp.MustCompile(
		`^\$ns_\s+at\s+(\S+)\s+"\$node_\((\d+)\)\s+set\s+([XYZ])_\s+(\S+)"$`)
	timedSetDestRE = regexp.MustCompile(
		`^\$ns_\s+at\s+(\S+)\s+"\$node_\((\d+)\)\s+setdest\s+(\S+)\s+(\S+)\s+(\S+)"$`)
)

// ParseNS2 reads an ns-2 movement trace. Comment lines and lines that are
// not movement commands are skipped.
func ParseNS2(r io.Reader) (*Trace, error) {
	trace := &Trace{}
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cmd, ok, err := parseNS2Line(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if ok {
			trace.Commands = append(trace.Commands, cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return trace, nil
}

func parseNS2Line(line string) (Command, bool, error) {
	if m := initialSetRE.FindStringSubmatch(line); m != nil {
		cmd := Command{Op: coordOp(m[2])}
		err := parseAll(
			intField(&cmd.Node, m[1]),
			floatField(&cmd.Value, m[3]),
		)

		return cmd, true, err
	}

	if m := timedSetRE.FindStringSubmatch(line); m != nil {
		cmd := Command{Timed: true, Op: coordOp(m[3])}
		err := parseAll(
			timeField(&cmd.Time, m[1]),
			intField(&cmd.Node, m[2]),
			floatField(&cmd.Value, m[4]),
		)

		return cmd, true, err
	}

	if m := timedSetDestRE.FindStringSubmatch(line); m != nil {
		cmd := Command{Timed: true, Op: OpSetDest}
		err := parseAll(
			timeField(&cmd.Time, m[1]),
			intField(&cmd.Node, m[2]),
			floatField(&cmd.DestX, m[3]),
			floatField(&cmd.DestY, m[4]),
			floatField(&cmd.Speed, m[5]),
		)

		return cmd, true, err
	}

	return Command{}, false, nil
}

func coordOp(name string) Op {
	switch name {
	case "X":
		return OpSetX
	case "Y":
		return OpSetY
	default:
		return OpSetZ
	}
}

func parseAll(parsers ...func() error) error {
	for _, p := range parsers {
		if err := p(); err != nil {
			return err
		}
	}

	return nil
}

func intField(dst *int, s string) func() error {
	return func() error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid node index %q", s)
		}

		*dst = v

		return nil
	}
}

func floatField(dst *float64, s string) func() error {
	return func() error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}

		*dst = v

		return nil
	}
}

func timeField(dst *sim.VTimeInSec, s string) func() error {
	return func() error {
		var v float64
		if err := floatField(&v, s)(); err != nil {
			return err
		}

		*dst = sim.VTimeInSec(v)

		return nil
	}
}

// LoadNS2 parses the ns-2 trace stored in the file at path.
func LoadNS2(path string) (*Trace, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, path)
	}

	if err != nil {
		return nil, err
	}

	defer f.Close()

	trace, err := ParseNS2(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return trace, nil
}
