package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/pkg/term"

	"github.com/sarchlab/tomasim/timing/core"
)

// errStepAborted is returned when the user quits a stepping session.
var errStepAborted = errors.New("stepping aborted")

// stepCore runs the core one cycle per key press read from the terminal.
func stepCore(c *core.Core, out io.Writer) (int64, error) {
	t, err := term.Open("/dev/tty", term.CBreakMode)
	if err != nil {
		return -1, fmt.Errorf("failed to open terminal: %w", err)
	}
	defer func() {
		_ = t.Restore()
		_ = t.Close()
	}()

	fmt.Fprintln(out, "space/enter: next cycle, c: continue, q: quit")
	return stepWith(c, t, out)
}

// stepWith drives c from the keys read from in. It prints the core state
// after every cycle.
func stepWith(c *core.Core, in io.Reader, out io.Writer) (int64, error) {
	key := make([]byte, 1)

	for !c.Halted() {
		if _, err := in.Read(key); err != nil {
			if errors.Is(err, io.EOF) {
				return -1, errStepAborted
			}
			return -1, fmt.Errorf("failed to read key: %w", err)
		}

		switch key[0] {
		case 'q':
			return -1, errStepAborted
		case 'c':
			return c.Run()
		case ' ', '\n', '\r':
			c.Tick()
			printCycle(c, out)
		}
	}

	return c.ExitCode(), c.Err()
}

func printCycle(c *core.Core, out io.Writer) {
	p := c.Pipeline
	occ := p.Occupancy()
	fmt.Fprintf(out, "cycle %d pc=0x%08x fetch=%s rob=%d rs=%d lsq=%d retired=%d\n",
		p.Stats().Cycles, p.PC(), p.FetchState(), occ.ROB, occ.RS, occ.LSQ,
		p.Stats().Instructions)
}
