package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bradleyjkemp/memviz"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// launchStatsView serves Go runtime statistics of the simulator process.
func launchStatsView(addr string, output io.Writer) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s/debug/statsview\n", addr)
}

// printStats writes the timing report of a finished run.
func printStats(w io.Writer, c *core.Core) {
	stats := c.Pipeline.Stats()

	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Exit code: %d\n", c.ExitCode())
	fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	fmt.Fprintf(w, "IPC: %.2f\n", stats.IPC())
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Breakdown:\n")
	fmt.Fprintf(w, "  Issue stalls:   %6d cycles (%5.1f%%)\n",
		stats.IssueStalls, 100.0*float64(stats.IssueStalls)/float64(totalCycles))
	fmt.Fprintf(w, "  Fetch locked:   %6d cycles (%5.1f%%)\n",
		stats.LockedCycles, 100.0*float64(stats.LockedCycles)/float64(totalCycles))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Pipeline Events:\n")
	fmt.Fprintf(w, "  Loads:    %d\n", stats.Loads)
	fmt.Fprintf(w, "  Stores:   %d\n", stats.Stores)
	fmt.Fprintf(w, "  Squashes: %d\n", stats.Squashes)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Branch Prediction:\n")
	fmt.Fprintf(w, "  Branches:       %d\n", stats.BranchPredictions)
	fmt.Fprintf(w, "  Mispredictions: %d\n", stats.BranchMispredictions)
	fmt.Fprintf(w, "  Success rate:   %.6f\n", stats.BranchAccuracy())
	fmt.Fprintf(w, "  Lookups:        %d\n", c.Pipeline.PredictorLookups())

	if l1d := c.Pipeline.DCache(); l1d != nil {
		dcStats := l1d.Stats()
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "L1 Data Cache:\n")
		fmt.Fprintf(w, "  Hits:   %d\n", dcStats.Hits)
		fmt.Fprintf(w, "  Misses: %d\n", dcStats.Misses)
	}
}

// coreState is the part of a core written by -dump-state. Memory is left
// out; it is far too large to draw.
type coreState struct {
	ExitCode  int64
	Halted    bool
	PC        uint32
	Fetch     string
	Registers *emu.RegFile
	Stats     pipeline.Statistics
	Predictor pipeline.BranchPredictorStats
	Occupancy pipeline.Occupancy
	InFlight  []pipeline.Entry
}

func snapshot(c *core.Core, regFile *emu.RegFile) *coreState {
	return &coreState{
		ExitCode:  c.ExitCode(),
		Halted:    c.Halted(),
		PC:        c.Pipeline.PC(),
		Fetch:     c.Pipeline.FetchState().String(),
		Registers: regFile,
		Stats:     c.Pipeline.Stats(),
		Predictor: c.Pipeline.PredictorStats(),
		Occupancy: c.Pipeline.Occupancy(),
		InFlight:  c.Pipeline.InFlight(),
	}
}

// dumpState writes a graphviz rendering of the core state to path.
func dumpState(path string, c *core.Core, regFile *emu.RegFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create state dump: %w", err)
	}

	memviz.Map(f, snapshot(c, regFile))

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write state dump: %w", err)
	}
	return nil
}
