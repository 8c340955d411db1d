// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface and
// exposes it as an Akita ticking component.
package core

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of cycles issue was blocked by a full structure.
	Stalls uint64
	// Flushes is the number of pipeline squashes.
	Flushes uint64
	// Branches is the number of conditional branches retired.
	Branches uint64
	// Mispredictions is the number of mispredicted branches.
	Mispredictions uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// BranchAccuracy returns the fraction of branches predicted correctly.
func (s Stats) BranchAccuracy() float64 {
	if s.Branches == 0 {
		return 0
	}
	return float64(s.Branches-s.Mispredictions) / float64(s.Branches)
}

// Core represents a cycle-accurate CPU core model.
// It wraps the out-of-order pipeline and provides a simple interface for
// simulation.
type Core struct {
	// Pipeline is the underlying out-of-order pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core with the given register file and memory.
func NewCore(regFile *emu.RegFile, memory *emu.Memory, opts ...pipeline.PipelineOption) *Core {
	return &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory, opts...),
		regFile:  regFile,
		memory:   memory,
	}
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle. It returns true while the core still
// has work to do, which keeps an Akita ticking component scheduled.
func (c *Core) Tick() bool {
	c.Pipeline.Tick()
	return !c.Pipeline.Halted()
}

// Halted returns true if the core has halted.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// ExitCode returns the exit code if the core has halted.
func (c *Core) ExitCode() int64 {
	return c.Pipeline.ExitCode()
}

// Err returns the error that stopped the core, if any.
func (c *Core) Err() error {
	return c.Pipeline.Err()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:         pipeStats.Cycles,
		Instructions:   pipeStats.Instructions,
		Stalls:         pipeStats.IssueStalls,
		Flushes:        pipeStats.Squashes,
		Branches:       pipeStats.BranchPredictions,
		Mispredictions: pipeStats.BranchMispredictions,
	}
}

// Run executes the core until it halts.
// Returns the exit code.
func (c *Core) Run() (int64, error) {
	return c.Pipeline.Run()
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// RunOnEngine drives the core as a ticking component on a serial Akita
// engine at freq until it halts.
func (c *Core) RunOnEngine(freq sim.Freq) (int64, error) {
	engine := sim.NewSerialEngine()
	component := sim.NewTickingComponent("Core", engine, freq, c)

	component.TickLater()
	if err := engine.Run(); err != nil {
		return -1, fmt.Errorf("failed to run simulation engine: %w", err)
	}

	if !c.Halted() {
		return -1, fmt.Errorf("engine drained before the core halted")
	}
	return c.ExitCode(), c.Err()
}

// Reset clears all core state.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
