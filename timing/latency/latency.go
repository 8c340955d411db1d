// Package latency provides instruction timing models for cycle-accurate simulation.
//
// Latencies and structure capacities of the out-of-order core are configured
// through TimingConfig.
package latency

import (
	"github.com/sarchlab/tomasim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the number of cycles between issue-side readiness and
// the result appearing on the bus for the given instruction. Instructions
// resolved at issue (LUI, AUIPC, JAL and undecodable words) take 0 cycles.
// The reservation station is combinational and the load/store queue
// publishes a store's address the cycle its operands are known, so both
// take 1 cycle. A load takes the direct memory port countdown.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Format {
	case insts.FormatLUI, insts.FormatAUIPC, insts.FormatJAL, insts.FormatUnknown:
		return 0
	case insts.FormatLoad:
		return t.config.LoadLatency
	default:
		return 1
	}
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	return inst != nil && inst.IsMemory()
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	return inst != nil && inst.Format == insts.FormatLoad
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	return inst != nil && inst.Format == insts.FormatStore
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
