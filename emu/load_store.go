package emu

import "github.com/sarchlab/tomasim/insts"

// LoadStoreUnit implements RV32I load and store operations.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// EffectiveAddress computes rs1 + imm.
func (lsu *LoadStoreUnit) EffectiveAddress(inst *insts.Instruction) uint32 {
	return lsu.regFile.ReadReg(inst.Rs1) + uint32(inst.Imm)
}

// Load performs rd = extend(mem[rs1 + imm]).
func (lsu *LoadStoreUnit) Load(inst *insts.Instruction) {
	addr := lsu.EffectiveAddress(inst)
	raw := lsu.memory.Load(addr, inst.Width)
	lsu.regFile.WriteReg(inst.Rd, ExtendLoad(raw, inst.Width, inst.Unsigned))
}

// Store performs mem[rs1 + imm] = rs2 truncated to the access width.
func (lsu *LoadStoreUnit) Store(inst *insts.Instruction) {
	addr := lsu.EffectiveAddress(inst)
	lsu.memory.Store(addr, inst.Width, lsu.regFile.ReadReg(inst.Rs2))
}
