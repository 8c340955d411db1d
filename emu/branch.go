package emu

import "github.com/sarchlab/tomasim/insts"

// BranchTaken evaluates the condition of a conditional branch.
func BranchTaken(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	case insts.OpBLTU:
		return a < b
	case insts.OpBGEU:
		return a >= b
	default:
		return false
	}
}

// BranchTarget returns the PC-relative target of a branch or JAL.
func BranchTarget(pc uint32, offset int32) uint32 {
	return pc + uint32(offset)
}

// JumpTarget returns the JALR target: (base + offset) with bit 0 cleared.
func JumpTarget(base uint32, offset int32) uint32 {
	return (base + uint32(offset)) &^ 1
}
