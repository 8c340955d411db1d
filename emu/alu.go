package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// ErrIllegalInstruction is returned when an operation has no functional
// semantics.
var ErrIllegalInstruction = errors.New("illegal instruction")

// Compute evaluates an ALU or compare operation on two operands. Branch
// operations yield 1 when the branch is taken and 0 otherwise, so a single
// kernel serves both the reference emulator and the reservation station.
func Compute(op insts.Op, a, b uint32) (uint32, error) {
	switch op {
	case insts.OpADD:
		return a + b, nil
	case insts.OpSUB:
		return a - b, nil
	case insts.OpSLL:
		return a << (b & 0x1F), nil
	case insts.OpSLT:
		return boolToWord(int32(a) < int32(b)), nil
	case insts.OpSLTU:
		return boolToWord(a < b), nil
	case insts.OpXOR:
		return a ^ b, nil
	case insts.OpSRL:
		return a >> (b & 0x1F), nil
	case insts.OpSRA:
		return uint32(int32(a) >> (b & 0x1F)), nil
	case insts.OpOR:
		return a | b, nil
	case insts.OpAND:
		return a & b, nil
	case insts.OpBEQ, insts.OpBNE, insts.OpBLT, insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		return boolToWord(BranchTaken(op, a, b)), nil
	case insts.OpJALR:
		return JumpTarget(a, int32(b)), nil
	default:
		return 0, fmt.Errorf("%w: no compute kernel for %v", ErrIllegalInstruction, op)
	}
}

// ExtendLoad sign- or zero-extends a raw loaded value of the given width.
func ExtendLoad(raw uint32, width insts.Width, unsigned bool) uint32 {
	switch width {
	case insts.WidthByte:
		if unsigned {
			return raw & 0xFF
		}
		return uint32(int32(int8(raw)))
	case insts.WidthHalf:
		if unsigned {
			return raw & 0xFFFF
		}
		return uint32(int32(int16(raw)))
	default:
		return raw
	}
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
