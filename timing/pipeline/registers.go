package pipeline

import "github.com/sarchlab/tomasim/insts"

// FetchRegister holds the instruction latched by fetch until it issues.
type FetchRegister struct {
	// Valid indicates if this register contains an instruction.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// Word is the raw 32-bit instruction word.
	Word uint32

	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// PredictedTaken is the predictor's direction for a conditional branch.
	PredictedTaken bool
}

// Clear resets the register to empty state.
func (r *FetchRegister) Clear() {
	r.Valid = false
	r.PC = 0
	r.Word = 0
	r.Inst = nil
	r.PredictedTaken = false
}
