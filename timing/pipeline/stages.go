package pipeline

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

// FetchStage reads and decodes the instruction at the PC and decides where
// fetch goes next.
type FetchStage struct {
	memory    *emu.Memory
	decoder   *insts.Decoder
	predictor *BranchPredictor
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(memory *emu.Memory, predictor *BranchPredictor) *FetchStage {
	return &FetchStage{
		memory:    memory,
		decoder:   insts.NewDecoder(),
		predictor: predictor,
	}
}

// FetchResult is the outcome of fetching one instruction.
type FetchResult struct {
	Latch  FetchRegister
	NextPC uint32

	// Lock stops fetch until the instruction commits: a register jump whose
	// target is not yet known, or an instruction that cannot be decoded.
	Lock bool

	// Halt stops fetch for good.
	Halt bool
}

// Fetch reads the instruction at pc. Jumps with an immediate target are
// followed at once; conditional branches follow the predictor.
func (s *FetchStage) Fetch(pc uint32) FetchResult {
	word := s.memory.Read32(pc)
	inst := s.decoder.Decode(word)

	result := FetchResult{
		Latch:  FetchRegister{Valid: true, PC: pc, Word: word, Inst: inst},
		NextPC: pc + 4,
	}

	if word == insts.HaltWord {
		result.Halt = true
		return result
	}

	switch inst.Format {
	case insts.FormatJAL:
		result.NextPC = emu.BranchTarget(pc, inst.Imm)
	case insts.FormatJALR:
		result.Lock = true
	case insts.FormatBranch:
		taken := s.predictor.Predict(pc)
		result.Latch.PredictedTaken = taken
		if taken {
			result.NextPC = emu.BranchTarget(pc, inst.Imm)
		}
	case insts.FormatUnknown:
		result.Lock = true
	}

	return result
}
