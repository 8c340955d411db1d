package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/tomasim/insts"
)

// ErrInstructionLimit is returned when the configured instruction budget is
// exhausted before the program halts.
var ErrInstructionLimit = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program reached the halt sentinel.
	Exited bool

	// ExitCode is the low byte of a0 if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RV32I instructions functionally, one at a time, in
// program order. It is the reference against which the out-of-order core is
// checked.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	lsu *LoadStoreUnit

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStackPointer sets the initial stack pointer (x2).
func WithStackPointer(sp uint32) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.WriteReg(2, sp)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithMemory runs the emulator against an existing memory.
func WithMemory(memory *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = memory
	}
}

// NewEmulator creates a new RV32I emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  nil,
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory()
	}
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram loads a program into memory and sets the entry point.
func (e *Emulator) LoadProgram(entry uint32, program []byte) {
	e.memory.LoadProgram(entry, program)
	e.regFile.PC = entry
}

// Reset resets the emulator to its initial state with an empty memory.
func (e *Emulator) Reset() {
	e.regFile = &RegFile{}
	e.memory = NewMemory()
	e.instructionCount = 0
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrInstructionLimit}
	}

	word := e.memory.Read32(e.regFile.PC)
	if word == insts.HaltWord {
		return StepResult{
			Exited:   true,
			ExitCode: int64(e.regFile.ReadReg(insts.RegA0) & 0xFF),
		}
	}

	inst := e.decoder.Decode(word)
	if err := e.execute(inst); err != nil {
		return StepResult{Err: err}
	}

	e.instructionCount++

	return StepResult{}
}

// Run executes instructions until the program halts or an error occurs.
// It returns the exit code, which is -1 on error.
func (e *Emulator) Run() (int64, error) {
	for {
		result := e.Step()
		if result.Err != nil {
			return -1, result.Err
		}
		if result.Exited {
			return result.ExitCode, nil
		}
	}
}

// execute dispatches and executes a decoded instruction and advances the PC.
func (e *Emulator) execute(inst *insts.Instruction) error {
	pc := e.regFile.PC
	next := pc + 4

	switch inst.Format {
	case insts.FormatLUI:
		e.regFile.WriteReg(inst.Rd, uint32(inst.Imm))
	case insts.FormatAUIPC:
		e.regFile.WriteReg(inst.Rd, pc+uint32(inst.Imm))
	case insts.FormatJAL:
		e.regFile.WriteReg(inst.Rd, next)
		next = BranchTarget(pc, inst.Imm)
	case insts.FormatJALR:
		target := JumpTarget(e.regFile.ReadReg(inst.Rs1), inst.Imm)
		e.regFile.WriteReg(inst.Rd, next)
		next = target
	case insts.FormatBranch:
		a := e.regFile.ReadReg(inst.Rs1)
		b := e.regFile.ReadReg(inst.Rs2)
		if BranchTaken(inst.Op, a, b) {
			next = BranchTarget(pc, inst.Imm)
		}
	case insts.FormatLoad:
		e.lsu.Load(inst)
	case insts.FormatStore:
		e.lsu.Store(inst)
	case insts.FormatOpImm:
		return e.executeALU(inst, e.regFile.ReadReg(inst.Rs1), uint32(inst.Imm), next)
	case insts.FormatOp:
		return e.executeALU(inst, e.regFile.ReadReg(inst.Rs1), e.regFile.ReadReg(inst.Rs2), next)
	default:
		return fmt.Errorf("%w 0x%08x at PC=0x%08x", ErrIllegalInstruction, inst.Raw, pc)
	}

	e.regFile.PC = next
	return nil
}

func (e *Emulator) executeALU(inst *insts.Instruction, a, b, next uint32) error {
	result, err := Compute(inst.Op, a, b)
	if err != nil {
		return fmt.Errorf("failed to execute at PC=0x%08x: %w", e.regFile.PC, err)
	}
	e.regFile.WriteReg(inst.Rd, result)
	e.regFile.PC = next
	return nil
}
