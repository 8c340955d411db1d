package benchmarks

import (
	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

// Register numbers used by the benchmark programs.
const (
	regRA = 1
	regT0 = 5
	regT1 = 6
	regT2 = 7
	regA0 = 10
	regA1 = 11
	regA2 = 12
	regT3 = 28
	regT4 = 29
	regT5 = 30
)

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets one part of the out-of-order core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loopSum(),
		memoryCopy(),
		storeThenLoad(),
		pointerChase(),
		functionCalls(),
		branchAlternating(),
		branchStorm(),
		byteAccess(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: a loop, a memory copy and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSum(),
		memoryCopy(),
		branchAlternating(),
	}
}

// Independent ALU operations followed by a reduction into a0.
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "12 independent ALU operations then a reduction - measures issue width",
		Program: insts.BuildProgram(
			insts.EncodeADDI(regT0, 0, 1),
			insts.EncodeADDI(regT1, 0, 2),
			insts.EncodeADDI(regT2, 0, 3),
			insts.EncodeADDI(regT3, 0, 4),
			insts.EncodeADDI(regT4, 0, 5),
			insts.EncodeADDI(regT5, 0, 6),
			insts.EncodeSLLI(regT0, regT0, 3),                // 8
			insts.EncodeOp(insts.OpXOR, regT1, regT1, regT2), // 1
			insts.EncodeOp(insts.OpOR, regT2, regT2, regT3),  // 7
			insts.EncodeOp(insts.OpAND, regT3, regT3, regT4), // 4
			insts.EncodeSUB(regT4, regT5, regT4),             // 1
			insts.EncodeSRLI(regT5, regT5, 1),                // 3
			insts.EncodeADD(regA0, regT0, regT1),
			insts.EncodeADD(regA0, regA0, regT2),
			insts.EncodeADD(regA0, regA0, regT3),
			insts.EncodeADD(regA0, regA0, regT4),
			insts.EncodeADD(regA0, regA0, regT5),
			insts.EncodeHalt(),
		),
		ExpectedExit: 24,
	}
}

func dependencyChain() Benchmark {
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs (a0 = a0 + 1) - measures broadcast latency",
		Program:      buildDependencyChain(20),
		ExpectedExit: 20,
	}
}

func buildDependencyChain(n int) []byte {
	words := make([]uint32, 0, n+1)
	for i := 0; i < n; i++ {
		words = append(words, insts.EncodeADDI(regA0, regA0, 1))
	}
	words = append(words, insts.EncodeHalt())
	return insts.BuildProgram(words...)
}

// Sums 10 down to 1 with a backward branch.
func loopSum() Benchmark {
	return Benchmark{
		Name:        "loop_sum",
		Description: "counted loop summing 1..10 - measures loop branch prediction",
		Program: insts.BuildProgram(
			insts.EncodeADDI(regT0, 0, 10),
			insts.EncodeADDI(regA0, 0, 0),
			insts.EncodeADD(regA0, regA0, regT0), // loop:
			insts.EncodeADDI(regT0, regT0, -1),
			insts.EncodeBNE(regT0, 0, -8),
			insts.EncodeHalt(),
		),
		ExpectedExit: 55,
	}
}

// Copies eight words from 0x2000 to 0x3000, reading each copy back.
func memoryCopy() Benchmark {
	return Benchmark{
		Name:        "memory_copy",
		Description: "copy 8 words and sum the copies - measures load/store queue throughput",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			for i := uint32(0); i < 8; i++ {
				memory.Write32(0x2000+4*i, i+1)
			}
		},
		Program: insts.BuildProgram(
			insts.EncodeLUI(regA1, 2),
			insts.EncodeLUI(regA2, 3),
			insts.EncodeADDI(regT0, 0, 8),
			insts.EncodeADDI(regA0, 0, 0),
			insts.EncodeLW(regT1, regA1, 0), // loop:
			insts.EncodeSW(regT1, regA2, 0),
			insts.EncodeLW(regT2, regA2, 0),
			insts.EncodeADD(regA0, regA0, regT2),
			insts.EncodeADDI(regA1, regA1, 4),
			insts.EncodeADDI(regA2, regA2, 4),
			insts.EncodeADDI(regT0, regT0, -1),
			insts.EncodeBNE(regT0, 0, -28),
			insts.EncodeHalt(),
		),
		ExpectedExit: 36,
	}
}

// Every load reads the word the previous store just wrote.
func storeThenLoad() Benchmark {
	return Benchmark{
		Name:        "store_then_load",
		Description: "store followed by a load of the same word - measures store commit latency",
		Program: insts.BuildProgram(
			insts.EncodeLUI(regA1, 2),
			insts.EncodeADDI(regT0, 0, 3),
			insts.EncodeADDI(regT3, 0, 4),
			insts.EncodeADDI(regA0, 0, 0),
			insts.EncodeSW(regT0, regA1, 0), // loop:
			insts.EncodeLW(regT1, regA1, 0),
			insts.EncodeADD(regA0, regA0, regT1),
			insts.EncodeADDI(regT0, regT0, 1),
			insts.EncodeADDI(regT3, regT3, -1),
			insts.EncodeBNE(regT3, 0, -20),
			insts.EncodeHalt(),
		),
		ExpectedExit: 18, // 3+4+5+6
	}
}

// Walks a six-node linked list. Nodes are {next, value} at 16-byte strides.
func pointerChase() Benchmark {
	return Benchmark{
		Name:        "pointer_chase",
		Description: "linked-list traversal - measures load-to-load dependency latency",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			const nodes = 6
			for i := uint32(0); i < nodes; i++ {
				addr := 0x2000 + 16*i
				next := addr + 16
				if i == nodes-1 {
					next = 0
				}
				memory.Write32(addr, next)
				memory.Write32(addr+4, i+1)
			}
		},
		Program: insts.BuildProgram(
			insts.EncodeLUI(regA1, 2),
			insts.EncodeADDI(regA0, 0, 0),
			insts.EncodeLW(regT1, regA1, 4), // loop:
			insts.EncodeADD(regA0, regA0, regT1),
			insts.EncodeLW(regA1, regA1, 0),
			insts.EncodeBNE(regA1, 0, -12),
			insts.EncodeHalt(),
		),
		ExpectedExit: 21,
	}
}

// Calls a leaf function five times. Every return is a JALR, which locks
// fetch until it commits.
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 JAL/JALR call-return pairs - measures register jump overhead",
		Program: insts.BuildProgram(
			insts.EncodeADDI(regA0, 0, 0),
			insts.EncodeADDI(regT0, 0, 5),
			insts.EncodeJAL(regRA, 16), // loop: call add2
			insts.EncodeADDI(regT0, regT0, -1),
			insts.EncodeBNE(regT0, 0, -8),
			insts.EncodeHalt(),
			insts.EncodeADDI(regA0, regA0, 2), // add2:
			insts.EncodeJALR(0, regRA, 0),
		),
		ExpectedExit: 10,
	}
}

// A branch taken on every other iteration. The history bits learn it.
func branchAlternating() Benchmark {
	return Benchmark{
		Name:        "branch_alternating",
		Description: "branch on the low bit of a counter - measures history-based prediction",
		Program: insts.BuildProgram(
			insts.EncodeADDI(regT0, 0, 16),
			insts.EncodeADDI(regA0, 0, 0),
			insts.EncodeANDI(regT1, regT0, 1), // loop:
			insts.EncodeBEQ(regT1, 0, 8),
			insts.EncodeADDI(regA0, regA0, 1),
			insts.EncodeADDI(regT0, regT0, -1),
			insts.EncodeBNE(regT0, 0, -16),
			insts.EncodeHalt(),
		),
		ExpectedExit: 8,
	}
}

// Branches on the low bit of a xorshift sequence, which no predictor learns.
func branchStorm() Benchmark {
	return Benchmark{
		Name:        "branch_storm",
		Description: "branch on xorshift bits - measures misprediction recovery",
		Program: insts.BuildProgram(
			insts.EncodeLUI(regT0, 0x12345),
			insts.EncodeADDI(regT0, regT0, 0x678),
			insts.EncodeADDI(regT3, 0, 32),
			insts.EncodeADDI(regA0, 0, 0),
			insts.EncodeSLLI(regT1, regT0, 13), // loop:
			insts.EncodeOp(insts.OpXOR, regT0, regT0, regT1),
			insts.EncodeSRLI(regT1, regT0, 17),
			insts.EncodeOp(insts.OpXOR, regT0, regT0, regT1),
			insts.EncodeSLLI(regT1, regT0, 5),
			insts.EncodeOp(insts.OpXOR, regT0, regT0, regT1),
			insts.EncodeANDI(regT2, regT0, 1),
			insts.EncodeBEQ(regT2, 0, 8),
			insts.EncodeADDI(regA0, regA0, 1),
			insts.EncodeADDI(regT3, regT3, -1),
			insts.EncodeBNE(regT3, 0, -40),
			insts.EncodeHalt(),
		),
		ExpectedExit: -1, // checked against the reference emulator
	}
}

// Sub-word stores and sign/zero-extending loads.
func byteAccess() Benchmark {
	return Benchmark{
		Name:        "byte_access",
		Description: "byte and halfword accesses - measures sub-word load/store handling",
		Program: insts.BuildProgram(
			insts.EncodeLUI(regA1, 2),
			insts.EncodeADDI(regT0, 0, -1),
			insts.EncodeSB(regT0, regA1, 0),
			insts.EncodeLB(regT1, regA1, 0),  // -1
			insts.EncodeLBU(regT2, regA1, 0), // 255
			insts.EncodeADD(regA0, regT1, regT2),
			insts.EncodeSH(regT0, regA1, 4),
			insts.EncodeLH(regT3, regA1, 4), // -1
			insts.EncodeADD(regA0, regA0, regT3),
			insts.EncodeLHU(regT4, regA1, 4), // 65535
			insts.EncodeSRLI(regT4, regT4, 12),
			insts.EncodeADD(regA0, regA0, regT4),
			insts.EncodeHalt(),
		),
		ExpectedExit: 12, // 268 & 0xff
	}
}
