// Package insts provides RV32I instruction definitions, decoding and encoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. It supports the RV32I base integer set:
//   - Upper immediates: LUI, AUIPC
//   - Jumps: JAL, JALR
//   - Conditional branches: BEQ, BNE, BLT, BGE, BLTU, BGEU
//   - Loads and stores: LB, LH, LW, LBU, LHU, SB, SH, SW
//   - Register-immediate and register-register ALU operations
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x02A00093) // ADDI x1, x0, 42
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts

// HaltWord is the instruction word that ends a simulation (addi a0, zero, 255).
// It is recognized by its raw encoding and never executed.
const HaltWord uint32 = 0x0ff00513

// RegA0 is the register that carries a program's result when it halts.
const RegA0 uint8 = 10
