// Package insts provides RV32I instruction definitions and decoding.
package insts

import "fmt"

// Op represents an RV32I operation.
type Op uint8

// RV32I opcodes.
const (
	OpUnknown Op = iota
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
)

var opNames = [...]string{
	OpUnknown: "unknown",
	OpLUI:     "lui",
	OpAUIPC:   "auipc",
	OpJAL:     "jal",
	OpJALR:    "jalr",
	OpBEQ:     "beq",
	OpBNE:     "bne",
	OpBLT:     "blt",
	OpBGE:     "bge",
	OpBLTU:    "bltu",
	OpBGEU:    "bgeu",
	OpLB:      "lb",
	OpLH:      "lh",
	OpLW:      "lw",
	OpLBU:     "lbu",
	OpLHU:     "lhu",
	OpSB:      "sb",
	OpSH:      "sh",
	OpSW:      "sw",
	OpADD:     "add",
	OpSUB:     "sub",
	OpSLL:     "sll",
	OpSLT:     "slt",
	OpSLTU:    "sltu",
	OpXOR:     "xor",
	OpSRL:     "srl",
	OpSRA:     "sra",
	OpOR:      "or",
	OpAND:     "and",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Format represents the operation class, which is the major opcode group.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatLUI            // Load upper immediate
	FormatAUIPC          // Add upper immediate to PC
	FormatJAL            // Jump and link
	FormatJALR           // Jump and link register
	FormatBranch         // Conditional branch
	FormatLoad           // Memory load
	FormatStore          // Memory store
	FormatOpImm          // Register-immediate ALU
	FormatOp             // Register-register ALU
)

// Major opcodes, bits [6:0].
const (
	opcodeLUI    = 0b0110111
	opcodeAUIPC  = 0b0010111
	opcodeJAL    = 0b1101111
	opcodeJALR   = 0b1100111
	opcodeBranch = 0b1100011
	opcodeLoad   = 0b0000011
	opcodeStore  = 0b0100011
	opcodeOpImm  = 0b0010011
	opcodeOp     = 0b0110011
)

// Width is the size of a memory access in bytes.
type Width uint8

// Memory access widths.
const (
	WidthByte Width = 1
	WidthHalf Width = 2
	WidthWord Width = 4
)

// Instruction represents a decoded RV32I instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Operation class

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register
	Rs2 uint8 // Second source register

	// Imm is the sign-extended immediate. For U-type instructions it already
	// holds the shifted value (imm << 12); for shifts it is the shift amount.
	Imm int32

	// Memory access fields.
	Width    Width // Access size for loads and stores
	Unsigned bool  // Zero-extend on load (LBU, LHU)

	// Raw is the undecoded instruction word.
	Raw uint32
}

// IsBranch returns true for conditional branches.
func (i *Instruction) IsBranch() bool { return i.Format == FormatBranch }

// IsMemory returns true for loads and stores.
func (i *Instruction) IsMemory() bool {
	return i.Format == FormatLoad || i.Format == FormatStore
}

// WritesRegister returns true if the instruction produces a register result.
func (i *Instruction) WritesRegister() bool {
	switch i.Format {
	case FormatLUI, FormatAUIPC, FormatJAL, FormatJALR, FormatLoad, FormatOpImm, FormatOp:
		return i.Rd != 0
	default:
		return false
	}
}

// String formats the instruction in a compact assembler-like form.
func (i *Instruction) String() string {
	switch i.Format {
	case FormatLUI, FormatAUIPC:
		return fmt.Sprintf("%s x%d, 0x%x", i.Op, i.Rd, uint32(i.Imm)>>12)
	case FormatJAL:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, i.Imm)
	case FormatJALR, FormatLoad:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
	case FormatBranch:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, i.Imm)
	case FormatStore:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatOpImm:
		return fmt.Sprintf("%si x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	case FormatOp:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	default:
		return fmt.Sprintf("unknown 0x%08x", i.Raw)
	}
}

// Decoder decodes RV32I machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32I instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RV32I instruction word.
// Words that do not encode a supported instruction decode to OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown, Format: FormatUnknown, Raw: word}

	rd := uint8((word >> 7) & 0x1F)   // bits [11:7]
	funct3 := (word >> 12) & 0x7      // bits [14:12]
	rs1 := uint8((word >> 15) & 0x1F) // bits [19:15]
	rs2 := uint8((word >> 20) & 0x1F) // bits [24:20]
	funct7 := (word >> 25) & 0x7F     // bits [31:25]

	switch word & 0x7F {
	case opcodeLUI:
		inst.Format = FormatLUI
		inst.Op = OpLUI
		inst.Rd = rd
		inst.Imm = immU(word)
	case opcodeAUIPC:
		inst.Format = FormatAUIPC
		inst.Op = OpAUIPC
		inst.Rd = rd
		inst.Imm = immU(word)
	case opcodeJAL:
		inst.Format = FormatJAL
		inst.Op = OpJAL
		inst.Rd = rd
		inst.Imm = immJ(word)
	case opcodeJALR:
		if funct3 != 0 {
			return inst
		}
		inst.Format = FormatJALR
		inst.Op = OpJALR
		inst.Rd = rd
		inst.Rs1 = rs1
		inst.Imm = immI(word)
	case opcodeBranch:
		d.decodeBranch(word, funct3, rs1, rs2, inst)
	case opcodeLoad:
		d.decodeLoad(word, funct3, rd, rs1, inst)
	case opcodeStore:
		d.decodeStore(word, funct3, rs1, rs2, inst)
	case opcodeOpImm:
		d.decodeOpImm(word, funct3, funct7, rd, rs1, rs2, inst)
	case opcodeOp:
		d.decodeOp(funct3, funct7, rd, rs1, rs2, inst)
	}

	return inst
}

// decodeBranch decodes B-type conditional branches.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | 1100011
func (d *Decoder) decodeBranch(word, funct3 uint32, rs1, rs2 uint8, inst *Instruction) {
	var op Op
	switch funct3 {
	case 0b000:
		op = OpBEQ
	case 0b001:
		op = OpBNE
	case 0b100:
		op = OpBLT
	case 0b101:
		op = OpBGE
	case 0b110:
		op = OpBLTU
	case 0b111:
		op = OpBGEU
	default:
		return
	}

	inst.Format = FormatBranch
	inst.Op = op
	inst.Rs1 = rs1
	inst.Rs2 = rs2
	inst.Imm = immB(word)
}

// decodeLoad decodes I-type loads.
func (d *Decoder) decodeLoad(word, funct3 uint32, rd, rs1 uint8, inst *Instruction) {
	switch funct3 {
	case 0b000:
		inst.Op, inst.Width = OpLB, WidthByte
	case 0b001:
		inst.Op, inst.Width = OpLH, WidthHalf
	case 0b010:
		inst.Op, inst.Width = OpLW, WidthWord
	case 0b100:
		inst.Op, inst.Width, inst.Unsigned = OpLBU, WidthByte, true
	case 0b101:
		inst.Op, inst.Width, inst.Unsigned = OpLHU, WidthHalf, true
	default:
		return
	}

	inst.Format = FormatLoad
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Imm = immI(word)
}

// decodeStore decodes S-type stores.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | 0100011
func (d *Decoder) decodeStore(word, funct3 uint32, rs1, rs2 uint8, inst *Instruction) {
	switch funct3 {
	case 0b000:
		inst.Op, inst.Width = OpSB, WidthByte
	case 0b001:
		inst.Op, inst.Width = OpSH, WidthHalf
	case 0b010:
		inst.Op, inst.Width = OpSW, WidthWord
	default:
		return
	}

	inst.Format = FormatStore
	inst.Rs1 = rs1
	inst.Rs2 = rs2
	inst.Imm = immS(word)
}

// decodeOpImm decodes register-immediate ALU instructions.
// Shifts carry the shift amount in the rs2 field and use funct7 to select SRAI.
func (d *Decoder) decodeOpImm(word, funct3, funct7 uint32, rd, rs1, shamt uint8, inst *Instruction) {
	imm := immI(word)

	switch funct3 {
	case 0b000:
		inst.Op = OpADD
	case 0b010:
		inst.Op = OpSLT
	case 0b011:
		inst.Op = OpSLTU
	case 0b100:
		inst.Op = OpXOR
	case 0b110:
		inst.Op = OpOR
	case 0b111:
		inst.Op = OpAND
	case 0b001:
		if funct7 != 0 {
			return
		}
		inst.Op = OpSLL
		imm = int32(shamt)
	case 0b101:
		switch funct7 {
		case 0b0000000:
			inst.Op = OpSRL
		case 0b0100000:
			inst.Op = OpSRA
		default:
			return
		}
		imm = int32(shamt)
	}

	inst.Format = FormatOpImm
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Imm = imm
}

// decodeOp decodes register-register ALU instructions.
func (d *Decoder) decodeOp(funct3, funct7 uint32, rd, rs1, rs2 uint8, inst *Instruction) {
	alt := funct7 == 0b0100000
	if funct7 != 0 && !alt {
		return
	}

	switch funct3 {
	case 0b000:
		inst.Op = OpADD
		if alt {
			inst.Op = OpSUB
		}
	case 0b101:
		inst.Op = OpSRL
		if alt {
			inst.Op = OpSRA
		}
	default:
		if alt {
			return
		}
		inst.Op = [...]Op{0b001: OpSLL, 0b010: OpSLT, 0b011: OpSLTU,
			0b100: OpXOR, 0b110: OpOR, 0b111: OpAND}[funct3]
	}

	inst.Format = FormatOp
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Rs2 = rs2
}

// immI extracts the sign-extended I-type immediate, bits [31:20].
func immI(word uint32) int32 {
	return int32(word) >> 20
}

// immS extracts the sign-extended S-type immediate.
func immS(word uint32) int32 {
	return (int32(word)>>25)<<5 | int32((word>>7)&0x1F)
}

// immB extracts the sign-extended B-type immediate (a byte offset, bit 0 is zero).
func immB(word uint32) int32 {
	return (int32(word)>>31)<<12 |
		int32((word>>7)&0x1)<<11 |
		int32((word>>25)&0x3F)<<5 |
		int32((word>>8)&0xF)<<1
}

// immU extracts the U-type immediate already shifted into bits [31:12].
func immU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

// immJ extracts the sign-extended J-type immediate (a byte offset).
func immJ(word uint32) int32 {
	return (int32(word)>>31)<<20 |
		int32((word>>12)&0xFF)<<12 |
		int32((word>>20)&0x1)<<11 |
		int32((word>>21)&0x3FF)<<1
}
