package insts

import "encoding/binary"

// Encoding helpers build RV32I instruction words. They are used by tests and
// the built-in benchmark programs, which are assembled without a toolchain.

func encodeR(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return funct7<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | uint32(rd&0x1F)<<7 | opcode
}

func encodeI(opcode, funct3 uint32, rd, rs1 uint8, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | uint32(rd&0x1F)<<7 | opcode
}

func encodeS(funct3 uint32, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7F)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		funct3<<12 | (u&0x1F)<<7 | opcodeStore
}

func encodeB(funct3 uint32, rs1, rs2 uint8, offset int32) uint32 {
	u := uint32(offset)
	return (u>>12&0x1)<<31 | (u>>5&0x3F)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | funct3<<12 | (u>>1&0xF)<<8 | (u>>11&0x1)<<7 |
		opcodeBranch
}

// EncodeLUI encodes LUI rd, imm20.
func EncodeLUI(rd uint8, imm20 uint32) uint32 {
	return (imm20&0xFFFFF)<<12 | uint32(rd&0x1F)<<7 | opcodeLUI
}

// EncodeAUIPC encodes AUIPC rd, imm20.
func EncodeAUIPC(rd uint8, imm20 uint32) uint32 {
	return (imm20&0xFFFFF)<<12 | uint32(rd&0x1F)<<7 | opcodeAUIPC
}

// EncodeJAL encodes JAL rd, offset. The offset is in bytes and must be even.
func EncodeJAL(rd uint8, offset int32) uint32 {
	u := uint32(offset)
	return (u>>20&0x1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&0x1)<<20 |
		(u>>12&0xFF)<<12 | uint32(rd&0x1F)<<7 | opcodeJAL
}

// EncodeJALR encodes JALR rd, imm(rs1).
func EncodeJALR(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(opcodeJALR, 0, rd, rs1, imm)
}

// EncodeBEQ encodes BEQ rs1, rs2, offset.
func EncodeBEQ(rs1, rs2 uint8, offset int32) uint32 { return encodeB(0b000, rs1, rs2, offset) }

// EncodeBNE encodes BNE rs1, rs2, offset.
func EncodeBNE(rs1, rs2 uint8, offset int32) uint32 { return encodeB(0b001, rs1, rs2, offset) }

// EncodeBLT encodes BLT rs1, rs2, offset.
func EncodeBLT(rs1, rs2 uint8, offset int32) uint32 { return encodeB(0b100, rs1, rs2, offset) }

// EncodeBGE encodes BGE rs1, rs2, offset.
func EncodeBGE(rs1, rs2 uint8, offset int32) uint32 { return encodeB(0b101, rs1, rs2, offset) }

// EncodeBLTU encodes BLTU rs1, rs2, offset.
func EncodeBLTU(rs1, rs2 uint8, offset int32) uint32 { return encodeB(0b110, rs1, rs2, offset) }

// EncodeBGEU encodes BGEU rs1, rs2, offset.
func EncodeBGEU(rs1, rs2 uint8, offset int32) uint32 { return encodeB(0b111, rs1, rs2, offset) }

// EncodeLB encodes LB rd, imm(rs1).
func EncodeLB(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeLoad, 0b000, rd, rs1, imm) }

// EncodeLH encodes LH rd, imm(rs1).
func EncodeLH(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeLoad, 0b001, rd, rs1, imm) }

// EncodeLW encodes LW rd, imm(rs1).
func EncodeLW(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeLoad, 0b010, rd, rs1, imm) }

// EncodeLBU encodes LBU rd, imm(rs1).
func EncodeLBU(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeLoad, 0b100, rd, rs1, imm) }

// EncodeLHU encodes LHU rd, imm(rs1).
func EncodeLHU(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeLoad, 0b101, rd, rs1, imm) }

// EncodeSB encodes SB rs2, imm(rs1).
func EncodeSB(rs2, rs1 uint8, imm int32) uint32 { return encodeS(0b000, rs1, rs2, imm) }

// EncodeSH encodes SH rs2, imm(rs1).
func EncodeSH(rs2, rs1 uint8, imm int32) uint32 { return encodeS(0b001, rs1, rs2, imm) }

// EncodeSW encodes SW rs2, imm(rs1).
func EncodeSW(rs2, rs1 uint8, imm int32) uint32 { return encodeS(0b010, rs1, rs2, imm) }

// EncodeADDI encodes ADDI rd, rs1, imm.
func EncodeADDI(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeOpImm, 0b000, rd, rs1, imm) }

// EncodeSLTI encodes SLTI rd, rs1, imm.
func EncodeSLTI(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeOpImm, 0b010, rd, rs1, imm) }

// EncodeSLTIU encodes SLTIU rd, rs1, imm.
func EncodeSLTIU(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(opcodeOpImm, 0b011, rd, rs1, imm)
}

// EncodeXORI encodes XORI rd, rs1, imm.
func EncodeXORI(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeOpImm, 0b100, rd, rs1, imm) }

// EncodeORI encodes ORI rd, rs1, imm.
func EncodeORI(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeOpImm, 0b110, rd, rs1, imm) }

// EncodeANDI encodes ANDI rd, rs1, imm.
func EncodeANDI(rd, rs1 uint8, imm int32) uint32 { return encodeI(opcodeOpImm, 0b111, rd, rs1, imm) }

// EncodeSLLI encodes SLLI rd, rs1, shamt.
func EncodeSLLI(rd, rs1, shamt uint8) uint32 {
	return encodeR(opcodeOpImm, 0b001, 0, rd, rs1, shamt)
}

// EncodeSRLI encodes SRLI rd, rs1, shamt.
func EncodeSRLI(rd, rs1, shamt uint8) uint32 {
	return encodeR(opcodeOpImm, 0b101, 0, rd, rs1, shamt)
}

// EncodeSRAI encodes SRAI rd, rs1, shamt.
func EncodeSRAI(rd, rs1, shamt uint8) uint32 {
	return encodeR(opcodeOpImm, 0b101, 0b0100000, rd, rs1, shamt)
}

// EncodeOp encodes a register-register ALU instruction.
// It returns 0 for operations that are not register-register ALU ops.
func EncodeOp(op Op, rd, rs1, rs2 uint8) uint32 {
	var funct3, funct7 uint32
	switch op {
	case OpADD:
	case OpSUB:
		funct7 = 0b0100000
	case OpSLL:
		funct3 = 0b001
	case OpSLT:
		funct3 = 0b010
	case OpSLTU:
		funct3 = 0b011
	case OpXOR:
		funct3 = 0b100
	case OpSRL:
		funct3 = 0b101
	case OpSRA:
		funct3, funct7 = 0b101, 0b0100000
	case OpOR:
		funct3 = 0b110
	case OpAND:
		funct3 = 0b111
	default:
		return 0
	}
	return encodeR(opcodeOp, funct3, funct7, rd, rs1, rs2)
}

// EncodeADD encodes ADD rd, rs1, rs2.
func EncodeADD(rd, rs1, rs2 uint8) uint32 { return EncodeOp(OpADD, rd, rs1, rs2) }

// EncodeSUB encodes SUB rd, rs1, rs2.
func EncodeSUB(rd, rs1, rs2 uint8) uint32 { return EncodeOp(OpSUB, rd, rs1, rs2) }

// EncodeHalt returns the halt sentinel.
func EncodeHalt() uint32 { return HaltWord }

// BuildProgram lays out instruction words as little-endian bytes.
func BuildProgram(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}
