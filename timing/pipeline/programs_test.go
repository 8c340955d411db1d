package pipeline_test

import "github.com/sarchlab/tomasim/insts"

// Test programs. All of them are loaded at address 0 and end with the halt
// word.

var sumLoopProgram = []uint32{
	insts.EncodeADDI(1, 0, 10),
	insts.EncodeADDI(10, 0, 0),
	insts.EncodeADD(10, 10, 1),
	insts.EncodeADDI(1, 1, -1),
	insts.EncodeBNE(1, 0, -8),
	insts.HaltWord,
}

var memcpyProgram = []uint32{
	insts.EncodeADDI(1, 0, 0x100),
	insts.EncodeADDI(3, 0, 8),
	insts.EncodeADDI(5, 0, 0),
	insts.EncodeSW(5, 1, 0), // fill: 12
	insts.EncodeADDI(5, 5, 3),
	insts.EncodeADDI(1, 1, 4),
	insts.EncodeADDI(3, 3, -1),
	insts.EncodeBNE(3, 0, -16),
	insts.EncodeADDI(1, 0, 0x100),
	insts.EncodeADDI(2, 0, 0x200),
	insts.EncodeADDI(3, 0, 8),
	insts.EncodeLW(4, 1, 0), // copy: 44
	insts.EncodeSW(4, 2, 0),
	insts.EncodeADDI(1, 1, 4),
	insts.EncodeADDI(2, 2, 4),
	insts.EncodeADDI(3, 3, -1),
	insts.EncodeBNE(3, 0, -20),
	insts.EncodeLW(10, 2, -4),
	insts.HaltWord,
}

var callReturnProgram = []uint32{
	insts.EncodeJAL(1, 12),
	insts.EncodeADDI(10, 10, 1),
	insts.HaltWord,
	insts.EncodeADDI(10, 0, 40),
	insts.EncodeJALR(0, 1, 0),
}

var alternatingBranchProgram = []uint32{
	insts.EncodeADDI(1, 0, 20),
	insts.EncodeADDI(10, 0, 0),
	insts.EncodeANDI(6, 1, 1), // loop: 8
	insts.EncodeBEQ(6, 0, 8),
	insts.EncodeADDI(10, 10, 3),
	insts.EncodeADDI(1, 1, -1),
	insts.EncodeBNE(1, 0, -16),
	insts.HaltWord,
}

var storeLoadProgram = []uint32{
	insts.EncodeADDI(1, 0, 0x300),
	insts.EncodeADDI(2, 0, 17),
	insts.EncodeSW(2, 1, 0),
	insts.EncodeLW(3, 1, 0),
	insts.EncodeADDI(3, 3, 1),
	insts.EncodeSW(3, 1, 4),
	insts.EncodeLW(10, 1, 4),
	insts.EncodeSH(10, 1, 8),
	insts.EncodeLBU(11, 1, 8),
	insts.EncodeADD(10, 10, 11),
	insts.HaltWord,
}

var signExtendProgram = []uint32{
	insts.EncodeADDI(1, 0, 0x100),
	insts.EncodeADDI(2, 0, -2),
	insts.EncodeSB(2, 1, 0),
	insts.EncodeLBU(10, 1, 0),
	insts.EncodeLB(11, 1, 0),
	insts.EncodeLH(12, 1, 0),
	insts.EncodeSRAI(13, 11, 4),
	insts.EncodeOp(insts.OpSLTU, 14, 0, 11),
	insts.HaltWord,
}

var upperImmediateProgram = []uint32{
	insts.EncodeLUI(5, 0x12345),
	insts.EncodeAUIPC(6, 0x1),
	insts.EncodeSRLI(10, 5, 12),
	insts.EncodeANDI(10, 10, 0xFF),
	insts.EncodeOp(insts.OpXOR, 7, 5, 6),
	insts.HaltWord,
}

var wrongPathStoreProgram = []uint32{
	insts.EncodeADDI(1, 0, 99),
	insts.EncodeADDI(2, 0, 0x400),
	insts.EncodeBEQ(0, 0, 12),
	insts.EncodeSW(1, 2, 0),
	insts.EncodeADDI(10, 0, 1),
	insts.EncodeLW(10, 2, 0),
	insts.HaltWord,
}

// The second store's base comes from a load, so its address is unknown
// when the final load issues behind it.
var lateStoreAddressProgram = []uint32{
	insts.EncodeADDI(3, 0, 0x500),
	insts.EncodeSW(3, 0, 0x7F0),
	insts.EncodeADDI(2, 0, 42),
	insts.EncodeLW(1, 0, 0x7F0),
	insts.EncodeSW(2, 1, 0),
	insts.EncodeLW(10, 1, 0),
	insts.HaltWord,
}

var branchyStoreProgram = []uint32{
	insts.EncodeADDI(1, 0, 16),
	insts.EncodeADDI(10, 0, 0),
	insts.EncodeANDI(6, 1, 3), // loop: 8
	insts.EncodeBNE(6, 0, 8),
	insts.EncodeADDI(10, 10, 5),
	insts.EncodeSLLI(7, 1, 2),
	insts.EncodeSW(10, 7, 0x200),
	insts.EncodeADDI(1, 1, -1),
	insts.EncodeBNE(1, 0, -24),
	insts.HaltWord,
}
