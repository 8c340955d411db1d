package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

var _ = Describe("Branch helpers", func() {
	Describe("BranchTaken", func() {
		DescribeTable("conditions",
			func(op insts.Op, a, b uint32, taken bool) {
				Expect(emu.BranchTaken(op, a, b)).To(Equal(taken))
			},
			Entry("BEQ equal", insts.OpBEQ, uint32(7), uint32(7), true),
			Entry("BEQ different", insts.OpBEQ, uint32(7), uint32(8), false),
			Entry("BNE different", insts.OpBNE, uint32(1), uint32(2), true),
			Entry("BLT signed", insts.OpBLT, uint32(0xFFFFFFFF), uint32(0), true),
			Entry("BLTU unsigned", insts.OpBLTU, uint32(0xFFFFFFFF), uint32(0), false),
			Entry("BGE equal", insts.OpBGE, uint32(5), uint32(5), true),
			Entry("BGE signed", insts.OpBGE, uint32(0), uint32(0x80000000), true),
			Entry("BGEU unsigned", insts.OpBGEU, uint32(0), uint32(0x80000000), false),
			Entry("non-branch op", insts.OpADD, uint32(1), uint32(1), false),
		)
	})

	Describe("BranchTarget", func() {
		It("should branch forward", func() {
			Expect(emu.BranchTarget(0x1000, 100)).To(Equal(uint32(0x1000 + 100)))
		})

		It("should branch backward", func() {
			Expect(emu.BranchTarget(0x1000, -100)).To(Equal(uint32(0x1000 - 100)))
		})
	})

	Describe("JumpTarget", func() {
		It("should clear bit 0 of the sum", func() {
			Expect(emu.JumpTarget(0x2001, 2)).To(Equal(uint32(0x2002)))
		})

		It("should wrap around the address space", func() {
			Expect(emu.JumpTarget(0x4, -8)).To(Equal(uint32(0xFFFFFFFC)))
		})
	})
})
