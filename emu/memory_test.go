package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
	})

	It("should read zero from untouched memory", func() {
		Expect(memory.Read32(0x12345678)).To(Equal(uint32(0)))
		Expect(memory.TouchedPages()).To(BeEmpty())
	})

	It("should store words little-endian", func() {
		memory.Write32(0x100, 0xDEADBEEF)

		Expect(memory.Read8(0x100)).To(Equal(uint8(0xEF)))
		Expect(memory.Read8(0x103)).To(Equal(uint8(0xDE)))
		Expect(memory.Read16(0x102)).To(Equal(uint16(0xDEAD)))
	})

	It("should store only the access width", func() {
		memory.Write32(0x200, 0xFFFFFFFF)
		memory.Store(0x200, insts.WidthByte, 0x12345678)

		Expect(memory.Load(0x200, insts.WidthWord)).To(Equal(uint32(0xFFFFFF78)))
		Expect(memory.Load(0x200, insts.WidthHalf)).To(Equal(uint32(0xFF78)))
	})

	It("should wrap accesses at the top of the address space", func() {
		memory.Write32(0xFFFFFFFE, 0x11223344)

		Expect(memory.Read16(0xFFFFFFFE)).To(Equal(uint16(0x3344)))
		Expect(memory.Read16(0x0)).To(Equal(uint16(0x1122)))
	})

	It("should track written pages", func() {
		memory.Write32(0x1FFE, 1)

		Expect(memory.TouchedPages()).To(Equal([]uint32{0x1000, 0x2000}))
	})

	Describe("Diff", func() {
		It("should report identical memories as equal", func() {
			other := emu.NewMemory()
			memory.Write32(0x40, 7)
			other.Write32(0x40, 7)

			_, differs := memory.Diff(other)
			Expect(differs).To(BeFalse())
		})

		It("should report the first differing address", func() {
			other := emu.NewMemory()
			memory.Write32(0x40, 0x00000700)

			addr, differs := memory.Diff(other)
			Expect(differs).To(BeTrue())
			Expect(addr).To(Equal(uint32(0x41)))
		})
	})
})
