package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

var _ = Describe("Core", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		c       *core.Core
	)

	loopProgram := insts.BuildProgram(
		insts.EncodeADDI(1, 0, 10),
		insts.EncodeADDI(10, 0, 0),
		insts.EncodeADD(10, 10, 1),
		insts.EncodeADDI(1, 1, -1),
		insts.EncodeBNE(1, 0, -8),
		insts.HaltWord,
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
		c = core.NewCore(regFile, memory)
	})

	It("should create a core with pipeline", func() {
		Expect(c).NotTo(BeNil())
		Expect(c.Pipeline).NotTo(BeNil())
	})

	It("should set and get PC", func() {
		c.SetPC(0x1000)
		Expect(c.Pipeline.PC()).To(Equal(uint32(0x1000)))
	})

	It("should not be halted initially", func() {
		Expect(c.Halted()).To(BeFalse())
	})

	It("should execute instructions through tick", func() {
		memory.LoadProgram(0x1000, insts.BuildProgram(
			insts.EncodeADDI(1, 0, 42),
			insts.HaltWord,
		))
		c.SetPC(0x1000)

		for i := 0; i < 10 && c.Tick(); i++ {
		}

		Expect(regFile.ReadReg(1)).To(Equal(uint32(42)))
		Expect(c.Halted()).To(BeTrue())
	})

	It("should return stats", func() {
		memory.LoadProgram(0, loopProgram)

		code, err := c.Run()

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(int64(55)))
		stats := c.Stats()
		Expect(stats.Instructions).To(Equal(uint64(32)))
		Expect(stats.Branches).To(Equal(uint64(10)))
		Expect(stats.Cycles).To(BeNumerically(">", stats.Instructions))
		Expect(stats.CPI()).To(BeNumerically(">", 1.0))
		Expect(stats.BranchAccuracy()).To(BeNumerically(">", 0.0))
	})

	It("should stop after the requested number of cycles", func() {
		memory.LoadProgram(0, loopProgram)

		Expect(c.RunCycles(5)).To(BeTrue())
		Expect(c.Stats().Cycles).To(Equal(uint64(5)))
	})

	It("should run on an akita engine with the same result", func() {
		memory.LoadProgram(0, loopProgram)
		direct := core.NewCore(&emu.RegFile{}, memory)
		want, err := direct.Run()
		Expect(err).NotTo(HaveOccurred())

		code, err := c.RunOnEngine(1 * sim.GHz)

		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(want))
		Expect(c.Stats()).To(Equal(direct.Stats()))
	})

	It("should report pipeline errors from the engine", func() {
		memory.LoadProgram(0, insts.BuildProgram(0x00000000))

		_, err := c.RunOnEngine(1 * sim.GHz)

		Expect(err).To(MatchError(pipeline.ErrIllegalInstruction))
	})

	It("should reset", func() {
		memory.LoadProgram(0, loopProgram)
		_, err := c.Run()
		Expect(err).NotTo(HaveOccurred())

		c.Reset()

		Expect(c.Halted()).To(BeFalse())
		Expect(c.Stats().Cycles).To(BeZero())
	})
})
