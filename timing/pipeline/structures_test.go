package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

var _ = Describe("Producer", func() {
	It("should be free by default", func() {
		_, ok := pipeline.NoProducer.Get()
		Expect(ok).To(BeFalse())
		Expect(pipeline.Ready(7).Resolved()).To(BeTrue())
	})

	It("should resolve an operand from a matching message only", func() {
		op := pipeline.Waiting(3)

		Expect(op.Snoop(pipeline.Message{Tag: 2, Value: 9})).To(BeFalse())
		Expect(op.Resolved()).To(BeFalse())

		Expect(op.Snoop(pipeline.Message{Tag: 3, Value: 42})).To(BeTrue())
		Expect(op.Resolved()).To(BeTrue())
		Expect(op.Value).To(Equal(uint32(42)))
	})
})

var _ = Describe("Bus", func() {
	It("should list completions before the commit", func() {
		var bus pipeline.Bus
		bus.Publish(pipeline.Message{Tag: 1, Value: 1}, pipeline.Message{Tag: 2, Value: 2})
		bus.PublishCommit(pipeline.Message{Tag: 0, Value: 5})

		msgs := bus.Messages()
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[2].Kind).To(Equal(pipeline.MessageCommitted))
		Expect(msgs[2].Value).To(Equal(uint32(5)))

		bus.Clear()
		Expect(bus.Messages()).To(BeEmpty())
		Expect(bus.HasCommit).To(BeFalse())
	})
})

var _ = Describe("RegisterAliasTable", func() {
	var (
		regFile *emu.RegFile
		rat     *pipeline.RegisterAliasTable
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		regFile.WriteReg(5, 100)
		rat = pipeline.NewRegisterAliasTable(regFile)
	})

	It("should read committed values without a producer", func() {
		value, producer := rat.Read(5)
		Expect(value).To(Equal(uint32(100)))
		Expect(producer.Pending()).To(BeFalse())
	})

	It("should never rename x0", func() {
		rat.Rename(0, 4)
		Expect(rat.Pending(0)).To(BeFalse())
	})

	It("should keep a younger alias when an older producer commits", func() {
		rat.Rename(5, 1)
		rat.Rename(5, 2)

		rat.Commit(5, 1, 11)

		Expect(regFile.ReadReg(5)).To(Equal(uint32(11)))
		_, producer := rat.Read(5)
		tag, ok := producer.Get()
		Expect(ok).To(BeTrue())
		Expect(tag).To(Equal(pipeline.Tag(2)))

		rat.Commit(5, 2, 22)
		Expect(rat.Pending(5)).To(BeFalse())
		Expect(regFile.ReadReg(5)).To(Equal(uint32(22)))
	})

	It("should drop every alias on squash", func() {
		rat.Rename(1, 0)
		rat.Rename(2, 1)
		rat.Squash()
		Expect(rat.Pending(1)).To(BeFalse())
		Expect(rat.Pending(2)).To(BeFalse())
	})
})

var _ = Describe("ReservationStation", func() {
	var rs *pipeline.ReservationStation

	BeforeEach(func() {
		rs = pipeline.NewReservationStation(2)
	})

	It("should refuse inserts when full", func() {
		Expect(rs.Insert(insts.OpADD, pipeline.Ready(1), pipeline.Ready(2), 0)).To(BeTrue())
		Expect(rs.Insert(insts.OpADD, pipeline.Ready(1), pipeline.Ready(2), 1)).To(BeTrue())
		Expect(rs.Full()).To(BeTrue())
		Expect(rs.Capacity()).To(Equal(2))
		Expect(rs.Insert(insts.OpADD, pipeline.Ready(1), pipeline.Ready(2), 2)).To(BeFalse())
	})

	It("should execute only entries with resolved operands", func() {
		rs.Insert(insts.OpADD, pipeline.Ready(1), pipeline.Ready(2), 0)
		rs.Insert(insts.OpSUB, pipeline.Waiting(0), pipeline.Ready(1), 1)

		out, err := rs.Work()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ConsistOf(pipeline.Message{Tag: 0, Value: 3, Kind: pipeline.MessageExecuted}))

		rs.Snoop(out[0])
		rs.Sync()
		Expect(rs.Len()).To(Equal(1))

		out, err = rs.Work()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ConsistOf(pipeline.Message{Tag: 1, Value: 2, Kind: pipeline.MessageExecuted}))
		rs.Sync()
		Expect(rs.Len()).To(BeZero())
	})

	It("should keep an executed slot until the cycle ends", func() {
		rs.Insert(insts.OpADD, pipeline.Ready(1), pipeline.Ready(2), 0)
		rs.Insert(insts.OpADD, pipeline.Ready(1), pipeline.Ready(2), 1)

		_, err := rs.Work()
		Expect(err).NotTo(HaveOccurred())
		Expect(rs.Full()).To(BeTrue())

		rs.Sync()
		Expect(rs.Len()).To(BeZero())
	})

	It("should compare branch operands", func() {
		rs.Insert(insts.OpBLT, pipeline.Ready(0xFFFFFFFF), pipeline.Ready(0), 4)

		out, err := rs.Work()
		Expect(err).NotTo(HaveOccurred())
		Expect(out[0].Value).To(Equal(uint32(1)))
	})

	It("should empty on squash", func() {
		rs.Insert(insts.OpADD, pipeline.Waiting(3), pipeline.Ready(2), 0)
		rs.Squash()
		Expect(rs.Len()).To(BeZero())
		out, err := rs.Work()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})
})

var _ = Describe("ReorderBuffer", func() {
	var rob *pipeline.ReorderBuffer

	BeforeEach(func() {
		rob = pipeline.NewReorderBuffer(3)
	})

	It("should hand out tags in order and wrap", func() {
		Expect(rob.Capacity()).To(Equal(3))
		Expect(rob.Insert(pipeline.Entry{Done: true})).To(Equal(pipeline.Tag(0)))
		Expect(rob.Insert(pipeline.Entry{})).To(Equal(pipeline.Tag(1)))

		_, tag, ok := rob.Work()
		Expect(ok).To(BeTrue())
		Expect(tag).To(Equal(pipeline.Tag(0)))
		rob.Sync()

		Expect(rob.Insert(pipeline.Entry{})).To(Equal(pipeline.Tag(2)))
		Expect(rob.Insert(pipeline.Entry{})).To(Equal(pipeline.Tag(0)))
		Expect(rob.Full()).To(BeTrue())
	})

	It("should commit only a finished head", func() {
		rob.Insert(pipeline.Entry{Kind: pipeline.EntryRegister, Dest: 1})
		rob.Insert(pipeline.Entry{Kind: pipeline.EntryRegister, Dest: 2, Done: true})

		_, _, ok := rob.Work()
		Expect(ok).To(BeFalse())

		rob.Update(pipeline.Message{Tag: 0, Value: 9})
		head, tag, ok := rob.Work()
		Expect(ok).To(BeTrue())
		Expect(tag).To(Equal(pipeline.Tag(0)))
		Expect(head.Value).To(Equal(uint32(9)))
	})

	It("should expose finished values", func() {
		tag := rob.Insert(pipeline.Entry{})
		_, done := rob.Value(tag)
		Expect(done).To(BeFalse())

		rob.Update(pipeline.Message{Tag: tag, Value: 4})
		value, done := rob.Value(tag)
		Expect(done).To(BeTrue())
		Expect(value).To(Equal(uint32(4)))
	})

	It("should route a jump result to its target", func() {
		tag := rob.Insert(pipeline.Entry{Kind: pipeline.EntryJumpRegister, Value: 0x104})
		rob.Update(pipeline.Message{Tag: tag, Value: 0x800})

		head, _, ok := rob.Work()
		Expect(ok).To(BeTrue())
		Expect(head.Value).To(Equal(uint32(0x104)))
		Expect(head.Target).To(Equal(uint32(0x800)))
	})

	It("should ignore results for free slots", func() {
		rob.Update(pipeline.Message{Tag: 2, Value: 1})
		Expect(rob.Empty()).To(BeTrue())
	})

	It("should drop everything on squash", func() {
		rob.Insert(pipeline.Entry{Done: true})
		rob.Work()
		rob.Squash()
		rob.Sync()
		Expect(rob.Empty()).To(BeTrue())
		Expect(rob.NextTag()).To(Equal(pipeline.Tag(0)))
	})
})

var _ = Describe("LoadStoreQueue", func() {
	var (
		memory *emu.Memory
		lsq    *pipeline.LoadStoreQueue
	)

	cyclesUntilLoad := func() (pipeline.Message, int) {
		for cycle := 1; cycle <= 20; cycle++ {
			out := lsq.Work()
			lsq.Sync()
			for _, m := range out {
				if m.Kind == pipeline.MessageLoaded {
					return m, cycle
				}
			}
		}
		return pipeline.Message{}, -1
	}

	BeforeEach(func() {
		memory = emu.NewMemory()
		memory.Write32(0x100, 0xCAFEF00D)
		lsq = pipeline.NewLoadStoreQueue(4, pipeline.NewDirectMemoryPort(memory, 3))
	})

	It("should serve a load after the port latency", func() {
		lsq.InsertLoad(insts.WidthWord, false, pipeline.Ready(0xF0), 0x10, 5)

		m, cycle := cyclesUntilLoad()
		Expect(cycle).To(Equal(3))
		Expect(m.Tag).To(Equal(pipeline.Tag(5)))
		Expect(m.Value).To(Equal(uint32(0xCAFEF00D)))
		Expect(lsq.Len()).To(BeZero())
	})

	It("should extend narrow loads", func() {
		lsq.InsertLoad(insts.WidthByte, false, pipeline.Ready(0x100), 1, 0)
		m, _ := cyclesUntilLoad()
		Expect(m.Value).To(Equal(uint32(0xFFFFFFF0)))

		lsq.InsertLoad(insts.WidthHalf, true, pipeline.Ready(0x100), 2, 1)
		m, _ = cyclesUntilLoad()
		Expect(m.Value).To(Equal(uint32(0xCAFE)))
	})

	It("should wait for the base register", func() {
		lsq.InsertLoad(insts.WidthWord, false, pipeline.Waiting(2), 0, 3)
		Expect(lsq.Work()).To(BeEmpty())
		lsq.Sync()

		lsq.Snoop(pipeline.Message{Tag: 2, Value: 0x100})
		m, _ := cyclesUntilLoad()
		Expect(m.Value).To(Equal(uint32(0xCAFEF00D)))
	})

	It("should hold a load behind an uncommitted store", func() {
		lsq.InsertStore(insts.WidthWord, pipeline.Ready(0x100), pipeline.Ready(7), 0, 1)
		lsq.InsertLoad(insts.WidthWord, false, pipeline.Ready(0x100), 0, 2)

		out := lsq.Work()
		Expect(out).To(ConsistOf(pipeline.Message{Tag: 1, Value: 0x100, Kind: pipeline.MessageStored}))
		lsq.Sync()

		for i := 0; i < 5; i++ {
			Expect(lsq.Work()).To(BeEmpty())
			lsq.Sync()
		}
		Expect(memory.Read32(0x100)).To(Equal(uint32(0xCAFEF00D)))

		Expect(lsq.CommitStore(1)).To(Succeed())
		Expect(memory.Read32(0x100)).To(Equal(uint32(7)))
		lsq.Sync()

		m, _ := cyclesUntilLoad()
		Expect(m.Value).To(Equal(uint32(7)))

		loads, stores := lsq.Completed()
		Expect(loads).To(Equal(uint64(1)))
		Expect(stores).To(Equal(uint64(1)))
	})

	It("should hold a load behind a store whose address is unknown", func() {
		lsq.InsertStore(insts.WidthWord, pipeline.Waiting(4), pipeline.Ready(7), 0, 1)
		lsq.InsertLoad(insts.WidthWord, false, pipeline.Ready(0x100), 0, 2)

		for i := 0; i < 5; i++ {
			Expect(lsq.Work()).To(BeEmpty())
			lsq.Sync()
		}
		Expect(lsq.CommitStore(1)).To(MatchError(ContainSubstring("unresolved")))

		lsq.Snoop(pipeline.Message{Tag: 4, Value: 0x100})
		Expect(lsq.Work()).To(ConsistOf(pipeline.Message{Tag: 1, Value: 0x100, Kind: pipeline.MessageStored}))
		lsq.Sync()

		for i := 0; i < 5; i++ {
			Expect(lsq.Work()).To(BeEmpty())
			lsq.Sync()
		}
		Expect(memory.Read32(0x100)).To(Equal(uint32(0xCAFEF00D)))

		Expect(lsq.CommitStore(1)).To(Succeed())
		lsq.Sync()

		m, _ := cyclesUntilLoad()
		Expect(m.Tag).To(Equal(pipeline.Tag(2)))
		Expect(m.Value).To(Equal(uint32(7)))
	})

	It("should serve one load at a time", func() {
		lsq.InsertLoad(insts.WidthWord, false, pipeline.Ready(0x100), 0, 0)
		lsq.InsertLoad(insts.WidthWord, false, pipeline.Ready(0x100), 0, 1)

		first, c1 := cyclesUntilLoad()
		second, c2 := cyclesUntilLoad()
		Expect(first.Tag).To(Equal(pipeline.Tag(0)))
		Expect(second.Tag).To(Equal(pipeline.Tag(1)))
		Expect(c1).To(Equal(3))
		Expect(c2).To(Equal(3))
	})

	It("should fail to commit an unknown store", func() {
		Expect(lsq.CommitStore(3)).To(HaveOccurred())
	})

	It("should refuse inserts when full and empty on squash", func() {
		for i := 0; i < 4; i++ {
			Expect(lsq.InsertLoad(insts.WidthWord, false, pipeline.Waiting(9), 0, pipeline.Tag(i))).To(BeTrue())
		}
		Expect(lsq.Full()).To(BeTrue())
		Expect(lsq.Capacity()).To(Equal(4))
		Expect(lsq.InsertStore(insts.WidthWord, pipeline.Ready(0), pipeline.Ready(0), 0, 4)).To(BeFalse())

		lsq.Squash()
		Expect(lsq.Len()).To(BeZero())
		Expect(lsq.Busy()).To(BeFalse())
	})
})
