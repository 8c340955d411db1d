package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/timing/pipeline"
)

var _ = Describe("BranchPredictor", func() {
	var bp *pipeline.BranchPredictor

	BeforeEach(func() {
		bp = pipeline.NewBranchPredictor(pipeline.BranchPredictorConfig{
			IndexBits:   4,
			HistoryBits: 4,
		})
	})

	Describe("Prediction", func() {
		It("should initially predict not taken", func() {
			Expect(bp.Predict(0x1000)).To(BeFalse())
			Expect(bp.InFlight()).To(Equal(1))
		})

		It("should start every counter weakly not taken", func() {
			snap := bp.Snapshot(0x1000)
			Expect(snap.Counters).To(HaveLen(16))
			for _, c := range snap.Counters {
				Expect(c).To(Equal(pipeline.WeaklyNotTaken))
			}
		})

		It("should learn an always-taken branch", func() {
			pc := uint32(0x1000)
			for i := 0; i < 20; i++ {
				taken := bp.Predict(pc)
				bp.Resolve(!taken, true)
			}

			Expect(bp.Predict(pc)).To(BeTrue())

			stats := bp.Stats()
			Expect(stats.Predictions).To(Equal(uint64(20)))
			Expect(stats.Mispredictions).To(Equal(uint64(5)))
			Expect(stats.Correct).To(Equal(uint64(15)))
			Expect(stats.Accuracy()).To(BeNumerically("~", 0.75, 0.001))
			Expect(stats.MispredictionRate()).To(BeNumerically("~", 0.25, 0.001))
		})

		It("should learn an alternating branch from its history", func() {
			pc := uint32(0x2000)
			outcome := false
			for i := 0; i < 40; i++ {
				taken := bp.Predict(pc)
				bp.Resolve(taken != outcome, outcome)
				outcome = !outcome
			}

			before := bp.Stats().Mispredictions
			for i := 0; i < 10; i++ {
				taken := bp.Predict(pc)
				Expect(taken).To(Equal(outcome))
				bp.Resolve(false, outcome)
				outcome = !outcome
			}
			Expect(bp.Stats().Mispredictions).To(Equal(before))
		})
	})

	Describe("Repeated prediction", func() {
		It("should leave trained state alone until a resolve", func() {
			pc := uint32(0x1010)
			for i := 0; i < 6; i++ {
				taken := bp.Predict(pc)
				bp.Resolve(!taken, true)
			}
			before := bp.Snapshot(pc)
			stats := bp.Stats()
			lookups := bp.Lookups()

			for i := 0; i < 8; i++ {
				Expect(bp.Predict(pc)).To(BeTrue())
			}

			after := bp.Snapshot(pc)
			Expect(after.Counters).To(Equal(before.Counters))
			Expect(after.Pattern).To(Equal(before.Pattern))
			Expect(bp.Stats()).To(Equal(stats))
			Expect(bp.InFlight()).To(Equal(8))
			Expect(bp.Lookups()).To(Equal(lookups + 8))

			bp.Squash()
			Expect(bp.Snapshot(pc)).To(Equal(before))
		})

		It("should give the same answer for an untrained branch", func() {
			for i := 0; i < 5; i++ {
				Expect(bp.Predict(0x1020)).To(BeFalse())
			}
			Expect(bp.Snapshot(0x1020).Counters).To(HaveEach(pipeline.WeaklyNotTaken))
			Expect(bp.Stats()).To(Equal(pipeline.BranchPredictorStats{}))
		})
	})

	Describe("Resolution order", func() {
		It("should resolve the oldest prediction first", func() {
			bp.Predict(0x1000)
			bp.Predict(0x1004)

			bp.Resolve(false, false)

			Expect(bp.InFlight()).To(Equal(1))
			Expect(bp.Snapshot(0x1000).Counters[0]).To(Equal(pipeline.StronglyNotTaken))
			Expect(bp.Snapshot(0x1004).Counters[0]).To(Equal(pipeline.WeaklyNotTaken))
		})

		It("should train on the committed history, not the speculative one", func() {
			bp.Predict(0x1000)
			bp.Predict(0x1000)

			bp.Resolve(false, false)

			snap := bp.Snapshot(0x1000)
			Expect(snap.Counters[0]).To(Equal(pipeline.StronglyNotTaken))
			Expect(snap.Pattern).To(Equal(uint8(0)))
		})

		It("should ignore a resolve with nothing in flight", func() {
			bp.Resolve(true, true)
			Expect(bp.Stats().Predictions).To(BeZero())
		})
	})

	Describe("Misprediction recovery", func() {
		It("should discard every in-flight prediction", func() {
			bp.Predict(0x1000)
			bp.Predict(0x1004)
			bp.Predict(0x1000)

			bp.Resolve(true, true)

			Expect(bp.InFlight()).To(BeZero())
			snap := bp.Snapshot(0x1000)
			Expect(snap.Speculative).To(Equal(snap.Pattern))
			Expect(snap.Pattern).To(Equal(uint8(1)))
		})

		It("should leave the table unchanged by a predict and squash round trip", func() {
			pc := uint32(0x1008)
			for i := 0; i < 5; i++ {
				taken := bp.Predict(pc)
				bp.Resolve(!taken, true)
			}
			before := bp.Snapshot(pc)

			bp.Predict(pc)
			bp.Predict(pc)
			bp.Squash()

			Expect(bp.Snapshot(pc)).To(Equal(before))
			Expect(bp.InFlight()).To(BeZero())
		})
	})

	Describe("Indexing", func() {
		It("should alias branches that share the index bits", func() {
			bp.Predict(0x0)
			bp.Resolve(true, true)

			Expect(bp.Snapshot(0x40)).To(Equal(bp.Snapshot(0x0)))
			Expect(bp.Snapshot(0x4)).NotTo(Equal(bp.Snapshot(0x0)))
		})
	})

	Describe("Reset", func() {
		It("should clear state and statistics", func() {
			bp.Predict(0x1000)
			bp.Resolve(true, true)

			bp.Reset()

			Expect(bp.Stats()).To(Equal(pipeline.BranchPredictorStats{}))
			Expect(bp.InFlight()).To(BeZero())
			Expect(bp.Snapshot(0x1000).Pattern).To(BeZero())
			Expect(bp.Lookups()).To(BeZero())
		})
	})
})
