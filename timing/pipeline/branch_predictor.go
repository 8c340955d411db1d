package pipeline

// BranchPredictorConfig holds configuration for the branch predictor.
type BranchPredictorConfig struct {
	// IndexBits is the number of PC bits selecting a table entry. The two
	// low PC bits are always zero and are skipped. Default is 12 (4096
	// entries).
	IndexBits int
	// HistoryBits is the length of the per-entry pattern history. Each entry
	// keeps one 2-bit counter per history pattern. Default is 4.
	HistoryBits int
}

// DefaultBranchPredictorConfig returns a default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		IndexBits:   12,
		HistoryBits: 4,
	}
}

// BranchPredictorStats holds statistics for the branch predictor. Only
// resolved predictions are counted.
type BranchPredictorStats struct {
	// Predictions is the number of predictions resolved at commit.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
}

// Accuracy returns the fraction of predictions that were correct, or 0
// with no predictions.
func (s BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions)
}

// MispredictionRate returns the fraction of predictions that were wrong.
func (s BranchPredictorStats) MispredictionRate() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Predictions)
}

// CounterState is a 2-bit saturating counter.
type CounterState uint8

// Counter states. The high bit is the predicted direction.
const (
	StronglyNotTaken CounterState = iota
	WeaklyNotTaken
	WeaklyTaken
	StronglyTaken
)

// Taken reports the direction the counter predicts.
func (c CounterState) Taken() bool {
	return c >= WeaklyTaken
}

func (c CounterState) next(taken bool) CounterState {
	if taken {
		if c < StronglyTaken {
			return c + 1
		}
		return c
	}
	if c > StronglyNotTaken {
		return c - 1
	}
	return c
}

type predictorEntry struct {
	counters []CounterState
	// pattern is the history of resolved outcomes.
	pattern uint8
	// speculative is pattern extended by the predictions still in flight.
	speculative uint8
}

// EntrySnapshot is a copy of one predictor entry.
type EntrySnapshot struct {
	Pattern     uint8
	Speculative uint8
	Counters    []CounterState
}

// BranchPredictor is a per-branch two-level predictor. Every table entry
// keeps a pattern history and one 2-bit counter per pattern. Predictions
// are made at fetch from a speculative copy of the history and resolved in
// fetch order at commit; training uses the committed history only.
type BranchPredictor struct {
	entries     []predictorEntry
	indexMask   uint32
	historyMask uint8

	// inFlight holds the table index of every unresolved prediction, oldest
	// first.
	inFlight []uint32

	stats BranchPredictorStats
	// lookups counts Predict calls, squashed ones included. It never feeds
	// a prediction.
	lookups uint64
}

// NewBranchPredictor creates a new branch predictor with the given configuration.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	if config.IndexBits <= 0 {
		config.IndexBits = 12
	}
	if config.HistoryBits <= 0 {
		config.HistoryBits = 4
	}
	if config.HistoryBits > 8 {
		config.HistoryBits = 8
	}

	bp := &BranchPredictor{
		entries:     make([]predictorEntry, 1<<config.IndexBits),
		indexMask:   uint32(1)<<config.IndexBits - 1,
		historyMask: uint8(uint16(1)<<config.HistoryBits - 1),
	}
	for i := range bp.entries {
		bp.entries[i].counters = make([]CounterState, 1<<config.HistoryBits)
	}
	bp.Reset()

	return bp
}

func (bp *BranchPredictor) index(pc uint32) uint32 {
	return (pc >> 2) & bp.indexMask
}

// Predict returns the predicted direction of the branch at pc and records
// the prediction as in flight.
func (bp *BranchPredictor) Predict(pc uint32) bool {
	idx := bp.index(pc)
	e := &bp.entries[idx]

	taken := e.counters[e.speculative].Taken()
	e.speculative = bp.shift(e.speculative, taken)

	bp.inFlight = append(bp.inFlight, idx)
	bp.lookups++
	return taken
}

func (bp *BranchPredictor) shift(history uint8, taken bool) uint8 {
	history <<= 1
	if taken {
		history |= 1
	}
	return history & bp.historyMask
}

// Resolve retires the oldest in-flight prediction with the actual outcome.
// On a misprediction every in-flight prediction is discarded and the
// speculative histories fall back to the committed ones.
func (bp *BranchPredictor) Resolve(mispredicted, taken bool) {
	if len(bp.inFlight) == 0 {
		return
	}

	idx := bp.inFlight[0]
	e := &bp.entries[idx]
	e.counters[e.pattern] = e.counters[e.pattern].next(taken)
	e.pattern = bp.shift(e.pattern, taken)

	bp.stats.Predictions++
	if !mispredicted {
		bp.stats.Correct++
		bp.inFlight = bp.inFlight[1:]
		return
	}

	bp.stats.Mispredictions++
	bp.Squash()
}

// Squash discards every in-flight prediction.
func (bp *BranchPredictor) Squash() {
	for _, idx := range bp.inFlight {
		e := &bp.entries[idx]
		e.speculative = e.pattern
	}
	bp.inFlight = bp.inFlight[:0]
}

// InFlight returns the number of unresolved predictions.
func (bp *BranchPredictor) InFlight() int {
	return len(bp.inFlight)
}

// Snapshot returns a copy of the entry used for pc.
func (bp *BranchPredictor) Snapshot(pc uint32) EntrySnapshot {
	e := bp.entries[bp.index(pc)]
	counters := make([]CounterState, len(e.counters))
	copy(counters, e.counters)
	return EntrySnapshot{
		Pattern:     e.pattern,
		Speculative: e.speculative,
		Counters:    counters,
	}
}

// Stats returns branch predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Lookups returns the number of predictions made at fetch, including those
// later squashed.
func (bp *BranchPredictor) Lookups() uint64 {
	return bp.lookups
}

// Reset clears the predictor state and statistics. Counters start weakly
// not taken.
func (bp *BranchPredictor) Reset() {
	for i := range bp.entries {
		e := &bp.entries[i]
		for j := range e.counters {
			e.counters[j] = WeaklyNotTaken
		}
		e.pattern = 0
		e.speculative = 0
	}
	bp.inFlight = bp.inFlight[:0]
	bp.stats = BranchPredictorStats{}
	bp.lookups = 0
}
