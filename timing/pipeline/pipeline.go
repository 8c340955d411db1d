// Package pipeline provides a cycle-accurate Tomasulo out-of-order core:
// in-order fetch and issue, out-of-order execution through a reservation
// station and a load/store queue, and in-order commit through a reorder
// buffer.
//
// Every cycle has two phases. In the work phase each structure computes its
// outputs from the state left by the previous cycle. In the sync phase the
// outputs are applied in a fixed order: issue, fetch, commit, broadcast,
// squash, then each structure's own bookkeeping.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/cache"
	"github.com/sarchlab/tomasim/timing/latency"
)

// ErrIllegalInstruction is returned when an undecodable instruction commits.
var ErrIllegalInstruction = emu.ErrIllegalInstruction

// ErrCycleLimit is returned when the core runs past its cycle budget.
var ErrCycleLimit = errors.New("cycle limit reached")

// FetchState describes what fetch can do in the coming cycle.
type FetchState uint8

const (
	// FetchAvailable means fetch proceeds normally.
	FetchAvailable FetchState = iota
	// FetchLocked means fetch waits for a register jump or an undecodable
	// instruction to commit.
	FetchLocked
	// FetchStalled means the fetched instruction could not issue because a
	// structure is full.
	FetchStalled
	// FetchTerminal means the halt instruction has been fetched.
	FetchTerminal
)

func (s FetchState) String() string {
	switch s {
	case FetchAvailable:
		return "available"
	case FetchLocked:
		return "locked"
	case FetchStalled:
		return "stalled"
	case FetchTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions committed.
	Instructions uint64
	// IssueStalls is the number of cycles the fetched instruction could not
	// issue because its structures were full.
	IssueStalls uint64
	// LockedCycles is the number of cycles fetch waited on a register jump.
	LockedCycles uint64
	// Squashes is the number of pipeline squashes (branch mispredictions).
	Squashes uint64
	// Loads is the number of loads committed.
	Loads uint64
	// Stores is the number of stores committed.
	Stores uint64
	// BranchPredictions is the number of conditional branches committed.
	BranchPredictions uint64
	// BranchCorrect is the number of correctly predicted branches.
	BranchCorrect uint64
	// BranchMispredictions is the number of mispredicted branches.
	BranchMispredictions uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// IPC returns the instructions per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// BranchAccuracy returns the fraction of committed branches that were
// predicted correctly, or 0 with no branches.
func (s Statistics) BranchAccuracy() float64 {
	if s.BranchPredictions == 0 {
		return 0
	}
	return float64(s.BranchCorrect) / float64(s.BranchPredictions)
}

// Occupancy is a count of the in-flight entries of each structure.
type Occupancy struct {
	ROB       int
	RS        int
	LSQ       int
	Predicted int
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithTimingConfig sets latencies and structure sizes.
func WithTimingConfig(config *latency.TimingConfig) PipelineOption {
	return func(p *Pipeline) {
		p.config = config.Clone()
	}
}

// WithLogger sets the logger used for tracing. V(1) reports squashes and
// halts, V(2) every commit and V(3) every cycle.
func WithLogger(logger logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = logger
	}
}

// WithDCache puts a data cache on the load/store queue memory port.
func WithDCache(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.dcacheConfig = &config
	}
}

// WithDefaultDCache enables the data cache described by the timing config.
func WithDefaultDCache() PipelineOption {
	return func(p *Pipeline) {
		p.useConfigCache = true
	}
}

// WithPredictorConfig overrides the predictor geometry of the timing config.
func WithPredictorConfig(config BranchPredictorConfig) PipelineOption {
	return func(p *Pipeline) {
		p.predictorConfig = &config
	}
}

// Pipeline is the out-of-order core. It shares the register file and memory
// with its owner; the register file always holds the committed state.
type Pipeline struct {
	config          *latency.TimingConfig
	latencyTable    *latency.Table
	dcacheConfig    *cache.Config
	useConfigCache  bool
	predictorConfig *BranchPredictorConfig
	log             logr.Logger

	regFile *emu.RegFile
	memory  *emu.Memory

	predictor  *BranchPredictor
	fetchStage *FetchStage
	rat        *RegisterAliasTable
	rs         *ReservationStation
	lsq        *LoadStoreQueue
	rob        *ReorderBuffer
	port       MemoryPort
	bus        Bus

	fetched FetchRegister
	pc      uint32

	locked      bool
	fetchHalted bool
	halting     bool
	stalled     bool
	bubbles     uint64

	halted   bool
	exitCode int64
	err      error

	stats Statistics
}

// NewPipeline creates a pipeline over regFile and memory. A timing config
// that fails validation leaves the pipeline halted before its first cycle,
// with Err wrapping latency.ErrInvalidConfig.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		config:  latency.DefaultTimingConfig(),
		log:     logr.Discard(),
		regFile: regFile,
		memory:  memory,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Structures are sized from a valid config even when the requested one
	// is rejected, so that the accessors keep working.
	geometry := p.config
	if p.config.Validate() != nil {
		geometry = latency.DefaultTimingConfig()
	}

	if p.useConfigCache && p.dcacheConfig == nil {
		l1d := geometry.L1D
		p.dcacheConfig = &cache.Config{
			Size:          l1d.Size,
			Associativity: l1d.Associativity,
			BlockSize:     l1d.BlockSize,
			HitLatency:    l1d.HitLatency,
			MissLatency:   l1d.MissLatency,
		}
	}
	if p.predictorConfig == nil {
		p.predictorConfig = &BranchPredictorConfig{
			IndexBits:   geometry.BHTBits,
			HistoryBits: geometry.HistoryBits,
		}
	}

	p.latencyTable = latency.NewTableWithConfig(geometry)
	p.predictor = NewBranchPredictor(*p.predictorConfig)
	p.fetchStage = NewFetchStage(memory, p.predictor)
	p.build()
	p.checkConfig()

	return p
}

// anyLoad stands for every load when asking the latency table for the
// direct memory port countdown.
var anyLoad = &insts.Instruction{Format: insts.FormatLoad}

func (p *Pipeline) build() {
	geometry := p.latencyTable.Config()
	if p.dcacheConfig != nil {
		p.port = NewCachedMemoryPort(*p.dcacheConfig, p.memory)
	} else {
		p.port = NewDirectMemoryPort(p.memory, p.latencyTable.GetLatency(anyLoad))
	}
	p.rat = NewRegisterAliasTable(p.regFile)
	p.rs = NewReservationStation(geometry.RSSize)
	p.lsq = NewLoadStoreQueue(geometry.LSQSize, p.port)
	p.rob = NewReorderBuffer(geometry.ROBSize)
}

// checkConfig stops the core before its first cycle when the timing config
// is invalid.
func (p *Pipeline) checkConfig() {
	if err := p.config.Validate(); err != nil {
		p.fail(fmt.Errorf("failed to configure pipeline: %w", err))
	}
}

// SetPC sets the fetch address.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.regFile.PC = pc
}

// PC returns the next fetch address.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// Halted returns true once the halt instruction has drained the core or a
// fatal error occurred.
func (p *Pipeline) Halted() bool {
	return p.halted
}

// Err returns the fatal error that stopped the core, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// ExitCode returns the low byte of a0 at halt, or -1 after an error.
func (p *Pipeline) ExitCode() int64 {
	return p.exitCode
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// PredictorStats returns branch predictor statistics.
func (p *Pipeline) PredictorStats() BranchPredictorStats {
	return p.predictor.Stats()
}

// PredictorLookups returns the number of predictions made at fetch.
func (p *Pipeline) PredictorLookups() uint64 {
	return p.predictor.Lookups()
}

// DCache returns the data cache, or nil when memory is accessed directly.
func (p *Pipeline) DCache() *cache.Cache {
	if cached, ok := p.port.(*CachedMemoryPort); ok {
		return cached.Cache()
	}
	return nil
}

// Config returns the timing configuration in use.
func (p *Pipeline) Config() *latency.TimingConfig {
	return p.config
}

// Occupancy returns the number of in-flight entries per structure.
func (p *Pipeline) Occupancy() Occupancy {
	return Occupancy{
		ROB:       p.rob.Len(),
		RS:        p.rs.Len(),
		LSQ:       p.lsq.Len(),
		Predicted: p.predictor.InFlight(),
	}
}

// InFlight returns the reorder buffer contents from oldest to youngest.
func (p *Pipeline) InFlight() []Entry {
	return p.rob.Entries()
}

// FetchState reports what fetch can do in the coming cycle.
func (p *Pipeline) FetchState() FetchState {
	switch {
	case p.halted || p.fetchHalted || p.halting:
		return FetchTerminal
	case p.locked:
		return FetchLocked
	case p.stalled:
		return FetchStalled
	default:
		return FetchAvailable
	}
}

// Tick advances the core by one cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}

	p.stats.Cycles++
	if p.config.MaxCycles > 0 && p.stats.Cycles > p.config.MaxCycles {
		p.fail(fmt.Errorf("%w after %d cycles", ErrCycleLimit, p.config.MaxCycles))
		return
	}

	// Work phase.
	executed, err := p.rs.Work()
	if err != nil {
		p.fail(err)
		return
	}
	memoryDone := p.lsq.Work()
	head, headTag, canCommit := p.rob.Work()
	canIssue := p.canIssue()
	canFetch := p.canFetch(canIssue)

	p.bus.Publish(executed...)
	p.bus.Publish(memoryDone...)

	// Sync phase.
	if canIssue {
		p.issue()
	}
	if canFetch {
		p.fetch()
	}

	squash, target := false, uint32(0)
	if canCommit {
		squash, target = p.commit(head, headTag)
		if p.halted {
			return
		}
	}

	p.broadcast()

	if squash {
		p.squash(target)
	}

	p.rs.Sync()
	p.lsq.Sync()
	p.rob.Sync()

	if p.log.V(3).Enabled() {
		p.log.V(3).Info("cycle",
			"cycle", p.stats.Cycles,
			"pc", fmt.Sprintf("0x%08x", p.pc),
			"fetch", p.FetchState().String(),
			"rob", p.rob.Len(), "rs", p.rs.Len(), "lsq", p.lsq.Len(),
			"bus", len(p.bus.Completions))
	}
	p.bus.Clear()

	if p.halting && p.rob.Empty() {
		p.halt()
	}
}

// canIssue decides whether the latched instruction issues this cycle.
func (p *Pipeline) canIssue() bool {
	p.stalled = false
	if !p.fetched.Valid {
		return false
	}
	if p.fetched.Word == insts.HaltWord {
		return true
	}

	inst := p.fetched.Inst
	ok := !p.rob.Full()
	switch {
	case p.latencyTable.IsMemoryOp(inst):
		ok = ok && !p.lsq.Full()
	case p.latencyTable.GetLatency(inst) > 0:
		ok = ok && !p.rs.Full()
	}

	if !ok {
		p.stalled = true
		p.stats.IssueStalls++
	}
	return ok
}

// canFetch decides whether fetch runs this cycle. The fetch register must
// be empty or issuing.
func (p *Pipeline) canFetch(issuing bool) bool {
	if p.fetchHalted || p.halting {
		return false
	}
	if p.locked {
		p.stats.LockedCycles++
		return false
	}
	if p.bubbles > 0 {
		p.bubbles--
		return false
	}
	return !p.fetched.Valid || issuing
}

// operand reads reg through the alias table. A producer that has already
// finished supplies its value from the reorder buffer.
func (p *Pipeline) operand(reg uint8) Operand {
	value, producer := p.rat.Read(reg)
	tag, ok := producer.Get()
	if !ok {
		return Ready(value)
	}
	if v, done := p.rob.Value(tag); done {
		return Ready(v)
	}
	return Waiting(tag)
}

// issue renames the latched instruction and inserts it into the reorder
// buffer and its execution structure.
func (p *Pipeline) issue() {
	latch := p.fetched
	p.fetched.Clear()

	if latch.Word == insts.HaltWord {
		p.halting = true
		p.log.V(1).Info("halt issued", "pc", fmt.Sprintf("0x%08x", latch.PC))
		return
	}

	inst := latch.Inst
	pc := latch.PC
	tag := p.rob.NextTag()

	entry := Entry{
		Kind: EntryRegister,
		Dest: inst.Rd,
		PC:   pc,
		Inst: inst,
		Done: p.latencyTable.GetLatency(inst) == 0,
	}

	switch inst.Format {
	case insts.FormatLUI:
		entry.Value = uint32(inst.Imm)
	case insts.FormatAUIPC:
		entry.Value = pc + uint32(inst.Imm)
	case insts.FormatJAL:
		entry.Value = pc + 4
	case insts.FormatJALR:
		entry.Kind = EntryJumpRegister
		entry.Value = pc + 4
		p.rs.Insert(insts.OpJALR, p.operand(inst.Rs1), Ready(uint32(inst.Imm)), tag)
	case insts.FormatBranch:
		entry.Kind = EntryBranch
		entry.Dest = 0
		entry.Target = emu.BranchTarget(pc, inst.Imm)
		entry.PredictedTaken = latch.PredictedTaken
		p.rs.Insert(inst.Op, p.operand(inst.Rs1), p.operand(inst.Rs2), tag)
	case insts.FormatOpImm:
		p.rs.Insert(inst.Op, p.operand(inst.Rs1), Ready(uint32(inst.Imm)), tag)
	case insts.FormatOp:
		p.rs.Insert(inst.Op, p.operand(inst.Rs1), p.operand(inst.Rs2), tag)
	case insts.FormatLoad:
		p.lsq.InsertLoad(inst.Width, inst.Unsigned, p.operand(inst.Rs1), inst.Imm, tag)
	case insts.FormatStore:
		entry.Kind = EntryStore
		entry.Dest = 0
		p.lsq.InsertStore(inst.Width, p.operand(inst.Rs1), p.operand(inst.Rs2), inst.Imm, tag)
	default:
		entry.Kind = EntryIllegal
		entry.Dest = 0
		entry.Value = latch.Word
	}

	p.rob.Insert(entry)
	if inst.WritesRegister() {
		p.rat.Rename(inst.Rd, tag)
	}
}

// fetch latches the instruction at the PC.
func (p *Pipeline) fetch() {
	result := p.fetchStage.Fetch(p.pc)
	p.fetched = result.Latch
	p.pc = result.NextPC
	if result.Lock {
		p.locked = true
	}
	if result.Halt {
		p.fetchHalted = true
	}
}

// commit retires the reorder buffer head. It returns whether the head was
// a mispredicted branch and, if so, the correct fetch address.
func (p *Pipeline) commit(head Entry, tag Tag) (bool, uint32) {
	squash, target := false, uint32(0)

	switch head.Kind {
	case EntryRegister:
		p.rat.Commit(head.Dest, tag, head.Value)
		p.bus.PublishCommit(Message{Tag: tag, Value: head.Value})
	case EntryJumpRegister:
		p.rat.Commit(head.Dest, tag, head.Value)
		p.bus.PublishCommit(Message{Tag: tag, Value: head.Value})
		p.pc = head.Target
		p.locked = false
	case EntryStore:
		if err := p.lsq.CommitStore(tag); err != nil {
			p.fail(fmt.Errorf("failed to commit store at PC=0x%08x: %w", head.PC, err))
			return false, 0
		}
	case EntryBranch:
		taken := head.Value != 0
		mispredicted := taken != head.PredictedTaken
		p.predictor.Resolve(mispredicted, taken)
		p.stats.BranchPredictions++
		if mispredicted {
			p.stats.BranchMispredictions++
			squash = true
			target = head.PC + 4
			if taken {
				target = head.Target
			}
		} else {
			p.stats.BranchCorrect++
		}
	case EntryIllegal:
		p.fail(fmt.Errorf("%w 0x%08x at PC=0x%08x", ErrIllegalInstruction, head.Value, head.PC))
		return false, 0
	}

	p.stats.Instructions++
	switch {
	case p.latencyTable.IsLoadOp(head.Inst):
		p.stats.Loads++
	case p.latencyTable.IsStoreOp(head.Inst):
		p.stats.Stores++
	}
	p.regFile.PC = committedNextPC(head)

	if p.log.V(2).Enabled() {
		p.log.V(2).Info("commit",
			"cycle", p.stats.Cycles,
			"tag", tag,
			"entry", head.String())
	}

	return squash, target
}

// committedNextPC is the architectural PC after head retires.
func committedNextPC(head Entry) uint32 {
	switch {
	case head.Kind == EntryJumpRegister:
		return head.Target
	case head.Kind == EntryBranch && head.Value != 0:
		return head.Target
	case head.Inst != nil && head.Inst.Format == insts.FormatJAL:
		return emu.BranchTarget(head.PC, head.Inst.Imm)
	default:
		return head.PC + 4
	}
}

// broadcast delivers this cycle's bus to the reorder buffer and to every
// waiting operand.
func (p *Pipeline) broadcast() {
	for _, m := range p.bus.Completions {
		p.rob.Update(m)
	}
	for _, m := range p.bus.Messages() {
		p.rs.Snoop(m)
		p.lsq.Snoop(m)
	}
}

// squash discards every speculative instruction and restarts fetch at
// target.
func (p *Pipeline) squash(target uint32) {
	p.log.V(1).Info("squash",
		"cycle", p.stats.Cycles,
		"discarded", p.rob.Len()-1,
		"target", fmt.Sprintf("0x%08x", target))

	p.rs.Squash()
	p.lsq.Squash()
	p.rat.Squash()
	p.rob.Squash()
	p.predictor.Squash()
	p.fetched.Clear()

	p.locked = false
	p.fetchHalted = false
	p.halting = false
	p.bubbles = p.config.BranchMispredictPenalty
	p.pc = target
	p.stats.Squashes++
}

func (p *Pipeline) halt() {
	p.port.Flush()
	p.halted = true
	p.exitCode = int64(p.regFile.ReadReg(insts.RegA0) & 0xFF)
	p.log.V(1).Info("halted",
		"cycle", p.stats.Cycles,
		"instructions", p.stats.Instructions,
		"exit", p.exitCode)
}

func (p *Pipeline) fail(err error) {
	p.port.Flush()
	p.halted = true
	p.exitCode = -1
	p.err = err
	p.log.Error(err, "core stopped", "cycle", p.stats.Cycles)
}

// Run ticks the pipeline until it halts and returns the exit code.
func (p *Pipeline) Run() (int64, error) {
	for !p.halted {
		p.Tick()
	}
	return p.exitCode, p.err
}

// RunCycles executes the pipeline for the specified number of cycles.
// Returns true if still running, false if halted.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.halted; i++ {
		p.Tick()
	}
	return !p.halted
}

// Flush writes dirty data cache lines back to memory.
func (p *Pipeline) Flush() {
	p.port.Flush()
}

// Reset clears all in-flight state and statistics. Memory and the register
// file are left alone.
func (p *Pipeline) Reset() {
	p.port.Flush()
	p.predictor.Reset()
	p.build()
	p.bus.Clear()
	p.fetched.Clear()
	p.locked = false
	p.fetchHalted = false
	p.halting = false
	p.stalled = false
	p.bubbles = 0
	p.halted = false
	p.exitCode = 0
	p.err = nil
	p.stats = Statistics{}
	p.checkConfig()
}
