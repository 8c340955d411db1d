// Package benchmarks provides the timing benchmark harness and the built-in
// RV32I micro-benchmarks of the simulator.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

// ProgramAddr is where built-in benchmark programs are loaded.
const ProgramAddr = uint32(0x1000)

// StackTop is the initial stack pointer of built-in benchmarks.
const StackTop = uint32(0x10000)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of committed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// IssueStalls is the number of cycles issue was blocked by a full
	// structure
	IssueStalls uint64 `json:"issue_stalls"`

	// LockedCycles is the number of cycles fetch waited on a register jump
	LockedCycles uint64 `json:"locked_cycles"`

	// PipelineFlushes is the number of squashes
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// Loads and Stores committed
	Loads  uint64 `json:"loads"`
	Stores uint64 `json:"stores"`

	// DCacheHits/Misses (if cache enabled)
	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	// Branch predictor stats
	BranchPredictions    uint64  `json:"branch_predictions"`
	BranchCorrect        uint64  `json:"branch_correct"`
	BranchMispredictions uint64  `json:"branch_mispredictions"`
	BranchSuccessRate    float64 `json:"branch_success_rate"`

	// ExitCode is the program's exit code
	ExitCode int64 `json:"exit_code"`

	// Error is set if the core stopped on an error
	Error string `json:"error,omitempty"`

	// Mismatch describes a disagreement with the reference emulator
	Mismatch string `json:"mismatch,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the run finished without error and, when checked,
// agreed with the reference emulator.
func (r BenchmarkResult) Passed() bool {
	return r.Error == "" && r.Mismatch == ""
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the initial state (e.g., initialize registers, memory)
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the RV32I machine code, loaded at ProgramAddr
	Program []byte

	// Image replaces Program with a loaded program image when set
	Image *loader.Program

	// ExpectedExit is the expected exit code (for validation), or -1 if
	// unknown
	ExpectedExit int64
}

// FromImage wraps a loaded program image as a benchmark.
func FromImage(name string, image *loader.Program) Benchmark {
	return Benchmark{
		Name:         name,
		Description:  "program image",
		Image:        image,
		ExpectedExit: -1,
	}
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Timing sets latencies and structure sizes (default if nil)
	Timing *latency.TimingConfig

	// EnableDCache puts the L1 data cache on the memory port
	EnableDCache bool

	// Verify runs each benchmark on the reference emulator as well and
	// compares exit code, registers and memory
	Verify bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableDCache: false,
		Verify:       true,
		Output:       os.Stdout,
		Verbose:      false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "%s: %d cycles, exit %d\n",
				result.Name, result.SimulatedCycles, result.ExitCode)
		}
		results = append(results, result)
	}

	return results
}

// prepare creates fresh state holding the benchmark and returns its entry.
func prepare(bench Benchmark) (*emu.RegFile, *emu.Memory, uint32) {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()

	entry := ProgramAddr
	if bench.Image != nil {
		bench.Image.Install(memory)
		entry = bench.Image.EntryPoint
		regFile.WriteReg(2, bench.Image.InitialSP)
	} else {
		memory.LoadProgram(ProgramAddr, bench.Program)
		regFile.WriteReg(2, StackTop)
	}

	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}
	regFile.PC = entry

	return regFile, memory, entry
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	regFile, memory, entry := prepare(bench)

	opts := []pipeline.PipelineOption{pipeline.WithTimingConfig(h.config.Timing)}
	if h.config.EnableDCache {
		opts = append(opts, pipeline.WithDefaultDCache())
	}

	pipe := pipeline.NewPipeline(regFile, memory, opts...)
	pipe.SetPC(entry)

	start := time.Now()
	exitCode, err := pipe.Run()
	wallTime := time.Since(start)

	stats := pipe.Stats()
	result := BenchmarkResult{
		Name:                 bench.Name,
		Description:          bench.Description,
		SimulatedCycles:      stats.Cycles,
		InstructionsRetired:  stats.Instructions,
		CPI:                  stats.CPI(),
		IssueStalls:          stats.IssueStalls,
		LockedCycles:         stats.LockedCycles,
		PipelineFlushes:      stats.Squashes,
		Loads:                stats.Loads,
		Stores:               stats.Stores,
		BranchPredictions:    stats.BranchPredictions,
		BranchCorrect:        stats.BranchCorrect,
		BranchMispredictions: stats.BranchMispredictions,
		BranchSuccessRate:    stats.BranchAccuracy(),
		ExitCode:             exitCode,
		WallTime:             wallTime,
	}
	if err != nil {
		result.Error = err.Error()
	}

	if dcache := pipe.DCache(); dcache != nil {
		dcStats := dcache.Stats()
		result.DCacheHits = dcStats.Hits
		result.DCacheMisses = dcStats.Misses
	}

	if err == nil && h.config.Verify {
		result.Mismatch = verify(bench, exitCode, regFile, memory, stats.Instructions)
	}
	if result.Mismatch == "" && bench.ExpectedExit >= 0 && err == nil && exitCode != bench.ExpectedExit {
		result.Mismatch = fmt.Sprintf("exit code %d, expected %d", exitCode, bench.ExpectedExit)
	}

	return result
}

// verify runs bench on the reference emulator and describes the first
// difference from the timing run, or returns "" if they agree.
func verify(bench Benchmark, exitCode int64, regFile *emu.RegFile, memory *emu.Memory, retired uint64) string {
	refRegs, refMemory, _ := prepare(bench)
	ref := emu.NewEmulator(emu.WithMemory(refMemory))
	*ref.RegFile() = *refRegs

	want, err := ref.Run()
	if err != nil {
		return fmt.Sprintf("reference emulator failed: %v", err)
	}

	switch {
	case want != exitCode:
		return fmt.Sprintf("exit code %d, reference %d", exitCode, want)
	case !regFile.Equal(ref.RegFile()):
		for i := range regFile.X {
			if regFile.X[i] != ref.RegFile().X[i] {
				return fmt.Sprintf("x%d = 0x%08x, reference 0x%08x", i, regFile.X[i], ref.RegFile().X[i])
			}
		}
	case retired != ref.InstructionCount():
		return fmt.Sprintf("%d instructions retired, reference %d", retired, ref.InstructionCount())
	}

	if addr, differs := memory.Diff(refMemory); differs {
		return fmt.Sprintf("memory differs at 0x%08x", addr)
	}
	return ""
}

// PrintResults outputs benchmark results as a markdown table.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "| Test Case | Total branches | Success Rate | Total CPU clock |")
	_, _ = fmt.Fprintln(out, "| :-------: | :------------: | :----------: | :-------------: |")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "| %s | %d | %.6f | %d |\n",
			r.Name, r.BranchPredictions, r.BranchSuccessRate, r.SimulatedCycles)
	}

	for _, r := range results {
		if r.Error != "" {
			_, _ = fmt.Fprintf(out, "\n%s: error: %s", r.Name, r.Error)
		}
		if r.Mismatch != "" {
			_, _ = fmt.Fprintf(out, "\n%s: mismatch: %s", r.Name, r.Mismatch)
		}
	}
	_, _ = fmt.Fprintln(out)
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,issue_stalls,locked_cycles,flushes,loads,stores,dcache_hits,dcache_misses,branches,branch_success_rate,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%.6f,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.IssueStalls,
			r.LockedCycles,
			r.PipelineFlushes,
			r.Loads,
			r.Stores,
			r.DCacheHits,
			r.DCacheMisses,
			r.BranchPredictions,
			r.BranchSuccessRate,
			r.ExitCode,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config is the timing configuration used
	Config *latency.TimingConfig `json:"config"`

	// DCacheEnabled tells whether the data cache was attached
	DCacheEnabled bool `json:"dcache_enabled"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks that errored or mismatched
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if !r.Passed() {
			summary.Failed++
		}
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}
	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Config:        h.config.Timing,
			DCacheEnabled: h.config.EnableDCache,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
