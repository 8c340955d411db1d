// Package main provides the entry point for tomasim.
// tomasim is a cycle-accurate out-of-order RV32I simulator built around
// Tomasulo's algorithm.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

var (
	configPath  = flag.String("config", "", "Path to timing configuration JSON file")
	verbose     = flag.Bool("v", false, "Log squashes and halts to stderr")
	veryVerbose = flag.Bool("vv", false, "Log every commit to stderr")
	showStats   = flag.Bool("stats", false, "Print pipeline statistics to stderr")
	verify      = flag.Bool("verify", false, "Check the result against the functional emulator")
	dcache      = flag.Bool("dcache", false, "Simulate the L1 data cache")
	useEngine   = flag.Bool("engine", false, "Drive the core from an Akita serial engine")
	emulate     = flag.Bool("emulate", false, "Run on the functional emulator only")
	step        = flag.Bool("step", false, "Step through the simulation one cycle per key press")
	statsAddr   = flag.String("statsview", "", "Serve runtime statistics at this address (e.g. localhost:12600)")
	dumpPath    = flag.String("dump-state", "", "Write a graphviz dump of the final core state to this file")
)

// options is the parsed command line.
type options struct {
	configPath string
	verbosity  int
	stats      bool
	verify     bool
	dcache     bool
	engine     bool
	emulate    bool
	step       bool
	statsAddr  string
	dumpPath   string
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: tomasim [options] <program.hex|program.elf|->\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := options{
		configPath: *configPath,
		stats:      *showStats,
		verify:     *verify,
		dcache:     *dcache,
		engine:     *useEngine,
		emulate:    *emulate,
		step:       *step,
		statsAddr:  *statsAddr,
		dumpPath:   *dumpPath,
	}
	switch {
	case *veryVerbose:
		opts.verbosity = 2
	case *verbose:
		opts.verbosity = 1
	}

	if opts.statsAddr != "" {
		launchStatsView(opts.statsAddr, os.Stderr)
	}

	exitCode, err := run(flag.Arg(0), opts, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stdout, exitCode)
}

// loadProgram reads the program image at path, or from stdin if path is "-".
func loadProgram(path string, stdin io.Reader) (*loader.Program, error) {
	if path != "-" {
		return loader.Load(path)
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return loader.Parse(data)
}

// loadTimingConfig returns the configuration at path, or the defaults.
func loadTimingConfig(path string) (*latency.TimingConfig, error) {
	if path == "" {
		return latency.DefaultTimingConfig(), nil
	}
	return latency.LoadConfig(path)
}

// newLogger writes V-levels up to verbosity to w.
func newLogger(verbosity int, w io.Writer) logr.Logger {
	if verbosity == 0 {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

// install prepares fresh architectural state holding prog.
func install(prog *loader.Program) (*emu.RegFile, *emu.Memory) {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	prog.Install(memory)
	regFile.WriteReg(2, prog.InitialSP)
	regFile.PC = prog.EntryPoint
	return regFile, memory
}

// run simulates the program at path and returns its exit code.
func run(path string, opts options, stdin io.Reader, stdout, stderr io.Writer) (int64, error) {
	prog, err := loadProgram(path, stdin)
	if err != nil {
		return -1, fmt.Errorf("failed to load program: %w", err)
	}

	if opts.emulate {
		return runEmulation(prog, opts, stderr)
	}

	timingConfig, err := loadTimingConfig(opts.configPath)
	if err != nil {
		return -1, fmt.Errorf("failed to load timing config: %w", err)
	}

	pipeOpts := []pipeline.PipelineOption{
		pipeline.WithTimingConfig(timingConfig),
		pipeline.WithLogger(newLogger(opts.verbosity, stderr)),
	}
	if opts.dcache {
		pipeOpts = append(pipeOpts, pipeline.WithDefaultDCache())
	}

	regFile, memory := install(prog)
	c := core.NewCore(regFile, memory, pipeOpts...)
	c.SetPC(prog.EntryPoint)

	var exitCode int64
	switch {
	case opts.step:
		exitCode, err = stepCore(c, stdout)
	case opts.engine:
		exitCode, err = c.RunOnEngine(1 * sim.GHz)
	default:
		exitCode, err = c.Run()
	}

	if opts.stats {
		printStats(stderr, c)
	}

	if opts.dumpPath != "" {
		if dumpErr := dumpState(opts.dumpPath, c, regFile); dumpErr != nil {
			return exitCode, dumpErr
		}
	}

	if err != nil {
		return exitCode, err
	}

	if opts.verify {
		if err := verifyRun(prog, exitCode, regFile, memory); err != nil {
			return exitCode, err
		}
	}

	return exitCode, nil
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(prog *loader.Program, opts options, stderr io.Writer) (int64, error) {
	regFile, memory := install(prog)
	emulator := emu.NewEmulator(emu.WithMemory(memory))
	*emulator.RegFile() = *regFile

	exitCode, err := emulator.Run()

	if opts.stats {
		fmt.Fprintf(stderr, "Instructions executed: %d\n", emulator.InstructionCount())
	}

	return exitCode, err
}

// verifyRun replays the program on the functional emulator and compares the
// final architectural state.
func verifyRun(prog *loader.Program, exitCode int64, regFile *emu.RegFile, memory *emu.Memory) error {
	refRegs, refMemory := install(prog)
	ref := emu.NewEmulator(emu.WithMemory(refMemory))
	*ref.RegFile() = *refRegs

	want, err := ref.Run()
	if err != nil {
		return fmt.Errorf("reference emulator failed: %w", err)
	}

	if want != exitCode {
		return fmt.Errorf("exit code %d differs from reference %d", exitCode, want)
	}
	for i := range regFile.X {
		if regFile.X[i] != ref.RegFile().X[i] {
			return fmt.Errorf("x%d = 0x%08x differs from reference 0x%08x",
				i, regFile.X[i], ref.RegFile().X[i])
		}
	}
	if addr, differs := memory.Diff(refMemory); differs {
		return fmt.Errorf("memory at 0x%08x differs from reference", addr)
	}
	return nil
}
