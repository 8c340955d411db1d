// Package main provides a profiling wrapper for tomasim to identify
// performance bottlenecks of the simulator itself.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

var (
	emulate    = flag.Bool("emulate", false, "Profile the functional emulator instead of the timing core")
	dcache     = flag.Bool("dcache", false, "Enable data cache simulation")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxCycles  = flag.Uint64("max-cycles", 10000000, "max cycles to simulate (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.hex|program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)

	start := time.Now()

	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	var (
		exitCode   int64
		instrCount uint64
		cycles     uint64
		runErr     error
	)

	if *emulate {
		exitCode, instrCount, runErr = runEmulationProfile(prog)
	} else {
		exitCode, instrCount, cycles, runErr = runTimingProfile(prog)
	}

	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	if runErr != nil {
		fmt.Printf("Stopped: %v\n", runErr)
	}
	fmt.Printf("Exit code: %d\n", exitCode)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
	if cycles > 0 {
		fmt.Printf("Simulated cycles/second: %.0f\n", float64(cycles)/elapsed.Seconds())
	}
}

func install(prog *loader.Program) (*emu.RegFile, *emu.Memory) {
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	prog.Install(memory)
	regFile.WriteReg(2, prog.InitialSP)
	regFile.PC = prog.EntryPoint
	return regFile, memory
}

func runEmulationProfile(prog *loader.Program) (int64, uint64, error) {
	regFile, memory := install(prog)
	emulator := emu.NewEmulator(emu.WithMemory(memory))
	*emulator.RegFile() = *regFile

	exitCode, err := emulator.Run()
	return exitCode, emulator.InstructionCount(), err
}

func runTimingProfile(prog *loader.Program) (int64, uint64, uint64, error) {
	regFile, memory := install(prog)

	config := latency.DefaultTimingConfig()
	config.MaxCycles = *maxCycles

	opts := []pipeline.PipelineOption{pipeline.WithTimingConfig(config)}
	if *dcache {
		opts = append(opts, pipeline.WithDefaultDCache())
	}

	pipe := pipeline.NewPipeline(regFile, memory, opts...)
	pipe.SetPC(prog.EntryPoint)

	exitCode, err := pipe.Run()
	stats := pipe.Stats()
	return exitCode, stats.Instructions, stats.Cycles, err
}
