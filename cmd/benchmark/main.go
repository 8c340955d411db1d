// Command benchmark runs the tomasim timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags] [image...]
//
// Flags:
//
//	-csv       Output results in CSV format (default: markdown table)
//	-json      Output results in JSON format
//	-dcache    Enable data cache simulation
//	-config    Path to timing configuration JSON file
//	-core      Run only the three core benchmarks
//
// With no image arguments the built-in micro-benchmarks run. Each image
// argument (hex or ELF) runs as one more test case named after its file.
//
// Example:
//
//	# Markdown report of the built-in benchmarks
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
//	# Report on a directory of test images
//	go run ./cmd/benchmark testcases/*.data
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/tomasim/benchmarks"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	enableDCache := flag.Bool("dcache", false, "Enable data cache simulation")
	configPath := flag.String("config", "", "Path to timing configuration JSON file")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	verbose := flag.Bool("v", false, "Print each benchmark as it finishes")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.EnableDCache = *enableDCache
	config.Verbose = *verbose
	config.Output = os.Stdout

	if *configPath != "" {
		timingConfig, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timingConfig
	}

	harness := benchmarks.NewHarness(config)

	switch {
	case flag.NArg() > 0:
		for _, path := range flag.Args() {
			prog, err := loader.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", path, err)
				os.Exit(1)
			}
			harness.AddBenchmark(benchmarks.FromImage(testCaseName(path), prog))
		}
	case *coreOnly:
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	default:
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	if summary := benchmarks.Summarize(results); summary.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d benchmarks failed\n", summary.Failed, summary.TotalBenchmarks)
		os.Exit(1)
	}
}

// testCaseName is the file name of path without its extension.
func testCaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
