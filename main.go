// Package main provides the entry point for tomasim.
// tomasim is a cycle-accurate out-of-order RV32I simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/tomasim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("tomasim - Tomasulo out-of-order RV32I simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: tomasim [options] <program.hex|program.elf|->")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to timing configuration JSON file")
	fmt.Println("  -dcache    Simulate the L1 data cache")
	fmt.Println("  -stats     Print pipeline statistics")
	fmt.Println("  -verify    Check the result against the functional emulator")
	fmt.Println("  -v, -vv    Log squashes, or every commit, to stderr")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/tomasim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/tomasim' instead.")
	}
}
