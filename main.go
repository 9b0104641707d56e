// Package main provides the entry point for codecsim.
// codecsim streams a page dump through an encoder and a decoder device,
// cycle by cycle, and verifies that every page survives the round trip.
//
// For the full CLI, use: go run ./cmd/codecsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("codecsim - round-trip verification harness for streaming codecs")
	fmt.Println("")
	fmt.Println("Usage: codecsim [options] [dump [report [encoder-trace [decoder-trace]]]]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to run configuration JSON file")
	fmt.Println("  -encoder   Encoder device (huffman, raw, stall)")
	fmt.Println("  -decoder   Decoder device (huffman, raw, stall)")
	fmt.Println("  -summary   Write a JSON run summary")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/codecsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/codecsim' instead.")
	}
}
