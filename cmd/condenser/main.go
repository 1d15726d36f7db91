// Command condenser summarizes uploaded text files and turns GitHub
// repository activity into short stories, both via an LLM-backed workflow
// engine.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
