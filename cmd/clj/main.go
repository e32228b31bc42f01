// Command clj is the standalone CLI for this core: run a source file
// or inline expression, disassemble compiled bytecode, or drop into a
// REPL.
//
// Grounded on the teacher's cmd/dwscript, which is itself just a
// main.go delegating to an internal cmd package's Execute.
package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-clj/cmd/clj/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
