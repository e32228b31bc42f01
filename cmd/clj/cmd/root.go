package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags).
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// verbose is set by the persistent --verbose flag and read by run.go.
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "clj",
	Short: "A Clojure-dialect evaluation engine",
	Long: `clj hosts a small Clojure-dialect evaluation engine: a reader,
an analyzer, and two evaluators (a tree-walk interpreter and a
stack-based bytecode VM) sharing one namespace and GC model.

This is not a full Clojure implementation — it is a from-scratch core
evaluation engine built to the same shape as a production language
runtime.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
