package cmd

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-clj/pkg/clj"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Compile a source file and print its disassembled bytecode",
	Long: `Compile each top-level form in a source file through the
bytecode compiler and print the resulting instructions.

Unlike run --vm, compile never executes anything.`,
	Args: cobra.ExactArgs(1),
	RunE: compileFile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

func compileFile(_ *cobra.Command, args []string) error {
	filename := args[0]
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	env, err := clj.NewEnv()
	if err != nil {
		return fmt.Errorf("failed to bootstrap environment: %w", err)
	}

	out, err := env.Disassemble(string(content))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compile error: %v\n", err)
		return fmt.Errorf("compilation failed")
	}

	fmt.Println(out)
	return nil
}
