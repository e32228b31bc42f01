package cmd

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-clj/pkg/clj"
	"github.com/spf13/cobra"
)

var (
	evalExpr string
	useVM    bool
	printRes bool
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a source file or expression",
	Long: `Execute source from a file or inline expression.

Examples:
  # Run a script file
  clj run script.clj

  # Evaluate an inline expression
  clj run -e "(+ 1 2)"

  # Run through the bytecode VM instead of the tree-walk interpreter
  clj run --vm script.clj`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "evaluate inline code instead of reading from file")
	runCmd.Flags().BoolVar(&useVM, "vm", false, "evaluate through the bytecode compiler+VM instead of the tree-walk interpreter")
	runCmd.Flags().BoolVarP(&printRes, "print", "p", false, "print the value the last top-level form evaluates to")
}

func runScript(_ *cobra.Command, args []string) error {
	var input, filename string

	switch {
	case evalExpr != "":
		input = evalExpr
		filename = "<eval>"
	case len(args) == 1:
		filename = args[0]
		content, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", filename, err)
		}
		input = string(content)
	default:
		return fmt.Errorf("either provide a file path or use -e flag for inline code")
	}

	var opts []clj.Option
	if useVM {
		opts = append(opts, clj.WithVM())
	}

	env, err := clj.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("failed to bootstrap environment: %w", err)
	}

	if verbose {
		evaluator := "tree-walk interpreter"
		if useVM {
			evaluator = "bytecode VM"
		}
		fmt.Fprintf(os.Stderr, "[running %s via %s]\n", filename, evaluator)
	}

	result, err := env.EvalString(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
		return fmt.Errorf("execution failed")
	}

	if printRes {
		fmt.Println(result.PrStr())
	}

	return nil
}
