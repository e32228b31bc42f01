package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/go-clj/pkg/clj"
	"github.com/spf13/cobra"
)

var replUseVM bool

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive read-eval-print loop",
	Long: `Start a REPL against one persistent Env: defs made at one
prompt are visible to every later one, exactly as if they had been
top-level forms in the same file.`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().BoolVar(&replUseVM, "vm", false, "evaluate through the bytecode compiler+VM instead of the tree-walk interpreter")
}

func runRepl(_ *cobra.Command, _ []string) error {
	var opts []clj.Option
	if replUseVM {
		opts = append(opts, clj.WithVM())
	}

	env, err := clj.NewEnv(opts...)
	if err != nil {
		return fmt.Errorf("failed to bootstrap environment: %w", err)
	}

	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("clj=> ")
		line, err := in.ReadString('\n')
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		if line == "\n" {
			continue
		}

		result, err := env.EvalString(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(result.PrStr())
	}
}
