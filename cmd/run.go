package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/config"
	"github.com/fakeyudi/codebattle/internal/executor"
	"github.com/fakeyudi/codebattle/internal/logging"
)

var (
	runStdin       string
	runInterpret   bool
	runJSON        bool
	runTimeout     time.Duration
	runCompiler    string
	runInterpreter string
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile and run a file once",
	Long: `Compile (or interpret) file, feed it stdin, and print the combined output:
labelled compiler or runtime errors first, then the program's stdout.
The exit status mirrors the program's, or 1 when it did not run to completion.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stdin, err := readStdinPayload(cmd)
		if err != nil {
			return err
		}

		c := cfg
		if runInterpret {
			c.Strategy = config.StrategyInterpret
		}
		if runCompiler != "" {
			c.Compiler = runCompiler
		}
		if runInterpreter != "" {
			c.Interpreter = runInterpreter
		}
		tc := toolchain(c)
		if cmd.Flags().Changed("timeout") {
			tc.Timeout = runTimeout
		}

		exec := executor.New(tc, logging.L().Named("executor"))
		res := exec.Run(cmd.Context(), executor.RunRequest{SourcePath: args[0], Stdin: stdin})

		out := cmd.OutOrStdout()
		if runJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
		} else {
			fmt.Fprint(out, res.Output)
		}

		if code := res.Code(1); code != 0 {
			return &ExitError{Code: code}
		}
		return nil
	},
}

// readStdinPayload resolves --stdin: a file path, "-" for our own stdin, or
// nothing.
func readStdinPayload(cmd *cobra.Command) (string, error) {
	switch runStdin {
	case "":
		return "", nil
	case "-":
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && term.IsTerminal(f.Fd()) {
			fmt.Fprintln(cmd.ErrOrStderr(), "reading program input until EOF (ctrl+d)")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(runStdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin file: %w", err)
	}
	return string(data), nil
}

func init() {
	runCmd.Flags().StringVar(&runStdin, "stdin", "", `file to feed as program input ("-" for stdin)`)
	runCmd.Flags().BoolVar(&runInterpret, "interpret", false, "run with the interpreter instead of compiling")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "kill the program after this long (0 = no limit)")
	runCmd.Flags().StringVar(&runCompiler, "compiler", "", "compiler binary (overrides config)")
	runCmd.Flags().StringVar(&runInterpreter, "interpreter", "", "interpreter binary (overrides config)")
	rootCmd.AddCommand(runCmd)
}
