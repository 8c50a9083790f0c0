package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/workspace"
)

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print a file and its non-whitespace character count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		text, err := workspace.Read(path)
		if err != nil {
			if workspace.IsNotFound(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprint(out, text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "-- %d characters\n", workspace.CountNonWhitespace(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
