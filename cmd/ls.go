package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/workspace"
)

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory the way the UI shows it",
	Long: `List the entries of dir (default: the current directory) in directory order,
with hidden entries moved to the end.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		entries, err := workspace.List(dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range entries {
			name := e.Name
			if e.IsDir {
				name += "/"
			}
			if e.Hidden {
				fmt.Fprintf(out, "%s  (hidden)\n", name)
				continue
			}
			fmt.Fprintln(out, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
