package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/session"
	"github.com/fakeyudi/codebattle/internal/workspace"
)

// clipboardSink is swapped out in tests.
var clipboardSink session.Clipboard = session.SystemClipboard{}

var copyCmd = &cobra.Command{
	Use:   "copy <file>",
	Short: "Copy a file's contents to the clipboard",
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
		if err := clipboardSink.WriteAll(text); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
		cmd.Printf("copied %d characters\n", workspace.CountNonWhitespace(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)
}
