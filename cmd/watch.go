package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/session"
)

var watchFile string

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Print a line whenever the directory or the watched file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		sess := newSession(cfg)
		defer sess.Close()

		events, cancel := sess.Subscribe()
		defer cancel()

		if err := sess.ChooseDirectory(dir); err != nil {
			return err
		}
		if watchFile != "" {
			path := watchFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			sess.SelectFile(path)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "watching %s (%d entries)\n", dir, len(sess.ListEntries()))

		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				printWatchEvent(cmd, sess, ev)
			}
		}
	},
}

func printWatchEvent(cmd *cobra.Command, sess *session.Session, ev session.Event) {
	out := cmd.OutOrStdout()
	stamp := time.Now().Format("15:04:05")
	switch ev.Kind {
	case session.EventEntries:
		fmt.Fprintf(out, "%s  entries  %d\n", stamp, len(sess.ListEntries()))
	case session.EventContents:
		path := sess.SelectedPath()
		if path == "" {
			return
		}
		fmt.Fprintf(out, "%s  contents %s  %d characters\n", stamp, filepath.Base(path), sess.CurrentCharacterCount())
	}
}

func init() {
	watchCmd.Flags().StringVar(&watchFile, "file", "", "also report changes to this file's contents")
	rootCmd.AddCommand(watchCmd)
}
