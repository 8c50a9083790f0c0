package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/logging"
	"github.com/fakeyudi/codebattle/internal/session"
	"github.com/fakeyudi/codebattle/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui [dir]",
	Short: "Open the interactive UI (the default command)",
	Long: `Open the interactive UI on dir. Without dir the last directory is restored,
falling back to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	var dir string
	if len(args) == 1 {
		dir = args[0]
	}

	prefs, err := session.NewPrefsStore()
	if err != nil {
		// The UI still works, it just forgets its state on exit.
		logging.L().Warn("preferences unavailable", logging.Err(err))
		prefs = nil
	}

	sess := newSession(cfg)
	defer sess.Close()

	return tui.Run(cmd.Context(), sess, tui.Options{
		Dir:    dir,
		Prefs:  prefs,
		Logger: logging.L().Named("tui"),
	})
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
