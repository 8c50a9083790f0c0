package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the compiler, interpreter and limits (re-run anytime to edit)",
	// Bypass the normal PersistentPreRunE so setup works before a config exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd)
	},
}

// runSetup runs the interactive wizard and saves the global config.
func runSetup(cmd *cobra.Command) error {
	// Load the existing config as defaults if present.
	var existing *config.Config
	if globalConfigExists() {
		if c, err := config.LoadGlobal(); err == nil {
			existing = c
		}
	}

	out := cmd.OutOrStdout()
	c, err := config.RunSetup(cmd.InOrStdin(), out, existing)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}
	if err := config.Save(c); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	path, _ := config.GlobalPath()
	fmt.Fprintf(out, "  ✓ Config saved to %s\n", path)
	fmt.Fprintln(out, "  Setup complete. Run 'codebattle' to open a directory.")
	fmt.Fprintln(out)
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
