package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/codebattle/internal/config"
	"github.com/fakeyudi/codebattle/internal/executor"
	"github.com/fakeyudi/codebattle/internal/logging"
	"github.com/fakeyudi/codebattle/internal/session"
	"github.com/fakeyudi/codebattle/internal/watch"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// verbose raises the log level to debug for one invocation.
var verbose bool

// ExitError carries a program's exit status out of a command so Execute can
// mirror it.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

var rootCmd = &cobra.Command{
	Use:   "codebattle [dir]",
	Short: "Browse, run and watch single-file competitive programming solutions",
	Long: `codebattle lists the source files in a directory, shows the selected file,
and compiles and runs it against a stdin payload. Without a subcommand it opens
the interactive UI.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runUI,
}

func persistentPreRun(cmd *cobra.Command, args []string) error {
	// First run: no global config yet. Offer the wizard, but only when
	// stdin is an interactive terminal and the UI is about to start.
	if isUI(cmd) && !globalConfigExists() && term.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(cmd.ErrOrStderr())
		fmt.Fprintln(cmd.ErrOrStderr(), "  Welcome to codebattle! Looks like this is your first time.")
		if err := runSetup(cmd); err != nil {
			return err
		}
	}

	global, err := config.LoadGlobal()
	if err != nil {
		return fmt.Errorf("loading global config: %w", err)
	}
	project, err := config.LoadProject()
	if err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}
	cfg = config.Merge(global, project)

	return initLogging(cmd)
}

// Execute runs the root command and exits with the program's status when a
// run reported one, or 1 on any other error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logging.Sync()
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentPreRunE = persistentPreRun
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func isUI(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd.Name() == "ui"
}

func globalConfigExists() bool {
	path, err := config.GlobalPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// initLogging sends logs to stderr, except under the UI where they go to a
// file so the alternate screen stays intact.
func initLogging(cmd *cobra.Command) error {
	lc := logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if isUI(cmd) {
		dir, err := session.DataDir()
		if err != nil {
			return fmt.Errorf("resolving log directory: %w", err)
		}
		lc.OutputPath = filepath.Join(dir, "codebattle.log")
	}
	if err := logging.Init(lc); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	if verbose {
		logging.SetLevel("debug")
	}
	return nil
}

// toolchain translates the merged config into executor settings.
func toolchain(c config.Config) executor.Toolchain {
	return executor.Toolchain{
		Strategy:     executor.Strategy(c.Strategy),
		Compiler:     c.Compiler,
		Interpreter:  c.Interpreter,
		TempDir:      c.TempDir,
		KeepBinaries: c.Keep(),
		Timeout:      c.Timeout(),
		MaxOutput:    c.MaxOutput,
	}
}

// newSession wires a Session to the real filesystem, watcher, executor and
// clipboard.
func newSession(c config.Config) *session.Session {
	logger := logging.L()
	watchLogger := logger.Named("watch")
	return session.New(session.Options{
		Watcher:   watch.NewManager(watch.FSNotify{Logger: watchLogger}, c.Debounce(), watchLogger),
		Runner:    executor.New(toolchain(c), logger.Named("executor")),
		CopyPulse: c.CopyPulse(),
		Logger:    logger.Named("session"),
	})
}
