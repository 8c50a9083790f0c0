package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// RunSetup runs the interactive setup wizard over r/w and returns the
// resulting config. If existing is non-nil, it is used as the default for
// each prompt (edit mode). The caller saves the result.
func RunSetup(r io.Reader, w io.Writer, existing *Config) (*Config, error) {
	br := bufio.NewReader(r)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(w, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(w, "%s: ", prompt)
		}
		line, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	askBool := func(prompt string, defaultVal bool) (bool, error) {
		def := "n"
		if defaultVal {
			def = "y"
		}
		ans, err := ask(prompt+" (y/n)", def)
		if err != nil {
			return false, err
		}
		ans = strings.ToLower(ans)
		return ans == "y" || ans == "yes", nil
	}

	cfg := Defaults()
	if existing != nil {
		cfg = Merge(existing, nil)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  ┌─────────────────────────────────┐")
	fmt.Fprintln(w, "  │   codebattle — toolchain setup  │")
	fmt.Fprintln(w, "  └─────────────────────────────────┘")
	fmt.Fprintln(w)

	strategy, err := ask("  Run strategy (compile/interpret)", cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if strategy == StrategyInterpret {
		cfg.Strategy = StrategyInterpret
	} else {
		cfg.Strategy = StrategyCompile
	}

	if cfg.Strategy == StrategyCompile {
		cfg.Compiler, err = ask("  Compiler (called as: <compiler> <file> -o <out>)", cfg.Compiler)
		if err != nil {
			return nil, err
		}
		keep, err := askBool("  Keep compiled binaries after each run", cfg.Keep())
		if err != nil {
			return nil, err
		}
		cfg.KeepBinaries = &keep
	} else {
		cfg.Interpreter, err = ask("  Interpreter (called as: <interpreter> <file>)", cfg.Interpreter)
		if err != nil {
			return nil, err
		}
	}

	cfg.RawTimeout, err = ask("  Run timeout, e.g. 10s (empty for none)", cfg.RawTimeout)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w)
	return &cfg, nil
}
