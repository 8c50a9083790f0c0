package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Config merge precedence: project > global > defaults, field by field.
func TestConfigMergePrecedence(t *testing.T) {
	// Generator for a non-empty string field value.
	nonEmptyString := rapid.StringMatching(`[a-zA-Z0-9/_.-]{1,20}`)

	// Each field is independently either empty or a non-empty value.
	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasStrategy") {
			cfg.Strategy = nonEmptyString.Draw(t, "strategy")
		}
		if rapid.Bool().Draw(t, "hasCompiler") {
			cfg.Compiler = nonEmptyString.Draw(t, "compiler")
		}
		if rapid.Bool().Draw(t, "hasInterpreter") {
			cfg.Interpreter = nonEmptyString.Draw(t, "interpreter")
		}
		if rapid.Bool().Draw(t, "hasTempDir") {
			cfg.TempDir = nonEmptyString.Draw(t, "tempDir")
		}
		if rapid.Bool().Draw(t, "hasKeep") {
			keep := rapid.Bool().Draw(t, "keep")
			cfg.KeepBinaries = &keep
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		checkStringField(t, "Strategy", global.Strategy, project.Strategy, defaults.Strategy, merged.Strategy)
		checkStringField(t, "Compiler", global.Compiler, project.Compiler, defaults.Compiler, merged.Compiler)
		checkStringField(t, "Interpreter", global.Interpreter, project.Interpreter, defaults.Interpreter, merged.Interpreter)
		checkStringField(t, "TempDir", global.TempDir, project.TempDir, defaults.TempDir, merged.TempDir)

		switch {
		case project.KeepBinaries != nil:
			if merged.Keep() != *project.KeepBinaries {
				t.Fatalf("KeepBinaries: expected project value %v, got %v", *project.KeepBinaries, merged.Keep())
			}
		case global.KeepBinaries != nil:
			if merged.Keep() != *global.KeepBinaries {
				t.Fatalf("KeepBinaries: expected global value %v, got %v", *global.KeepBinaries, merged.Keep())
			}
		default:
			if merged.Keep() {
				t.Fatal("KeepBinaries: neither set, expected false")
			}
		}
	})
}

// checkStringField asserts the merge precedence rule for a single string field:
//   - project non-empty  → merged == project
//   - project empty, global non-empty → merged == global
//   - both empty → merged == defaultVal
func checkStringField(t *rapid.T, name, globalVal, projectVal, defaultVal, mergedVal string) {
	t.Helper()
	switch {
	case projectVal != "":
		if mergedVal != projectVal {
			t.Fatalf("%s: both set — expected project value %q, got %q", name, projectVal, mergedVal)
		}
	case globalVal != "":
		if mergedVal != globalVal {
			t.Fatalf("%s: only global set — expected global value %q, got %q", name, globalVal, mergedVal)
		}
	default:
		if mergedVal != defaultVal {
			t.Fatalf("%s: neither set — expected default %q, got %q", name, defaultVal, mergedVal)
		}
	}
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.Strategy != StrategyCompile {
		t.Errorf("Strategy: want %q, got %q", StrategyCompile, d.Strategy)
	}
	if d.Compiler != "swiftc" {
		t.Errorf("Compiler: want %q, got %q", "swiftc", d.Compiler)
	}
	if d.CopyPulse() != time.Second {
		t.Errorf("CopyPulse: want 1s, got %v", d.CopyPulse())
	}
	if d.Timeout() != 0 {
		t.Errorf("Timeout: want none, got %v", d.Timeout())
	}
	if d.Keep() {
		t.Error("Keep: want false by default")
	}
}

func TestDurationAccessorsFallBack(t *testing.T) {
	cfg := Config{RawTimeout: "soon", RawCopyPulse: "-3s", RawDebounce: "50ms"}
	if cfg.Timeout() != 0 {
		t.Errorf("Timeout: want 0 for unparsable value, got %v", cfg.Timeout())
	}
	if cfg.CopyPulse() != DefaultCopyPulse {
		t.Errorf("CopyPulse: want default for negative value, got %v", cfg.CopyPulse())
	}
	if cfg.Debounce() != 50*time.Millisecond {
		t.Errorf("Debounce: want 50ms, got %v", cfg.Debounce())
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config, got nil")
	}
	defaults := Defaults()
	if cfg.Compiler != defaults.Compiler {
		t.Errorf("Compiler: want %q, got %q", defaults.Compiler, cfg.Compiler)
	}
	if cfg.Strategy != defaults.Strategy {
		t.Errorf("Strategy: want %q, got %q", defaults.Strategy, cfg.Strategy)
	}
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	tmp := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })

	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadProjectYAMLFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	yml := "strategy: interpret\ninterpreter: python3\ntimeout: 4s\nkeep_binaries: true\n"
	if err := os.WriteFile(ProjectYAMLFile, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if cfg == nil || cfg.Interpreter != "python3" || cfg.RawTimeout != "4s" || !cfg.Keep() {
		t.Errorf("LoadProject = %+v", cfg)
	}

	// The JSON file wins when both exist.
	if err := os.WriteFile(ProjectFile, []byte(`{"interpreter": "ruby"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadProject()
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if cfg.Interpreter != "ruby" {
		t.Errorf("Interpreter = %q, want ruby from %s", cfg.Interpreter, ProjectFile)
	}
}

func TestLoadProjectYAMLParseError(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.WriteFile(ProjectYAMLFile, []byte("strategy: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadProject()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestLoadGlobalParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := filepath.Join(tmp, ".config", "codebattle")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadGlobal()
	if err == nil {
		t.Fatal("expected an error for invalid JSON, got nil")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestSaveThenLoadGlobal(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	keep := true
	want := &Config{Strategy: StrategyInterpret, Interpreter: "python3", KeepBinaries: &keep}
	if err := Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if got.Strategy != StrategyInterpret || got.Interpreter != "python3" || !got.Keep() {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}
