package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy names accepted in the "strategy" field.
const (
	StrategyCompile   = "compile"
	StrategyInterpret = "interpret"
)

// Default values for the toolchain.
const (
	DefaultCompiler    = "swiftc"
	DefaultInterpreter = "swift"
	DefaultCopyPulse   = time.Second
)

// Config holds all configurable codebattle settings.
type Config struct {
	Strategy     string `json:"strategy,omitempty" yaml:"strategy"`           // "compile" | "interpret"
	Compiler     string `json:"compiler,omitempty" yaml:"compiler"`           // invoked as: compiler <src> -o <out>
	Interpreter  string `json:"interpreter,omitempty" yaml:"interpreter"`     // invoked as: interpreter <src>
	TempDir      string `json:"temp_dir,omitempty" yaml:"temp_dir"`           // where compiled binaries go
	KeepBinaries *bool  `json:"keep_binaries,omitempty" yaml:"keep_binaries"` // nil means "remove after run"
	RawTimeout   string `json:"timeout,omitempty" yaml:"timeout"`             // e.g. "10s"; empty = no limit
	MaxOutput    int    `json:"max_output,omitempty" yaml:"max_output"`       // bytes per stream; 0 = unlimited
	RawCopyPulse string `json:"copy_pulse,omitempty" yaml:"copy_pulse"`
	RawDebounce  string `json:"debounce,omitempty" yaml:"debounce"`
	LogLevel     string `json:"log_level,omitempty" yaml:"log_level"`
	LogFormat    string `json:"log_format,omitempty" yaml:"log_format"` // "console" | "json"
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		Strategy:     StrategyCompile,
		Compiler:     DefaultCompiler,
		Interpreter:  DefaultInterpreter,
		RawCopyPulse: DefaultCopyPulse.String(),
		LogLevel:     "warn",
		LogFormat:    "console",
	}
}

// Timeout returns the configured run timeout, or zero for none.
func (c Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout, 0)
}

// CopyPulse returns how long the "copied" flag stays raised.
func (c Config) CopyPulse() time.Duration {
	return parseDuration(c.RawCopyPulse, DefaultCopyPulse)
}

// Debounce returns the watcher debounce window, or zero for none.
func (c Config) Debounce() time.Duration {
	return parseDuration(c.RawDebounce, 0)
}

// Keep reports whether compiled binaries should survive the run.
func (c Config) Keep() bool {
	return c.KeepBinaries != nil && *c.KeepBinaries
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Dir returns the codebattle config directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "codebattle"), nil
}

// GlobalPath returns the path of the global config file.
func GlobalPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadGlobal reads ~/.config/codebattle/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// Project config file names, tried in order.
const (
	ProjectFile     = ".codebattle"
	ProjectYAMLFile = ".codebattle.yaml"
)

// LoadProject reads .codebattle (JSON) in the current working directory,
// falling back to .codebattle.yaml.
// Returns nil (no error) if neither file exists.
func LoadProject() (*Config, error) {
	cfg, err := loadFile(ProjectFile, false)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return loadFile(ProjectYAMLFile, false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	unmarshal := json.Unmarshal
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		unmarshal = yaml.Unmarshal
	}
	if err := unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Save writes cfg as the global config, creating the config directory if needed.
func Save(cfg *Config) error {
	path, err := GlobalPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	apply(&result, global)
	apply(&result, project)
	return result
}

func apply(dst *Config, src *Config) {
	if src == nil {
		return
	}
	if src.Strategy != "" {
		dst.Strategy = src.Strategy
	}
	if src.Compiler != "" {
		dst.Compiler = src.Compiler
	}
	if src.Interpreter != "" {
		dst.Interpreter = src.Interpreter
	}
	if src.TempDir != "" {
		dst.TempDir = src.TempDir
	}
	if src.KeepBinaries != nil {
		keep := *src.KeepBinaries
		dst.KeepBinaries = &keep
	}
	if src.RawTimeout != "" {
		dst.RawTimeout = src.RawTimeout
	}
	if src.MaxOutput > 0 {
		dst.MaxOutput = src.MaxOutput
	}
	if src.RawCopyPulse != "" {
		dst.RawCopyPulse = src.RawCopyPulse
	}
	if src.RawDebounce != "" {
		dst.RawDebounce = src.RawDebounce
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
