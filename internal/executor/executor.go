// Package executor compiles and runs a single source file as a child process,
// feeding it stdin and collecting its output streams.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fakeyudi/codebattle/internal/logging"
)

// Strategy selects how a source file is turned into a running program.
type Strategy string

const (
	// Compile runs `Compiler <src> -o <tmp>` and then executes <tmp>.
	Compile Strategy = "compile"
	// Interpret runs `Interpreter <src>`.
	Interpret Strategy = "interpret"
)

// Toolchain describes the external binaries and limits for a run.
type Toolchain struct {
	Strategy     Strategy
	Compiler     string
	Interpreter  string
	TempDir      string        // defaults to os.TempDir()
	KeepBinaries bool          // leave compiled binaries in TempDir
	Timeout      time.Duration // zero means no limit
	MaxOutput    int           // bytes kept per stream; zero means unlimited
}

// Executor runs source files with a Toolchain.
type Executor struct {
	Toolchain Toolchain
	Logger    *zap.Logger
}

// New returns an Executor for tc.
func New(tc Toolchain, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{Toolchain: tc, Logger: logger}
}

// Run performs one compile-and/or-execute cycle. Failures are reported in
// the result's Output; Run itself never fails.
func (e *Executor) Run(ctx context.Context, req RunRequest) RunResult {
	start := time.Now()
	res := RunResult{ID: uuid.New().String(), SourcePath: req.SourcePath}
	logger := e.logger().With(logging.String("run_id", res.ID), logging.String("source", req.SourcePath))

	if e.Toolchain.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Toolchain.Timeout)
		defer cancel()
	}

	var out strings.Builder
	var argv []string

	switch e.Toolchain.Strategy {
	case Compile, "":
		res.Phase = PhaseCompile
		bin := filepath.Join(e.tempDir(), res.ID)
		if !e.Toolchain.KeepBinaries {
			defer func() {
				if err := os.Remove(bin); err != nil && !errors.Is(err, fs.ErrNotExist) {
					logger.Warn("removing compiled binary", logging.String("path", bin), logging.Err(err))
				}
			}()
		}
		if !e.compile(ctx, req.SourcePath, bin, &res, &out, logger) {
			return e.finish(res, &out, start, logger)
		}
		argv = []string{bin}
	case Interpret:
		argv = []string{e.Toolchain.Interpreter, req.SourcePath}
	default:
		res.Phase = PhaseCompile
		fmt.Fprintf(&out, "error: unknown run strategy %q", e.Toolchain.Strategy)
		return e.finish(res, &out, start, logger)
	}

	res.Phase = PhaseRun
	e.execute(ctx, argv, req.Stdin, &res, &out, logger)
	return e.finish(res, &out, start, logger)
}

// compile reports whether a runnable binary was produced at bin.
func (e *Executor) compile(ctx context.Context, src, bin string, res *RunResult, out *strings.Builder, logger *zap.Logger) bool {
	compiler := e.Toolchain.Compiler
	cmd := exec.CommandContext(ctx, compiler, src, "-o", bin)

	// Diagnostics are collected by exec's own copier goroutine, so a chatty
	// compiler cannot fill the pipe and stall.
	stderr := &capWriter{limit: e.Toolchain.MaxOutput}
	cmd.Stderr = stderr

	err := cmd.Run()
	if stderr.truncated {
		res.Truncated = true
	}
	if err == nil {
		return true
	}

	if msg := interruption(ctx, e.Toolchain.Timeout); msg != "" {
		out.WriteString(msg)
		return false
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		logger.Warn("compiler could not be started", logging.String("compiler", compiler), logging.Err(err))
		out.WriteString("error: failed to invoke " + compiler)
		return false
	}

	res.ExitCode = intPtr(exitErr.ExitCode())
	// Only label the diagnostics when the compiler actually wrote some.
	if stderr.buf.Len() > 0 {
		out.WriteString(CompileErrorLabel + decodeLossy(stderr.buf.Bytes()) + "\n")
	}
	return false
}

// execute runs argv with three independent pipes. Stdin is written on its own
// goroutine while stdout and stderr are drained on two others, so a child
// that fills one output pipe before reading its input cannot deadlock us.
// All three are joined before Wait.
func (e *Executor) execute(ctx context.Context, argv []string, stdin string, res *RunResult, out *strings.Builder, logger *zap.Logger) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	inPipe, err := cmd.StdinPipe()
	if err != nil {
		e.execFailed(out, logger, argv[0], err)
		return
	}
	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		e.execFailed(out, logger, argv[0], err)
		return
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		e.execFailed(out, logger, argv[0], err)
		return
	}
	if err := cmd.Start(); err != nil {
		e.execFailed(out, logger, argv[0], err)
		return
	}

	stdout := &capWriter{limit: e.Toolchain.MaxOutput}
	stderr := &capWriter{limit: e.Toolchain.MaxOutput}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		// Closing signals end of input.
		defer inPipe.Close()
		if _, err := io.WriteString(inPipe, stdin); err != nil && !ignorableWriteErr(err) {
			logger.Debug("writing stdin", logging.Err(err))
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := io.Copy(stdout, outPipe); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Debug("reading stdout", logging.Err(err))
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := io.Copy(stderr, errPipe); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Debug("reading stderr", logging.Err(err))
		}
	}()

	// A killed child may leave descendants holding the pipes open; closing
	// our ends on cancellation unblocks the copiers.
	copied := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			inPipe.Close()
			outPipe.Close()
			errPipe.Close()
		case <-copied:
		}
	}()

	wg.Wait()
	close(copied)
	waitErr := cmd.Wait()

	res.Truncated = res.Truncated || stdout.truncated || stderr.truncated

	if errText := decodeStrict(stderr.buf.Bytes(), stderr.truncated); errText != "" {
		out.WriteString(RuntimeErrorLabel + errText + "\n")
	}
	if text, ok := decodeOutput(stdout.buf.Bytes(), stdout.truncated); ok {
		out.WriteString(text)
	} else {
		out.WriteString(MsgBadOutput)
	}

	if msg := interruption(ctx, e.Toolchain.Timeout); msg != "" {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
			out.WriteString("\n")
		}
		out.WriteString(msg)
		return
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = intPtr(0)
	case errors.As(waitErr, &exitErr):
		res.ExitCode = intPtr(exitErr.ExitCode())
	case cmd.ProcessState != nil:
		res.ExitCode = intPtr(cmd.ProcessState.ExitCode())
	default:
		logger.Warn("waiting for program", logging.Err(waitErr))
	}
}

func (e *Executor) execFailed(out *strings.Builder, logger *zap.Logger, bin string, err error) {
	logger.Warn("program could not be started", logging.String("binary", bin), logging.Err(err))
	out.Reset()
	out.WriteString(MsgExecFailed)
}

func (e *Executor) finish(res RunResult, out *strings.Builder, start time.Time, logger *zap.Logger) RunResult {
	res.Output = out.String()
	res.Duration = time.Since(start)
	fields := []zap.Field{
		logging.String("phase", string(res.Phase)),
		logging.Duration("duration", res.Duration),
		zap.Bool("truncated", res.Truncated),
	}
	if res.ExitCode != nil {
		fields = append(fields, logging.Int("exit_code", *res.ExitCode))
	}
	logger.Info("run finished", fields...)
	return res
}

func (e *Executor) tempDir() string {
	if e.Toolchain.TempDir != "" {
		return e.Toolchain.TempDir
	}
	return os.TempDir()
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// interruption describes why ctx ended the run early, or "" if it did not.
func interruption(ctx context.Context, timeout time.Duration) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && timeout > 0:
		return fmt.Sprintf("error: program timed out after %s", timeout)
	case ctx.Err() != nil:
		return "error: run cancelled"
	}
	return ""
}

// ignorableWriteErr reports whether a stdin write failed only because the
// child stopped reading.
func ignorableWriteErr(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed)
}

// decodeOutput returns stdout as text. Invalid UTF-8 is rejected, except for
// a rune cut in half by the size cap.
func decodeOutput(b []byte, truncated bool) (string, bool) {
	if utf8.Valid(b) {
		return string(b), true
	}
	if truncated {
		return strings.ToValidUTF8(string(b), ""), true
	}
	return "", false
}

// decodeStrict returns stderr as text, or "" when it is not valid UTF-8.
func decodeStrict(b []byte, truncated bool) string {
	s, ok := decodeOutput(b, truncated)
	if !ok {
		return ""
	}
	return s
}

func decodeLossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// capWriter keeps up to limit bytes and silently discards the rest, while
// still reporting every byte as written so the child is never blocked.
type capWriter struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *capWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.truncated = w.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
