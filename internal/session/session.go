// Package session owns the observable state shared between the core and the
// presentation layer. Every mutation goes through one mutex, so watcher
// callbacks and user actions never race.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/fakeyudi/codebattle/internal/executor"
	"github.com/fakeyudi/codebattle/internal/logging"
	"github.com/fakeyudi/codebattle/internal/watch"
	"github.com/fakeyudi/codebattle/internal/workspace"
)

// DefaultCopyPulse is how long JustCopied stays true after a copy.
const DefaultCopyPulse = time.Second

// Runner executes one run request. *executor.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, req executor.RunRequest) executor.RunResult
}

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// EventKind says which part of the state changed.
type EventKind int

const (
	EventDirectory EventKind = iota
	EventEntries
	EventContents
	EventOutput
	EventRunning
	EventCopied
)

func (k EventKind) String() string {
	switch k {
	case EventDirectory:
		return "directory"
	case EventEntries:
		return "entries"
	case EventContents:
		return "contents"
	case EventOutput:
		return "output"
	case EventRunning:
		return "running"
	case EventCopied:
		return "copied"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is published to subscribers after a state change.
type Event struct {
	Kind EventKind
}

// State is a copy of every observable field.
type State struct {
	Directory      string
	Entries        []workspace.FileEntry
	SelectedPath   string
	Contents       string
	CharacterCount int
	LastOutput     string
	LastExitCode   *int
	Running        bool
	JustCopied     bool
}

// Options wires a Session to its collaborators. Zero values fall back to the
// production implementations where one exists.
type Options struct {
	Lister    workspace.Lister
	Reader    workspace.Reader
	Watcher   *watch.Manager // nil disables watching
	Runner    Runner
	Clipboard Clipboard
	CopyPulse time.Duration
	Logger    *zap.Logger
}

// Session is the single owner of the observable state.
type Session struct {
	lister    workspace.Lister
	reader    workspace.Reader
	watcher   *watch.Manager
	runner    Runner
	clipboard Clipboard
	pulse     time.Duration
	logger    *zap.Logger

	// dirMu serializes directory switches so the watched directory always
	// matches state.Directory.
	dirMu sync.Mutex

	mu         sync.Mutex
	state      State
	running    int
	runGen     int
	pulseTimer *time.Timer
	pulseGen   int
	subs       map[chan Event]struct{}
	closed     bool
}

// New returns a Session wired with opts.
func New(opts Options) *Session {
	s := &Session{
		lister:    opts.Lister,
		reader:    opts.Reader,
		watcher:   opts.Watcher,
		runner:    opts.Runner,
		clipboard: opts.Clipboard,
		pulse:     opts.CopyPulse,
		logger:    opts.Logger,
		subs:      make(map[chan Event]struct{}),
	}
	if s.lister == nil {
		s.lister = workspace.List
	}
	if s.reader == nil {
		s.reader = workspace.Read
	}
	if s.clipboard == nil {
		s.clipboard = SystemClipboard{}
	}
	if s.pulse <= 0 {
		s.pulse = DefaultCopyPulse
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// ChooseDirectory makes dir the workspace root: the selection is cleared
// (its contents stay on screen), the listing is loaded, and the watch is
// re-armed on dir unless dir is already watched. A listing failure is logged
// and keeps the previous listing; a watch failure is returned.
func (s *Session) ChooseDirectory(dir string) error {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()

	s.mu.Lock()
	s.state.Directory = dir
	s.state.SelectedPath = ""
	s.publishLocked(EventDirectory)
	s.refreshListingLocked()
	s.mu.Unlock()

	if s.watcher == nil || s.watcher.Dir() == dir {
		return nil
	}
	if err := s.watcher.Watch(dir, s.reconcile); err != nil {
		s.logger.Warn("could not watch directory", logging.String("dir", dir), logging.Err(err))
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	return nil
}

// Directory returns the current workspace root.
func (s *Session) Directory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Directory
}

// ListEntries returns the cached listing.
func (s *Session) ListEntries() []workspace.FileEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Entries)
}

// SelectFile makes path the selection and loads it.
func (s *Session) SelectFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SelectedPath = path
	s.loadLocked(path)
}

// SelectedPath returns the selected file, or "".
func (s *Session) SelectedPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SelectedPath
}

// CurrentContents returns the selected file's text.
func (s *Session) CurrentContents() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Contents
}

// CurrentCharacterCount returns the non-whitespace character count of the
// current contents.
func (s *Session) CurrentCharacterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CharacterCount
}

// Run resets the output, runs path with stdin, and records the result. The
// session lock is not held while the program executes. When runs overlap,
// only the most recently started one updates the output.
func (s *Session) Run(ctx context.Context, path, stdin string) executor.RunResult {
	s.mu.Lock()
	s.runGen++
	gen := s.runGen
	s.state.LastOutput = ""
	s.state.LastExitCode = nil
	s.running++
	s.state.Running = true
	s.publishLocked(EventOutput)
	s.publishLocked(EventRunning)
	s.mu.Unlock()

	var res executor.RunResult
	if s.runner == nil {
		res = executor.RunResult{SourcePath: path, Output: executor.MsgExecFailed}
	} else {
		res = s.runner.Run(ctx, executor.RunRequest{SourcePath: path, Stdin: stdin})
	}

	s.mu.Lock()
	if gen == s.runGen {
		s.state.LastOutput = res.Output
		s.state.LastExitCode = res.ExitCode
		s.publishLocked(EventOutput)
	} else {
		s.logger.Debug("discarding superseded run result", logging.String("run_id", res.ID))
	}
	s.running--
	s.state.Running = s.running > 0
	s.publishLocked(EventRunning)
	s.mu.Unlock()
	return res
}

// LastOutput returns the combined output of the latest run.
func (s *Session) LastOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastOutput
}

// LastExitCode returns the latest run's exit code, or nil.
func (s *Session) LastExitCode() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyInt(s.state.LastExitCode)
}

// Running reports whether a run is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Running
}

// CopyCurrentContentsToClipboard copies the current contents and raises
// JustCopied for the pulse duration. A copy during an active pulse restarts
// the timer.
func (s *Session) CopyCurrentContentsToClipboard() error {
	text := s.CurrentContents()
	if err := s.clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("copying to clipboard: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.pulseGen++
	gen := s.pulseGen
	if s.pulseTimer != nil {
		s.pulseTimer.Stop()
	}
	s.pulseTimer = time.AfterFunc(s.pulse, func() { s.endPulse(gen) })
	s.state.JustCopied = true
	s.publishLocked(EventCopied)
	return nil
}

func (s *Session) endPulse(gen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.pulseGen || !s.state.JustCopied {
		return
	}
	s.state.JustCopied = false
	s.publishLocked(EventCopied)
}

// JustCopied reports whether a copy happened within the pulse window.
func (s *Session) JustCopied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.JustCopied
}

// Snapshot returns a consistent copy of the whole state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Entries = slices.Clone(s.state.Entries)
	st.LastExitCode = copyInt(s.state.LastExitCode)
	return st
}

// Subscribe returns a channel of state-change events and a function that
// cancels the subscription. A subscriber that falls behind misses events
// instead of blocking the session; Snapshot always has the latest state.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	s.mu.Lock()
	if s.closed {
		close(ch)
	} else {
		s.subs[ch] = struct{}{}
	}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

// Close retires the watch and ends all subscriptions.
func (s *Session) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.pulseTimer != nil {
		s.pulseTimer.Stop()
	}
	for ch := range s.subs {
		close(ch)
	}
	s.subs = map[chan Event]struct{}{}
}

// reconcile runs once per change signal from the watcher.
func (s *Session) reconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state.Directory == "" {
		return
	}
	s.refreshListingLocked()
	if s.state.SelectedPath != "" {
		s.loadLocked(s.state.SelectedPath)
	}
}

func (s *Session) refreshListingLocked() {
	dir := s.state.Directory
	entries, err := s.lister(dir)
	if err != nil {
		s.logger.Warn("listing directory failed", logging.String("dir", dir), logging.Err(err))
		return
	}
	if slices.Equal(entries, s.state.Entries) {
		return
	}
	s.state.Entries = entries
	s.publishLocked(EventEntries)
}

// loadLocked reads path into the selection. A vanished file leaves the
// contents as they were; any other failure replaces them with the error.
func (s *Session) loadLocked(path string) {
	text, err := s.reader(path)
	if err != nil {
		if workspace.IsNotFound(err) {
			s.logger.Debug("selected file missing, keeping contents", logging.String("path", path))
			return
		}
		s.logger.Warn("reading file failed", logging.String("path", path), logging.Err(err))
		text = "failed to read file: " + err.Error()
		s.setContentsLocked(text, 0)
		return
	}
	s.setContentsLocked(text, workspace.CountNonWhitespace(text))
}

func (s *Session) setContentsLocked(text string, count int) {
	if text == s.state.Contents && count == s.state.CharacterCount {
		return
	}
	s.state.Contents = text
	s.state.CharacterCount = count
	s.publishLocked(EventContents)
}

func (s *Session) publishLocked(kind EventKind) {
	for ch := range s.subs {
		select {
		case ch <- Event{Kind: kind}:
		default:
		}
	}
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
