// Package tui provides the Bubble Tea front end: a file list, the selected
// file's contents, a stdin editor and the output of the last run.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/fakeyudi/codebattle/internal/executor"
	"github.com/fakeyudi/codebattle/internal/logging"
	"github.com/fakeyudi/codebattle/internal/session"
	"github.com/fakeyudi/codebattle/internal/workspace"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	// Pane heading
	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	copiedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("82"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	// Row under the list cursor
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("62"))
)

// ── Keys ────────────

type keyMap struct {
	Up, Down, Select key.Binding
	EditStdin, Leave key.Binding
	Run, Copy        key.Binding
	ChangeDir, Quit  key.Binding
	ForceQuit        key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		EditStdin: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "stdin")),
		Leave:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Run:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "run")),
		Copy:      key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy")),
		ChangeDir: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "open dir")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) hints(f focusArea) []key.Binding {
	switch f {
	case focusStdin:
		return []key.Binding{k.Leave, k.Run, k.Copy}
	case focusDirPrompt:
		return []key.Binding{k.Select, k.Leave}
	}
	return []key.Binding{k.Up, k.Down, k.Select, k.EditStdin, k.Run, k.Copy, k.ChangeDir, k.Quit}
}

// ── Messages ────────────

type focusArea int

const (
	focusList focusArea = iota
	focusStdin
	focusDirPrompt
)

// sessionEventMsg carries one session state change into the update loop.
type sessionEventMsg struct{ ev session.Event }

// sessionClosedMsg is sent once the session's event channel is closed.
type sessionClosedMsg struct{}

type dirChosenMsg struct {
	dir string
	err error
}

type runFinishedMsg struct{ res executor.RunResult }

type copyDoneMsg struct{ err error }

// waitForEvent blocks on the session's event channel and hands the next
// event to Bubble Tea. Update re-issues it after every event.
func waitForEvent(ch <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg{ev: ev}
	}
}

func chooseDirectory(s *session.Session, dir string) tea.Cmd {
	return func() tea.Msg {
		return dirChosenMsg{dir: dir, err: s.ChooseDirectory(dir)}
	}
}

func runFile(ctx context.Context, s *session.Session, path, stdin string) tea.Cmd {
	return func() tea.Msg {
		return runFinishedMsg{res: s.Run(ctx, path, stdin)}
	}
}

func copyContents(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		return copyDoneMsg{err: s.CopyCurrentContentsToClipboard()}
	}
}

// ── Model ────────────────────

// Options configures the TUI.
type Options struct {
	// Dir is the directory opened at start. Empty falls back to the saved
	// preferences, then to the working directory.
	Dir    string
	Prefs  session.PrefsStore // nil disables persistence
	Logger *zap.Logger
}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	ctx    context.Context
	sess   *session.Session
	prefs  session.PrefsStore
	logger *zap.Logger
	keys   keyMap

	events      <-chan session.Event
	unsubscribe func()

	state   session.State
	cursor  int
	focus   focusArea
	status  string
	restore string // file to reselect once the first listing arrives

	startDir string
	contents viewport.Model
	output   viewport.Model
	stdin    textarea.Model
	dirInput textinput.Model

	width  int
	height int
	ready  bool
}

// New creates a TUI model bound to sess.
func New(ctx context.Context, sess *session.Session, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ta := textarea.New()
	ta.Placeholder = "stdin for the program"
	ta.ShowLineNumbers = false
	ta.Blur()

	ti := textinput.New()
	ti.Prompt = "directory: "
	ti.Placeholder = "/path/to/problems"

	m := Model{
		ctx:      ctx,
		sess:     sess,
		prefs:    opts.Prefs,
		logger:   logger,
		keys:     defaultKeys(),
		startDir: opts.Dir,
		stdin:    ta,
		dirInput: ti,
		contents: viewport.New(0, 0),
		output:   viewport.New(0, 0),
	}
	m.events, m.unsubscribe = sess.Subscribe()

	if m.prefs != nil {
		p, err := m.prefs.Load()
		switch {
		case err == nil:
			if m.startDir == "" {
				m.startDir = p.Directory
				m.restore = p.SelectedFile
			}
			m.stdin.SetValue(p.Stdin)
		case !errors.Is(err, session.ErrNoPrefs):
			logger.Warn("loading preferences", logging.Err(err))
		}
	}
	if m.startDir == "" {
		m.startDir = "."
	}
	if abs, err := filepath.Abs(m.startDir); err == nil {
		m.startDir = abs
	}
	return m
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), chooseDirectory(m.sess, m.startDir))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case sessionEventMsg:
		m.refresh()
		return m, waitForEvent(m.events)

	case sessionClosedMsg:
		return m, nil

	case dirChosenMsg:
		if msg.err != nil {
			m.status = "watch failed: " + msg.err.Error()
		} else {
			m.status = ""
		}
		m.refresh()
		m.cursor = 0
		m.autoSelect()
		m.savePrefs()
		return m, nil

	case runFinishedMsg:
		m.refresh()
		return m, nil

	case copyDoneMsg:
		if msg.err != nil {
			m.logger.Warn("copy failed", logging.Err(msg.err))
			m.status = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m.quit()
		}
		switch m.focus {
		case focusDirPrompt:
			return m.updateDirPrompt(msg)
		case focusStdin:
			return m.updateStdin(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.state.Entries)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Select):
		if m.cursor >= len(m.state.Entries) {
			return m, nil
		}
		e := m.state.Entries[m.cursor]
		if e.IsDir {
			return m, chooseDirectory(m.sess, e.Path)
		}
		m.sess.SelectFile(e.Path)
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.EditStdin):
		m.focus = focusStdin
		return m, m.stdin.Focus()
	case key.Matches(msg, m.keys.ChangeDir):
		m.focus = focusDirPrompt
		m.dirInput.SetValue(m.state.Directory)
		m.dirInput.CursorEnd()
		return m, m.dirInput.Focus()
	case key.Matches(msg, m.keys.Run):
		return m.run()
	case key.Matches(msg, m.keys.Copy):
		return m, copyContents(m.sess)
	}
	var cmd tea.Cmd
	m.contents, cmd = m.contents.Update(msg)
	return m, cmd
}

func (m Model) updateStdin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		m.stdin.Blur()
		m.focus = focusList
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Run):
		return m.run()
	case key.Matches(msg, m.keys.Copy):
		return m, copyContents(m.sess)
	}
	var cmd tea.Cmd
	m.stdin, cmd = m.stdin.Update(msg)
	return m, cmd
}

func (m Model) updateDirPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		m.dirInput.Blur()
		m.focus = focusList
		return m, nil
	case key.Matches(msg, m.keys.Select):
		dir := strings.TrimSpace(m.dirInput.Value())
		m.dirInput.Blur()
		m.focus = focusList
		if dir == "" {
			return m, nil
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		return m, chooseDirectory(m.sess, dir)
	}
	var cmd tea.Cmd
	m.dirInput, cmd = m.dirInput.Update(msg)
	return m, cmd
}

func (m Model) run() (tea.Model, tea.Cmd) {
	path := m.state.SelectedPath
	if path == "" {
		m.status = "select a file first"
		return m, nil
	}
	if m.state.Running {
		m.status = "run in progress"
		return m, nil
	}
	m.status = ""
	return m, runFile(m.ctx, m.sess, path, m.stdin.Value())
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.savePrefs()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

// refresh pulls a fresh snapshot and pushes it into the viewports.
func (m *Model) refresh() {
	m.state = m.sess.Snapshot()
	if m.cursor >= len(m.state.Entries) {
		m.cursor = max(len(m.state.Entries)-1, 0)
	}
	m.contents.SetContent(m.state.Contents)
	m.output.SetContent(m.state.LastOutput)
	m.output.GotoBottom()
}

// autoSelect picks the file to show after a directory change: the saved
// selection if it is still listed, otherwise the first file.
func (m *Model) autoSelect() {
	if m.state.SelectedPath != "" {
		return
	}
	target := ""
	if m.restore != "" && workspace.Contains(m.state.Entries, m.restore) {
		target = m.restore
	}
	m.restore = ""
	for i, e := range m.state.Entries {
		if target == "" && !e.IsDir {
			target = e.Path
		}
		if e.Path == target {
			m.cursor = i
			break
		}
	}
	if target == "" {
		return
	}
	m.sess.SelectFile(target)
	m.refresh()
}

func (m *Model) savePrefs() {
	if m.prefs == nil || m.state.Directory == "" {
		return
	}
	p := &session.Prefs{
		Directory:    m.state.Directory,
		SelectedFile: m.state.SelectedPath,
		Stdin:        m.stdin.Value(),
	}
	if err := m.prefs.Save(p); err != nil {
		m.logger.Warn("saving preferences", logging.Err(err))
	}
}

// ── Layout ────────────

const (
	listWidth   = 32
	stdinHeight = 5
)

func (m *Model) layout() {
	// title(1) + status bar(1) + prompt(1)
	body := max(m.height-3, 6)
	right := max(m.width-listWidth-4, 10)

	// Three stacked panes on the right, each with a border(2) and heading(1).
	avail := max(body-3*3-stdinHeight, 2)
	contentsH := avail * 3 / 5
	outputH := avail - contentsH

	m.contents.Width = right
	m.contents.Height = contentsH
	m.output.Width = right
	m.output.Height = outputH
	m.stdin.SetWidth(right)
	m.stdin.SetHeight(stdinHeight)
	m.dirInput.Width = max(m.width-len(m.dirInput.Prompt)-2, 10)
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  codebattle  " + m.state.Directory)

	list := m.paneStyle(focusList).
		Width(listWidth).
		Height(m.contents.Height + m.output.Height + stdinHeight + 7).
		Render(m.renderList())

	right := lipgloss.JoinVertical(lipgloss.Left,
		m.paneStyle(-1).Render(m.contentsHeader()+"\n"+m.contents.View()),
		m.paneStyle(focusStdin).Render(sectionHeader.Render("stdin")+"\n"+m.stdin.View()),
		m.paneStyle(-1).Render(m.outputHeader()+"\n"+m.output.View()),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, right)

	prompt := ""
	if m.focus == focusDirPrompt {
		prompt = m.dirInput.View()
	} else if m.status != "" {
		prompt = errorStyle.Render("  " + m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, body, prompt, m.statusBar())
}

func (m Model) paneStyle(f focusArea) lipgloss.Style {
	if f == m.focus {
		return focusedPaneStyle
	}
	return paneStyle
}

func (m Model) renderList() string {
	var sb strings.Builder
	sb.WriteString(sectionHeader.Render("files") + "\n")
	if len(m.state.Entries) == 0 {
		sb.WriteString(dimStyle.Render("(empty)"))
		return sb.String()
	}

	// Keep the cursor inside the visible window.
	rows := max(m.contents.Height+m.output.Height+stdinHeight+6, 1)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(m.state.Entries))

	for i := start; i < end; i++ {
		e := m.state.Entries[i]
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		marker := "  "
		if e.Path == m.state.SelectedPath {
			marker = "● "
		}
		row := truncate(marker+name, listWidth)
		switch {
		case i == m.cursor:
			row = selectedRowStyle.Width(listWidth).Render(row)
		case e.Hidden:
			row = dimStyle.Render(row)
		}
		sb.WriteString(row + "\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (m Model) contentsHeader() string {
	name := "no file selected"
	if m.state.SelectedPath != "" {
		name = filepath.Base(m.state.SelectedPath)
	}
	h := sectionHeader.Render(name) + "  " +
		labelStyle.Render(fmt.Sprintf("%d chars", m.state.CharacterCount))
	if m.state.JustCopied {
		h += "  " + copiedStyle.Render("copied")
	}
	return h
}

func (m Model) outputHeader() string {
	h := sectionHeader.Render("output")
	switch {
	case m.state.Running:
		h += "  " + dimStyle.Render("running…")
	case m.state.LastExitCode != nil && *m.state.LastExitCode == 0:
		h += "  " + okStyle.Render("exit 0")
	case m.state.LastExitCode != nil:
		h += "  " + errorStyle.Render(fmt.Sprintf("exit %d", *m.state.LastExitCode))
	}
	return h
}

func (m Model) statusBar() string {
	var parts []string
	for _, b := range m.keys.hints(m.focus) {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return statusBarStyle.Width(m.width).Render("  " + strings.Join(parts, "  "))
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// Run starts the TUI bound to sess and blocks until the user quits.
func Run(ctx context.Context, sess *session.Session, opts Options) error {
	p := tea.NewProgram(New(ctx, sess, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
