// Package tui provides the BubbleTea-based heads-up display.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/display"
	"github.com/jmylchreest/callhud/internal/model"
	"github.com/jmylchreest/callhud/internal/queue"
	"github.com/jmylchreest/callhud/internal/render"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeHelp
)

// statusTimeout is how long a status line message stays up.
const statusTimeout = 3 * time.Second

// Model is the HUD model.
type Model struct {
	cfg     *config.Config
	queue   *queue.Queue
	manager *display.Manager
	now     func() time.Time

	renderer *render.Renderer
	cache    *render.Cache

	mode Mode
	help help.Model
	keys KeyMap

	// State
	calls    []model.Call
	cursor   int
	offset   int
	width    int
	height   int
	ready    bool
	clearSeq int

	// Status message
	statusMsg string
	statusErr bool

	refreshCh <-chan queue.ChangeEvent
}

// Options configures a HUD model.
type Options struct {
	Config  *config.Config
	Queue   *queue.Queue
	Manager *display.Manager
	// Now defaults to time.Now.
	Now func() time.Time
}

// New creates a HUD model. It subscribes to queue changes.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	r := render.NewRenderer(cfg.Display.Theme)
	h := help.New()
	h.ShowAll = true

	m := Model{
		cfg:      cfg,
		queue:    opts.Queue,
		manager:  opts.Manager,
		now:      now,
		renderer: r,
		cache:    render.NewCache(r),
		mode:     ModeList,
		help:     h,
		keys:     DefaultKeyMap(),
	}

	if opts.Queue != nil {
		m.refreshCh = opts.Queue.Subscribe()
		m.calls = opts.Queue.Snapshot()
	}

	return m
}

// ConfigMsg delivers a reloaded configuration to the HUD.
type ConfigMsg struct {
	Config *config.Config
}

type refreshMsg struct{}

type tickMsg time.Time

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct {
	seq int
}

type actionResultMsg struct {
	verb string
	id   string
	err  error
}

// Init initializes the HUD.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.watchForChanges,
		tick(),
	)
}

// watchForChanges waits for the next queue change.
func (m Model) watchForChanges() tea.Msg {
	if m.refreshCh == nil {
		return nil
	}
	if _, ok := <-m.refreshCh; !ok {
		return nil
	}
	return refreshMsg{}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, m.watchForChanges

	case tickMsg:
		// Relative times and countdowns move on even without queue changes
		return m, tick()

	case ConfigMsg:
		if msg.Config != nil {
			m.cfg = msg.Config
			m.renderer = render.NewRenderer(msg.Config.Display.Theme)
			m.cache.Reset(m.renderer)
			m.clampCursor()
		}
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		m.clearSeq++
		seq := m.clearSeq
		return m, tea.Tick(statusTimeout, func(time.Time) tea.Msg {
			return clearStatusMsg{seq: seq}
		})

	case clearStatusMsg:
		// A newer status message owns the line
		if msg.seq == m.clearSeq {
			m.statusMsg = ""
			m.statusErr = false
		}
		return m, nil

	case actionResultMsg:
		return m, status(describeResult(msg))
	}

	return m, nil
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

func describeResult(r actionResultMsg) (string, bool) {
	if r.err != nil {
		if errors.Is(r.err, display.ErrUnknownCall) {
			return "Call already closed", true
		}
		return fmt.Sprintf("%s failed: %v", r.verb, r.err), true
	}
	switch r.verb {
	case "Attach":
		return "Attached to call", false
	case "Waypoint":
		return "Waypoint set", false
	case "Dismiss":
		return "Call dismissed", false
	case "Copy":
		return "Copied to clipboard", false
	}
	return r.verb, false
}

// refresh reloads the queue snapshot, keeping the cursor on the same call.
func (m *Model) refresh() {
	var selectedID string
	if c, ok := m.selected(); ok {
		selectedID = c.ID
	}

	if m.queue != nil {
		m.calls = m.queue.Snapshot()
	}
	m.cache.Retain(m.calls)

	if selectedID != "" {
		for i, c := range m.calls {
			if c.ID == selectedID {
				m.cursor = i
				break
			}
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.calls) {
		m.cursor = len(m.calls) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	maxVisible := m.cfg.Display.MaxVisible
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+maxVisible {
		m.offset = m.cursor - maxVisible + 1
	}
	if m.offset > max(len(m.calls)-maxVisible, 0) {
		m.offset = max(len(m.calls)-maxVisible, 0)
	}
}

func (m Model) selected() (model.Call, bool) {
	if m.cursor < 0 || m.cursor >= len(m.calls) {
		return model.Call{}, false
	}
	return m.calls[m.cursor], true
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeList
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	if m.mode == ModeHelp {
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}

	return m.handleListKey(msg)
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
		return m, nil
	}

	call, ok := m.selected()
	if !ok || m.manager == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Attach):
		return m, m.action("Attach", call.ID, m.manager.Attach)

	case key.Matches(msg, m.keys.Waypoint):
		return m, m.action("Waypoint", call.ID, m.manager.Waypoint)

	case key.Matches(msg, m.keys.Dismiss):
		return m, m.action("Dismiss", call.ID, func(id string) error {
			if !m.manager.Dismiss(id) {
				return display.ErrUnknownCall
			}
			return nil
		})

	case key.Matches(msg, m.keys.Copy):
		cfg := m.cfg
		return m, m.action("Copy", call.ID, func(string) error {
			return copyText(callSummary(call), cfg)
		})
	}

	return m, nil
}

// action runs fn off the event loop and reports the outcome.
func (m Model) action(verb, id string, fn func(id string) error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{verb: verb, id: id, err: fn(id)}
	}
}

// View renders the HUD.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeHelp:
		return m.viewHelp()
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Dispatch · %d active", len(m.calls))))
	b.WriteString("\n")

	if len(m.calls) == 0 {
		b.WriteString(m.renderer.Empty())
	} else {
		end := min(m.offset+m.cfg.Display.MaxVisible, len(m.calls))
		cards := make([]string, 0, end-m.offset)
		now := m.now()
		for i := m.offset; i < end; i++ {
			cards = append(cards, m.card(m.calls[i], i == m.cursor, now))
		}
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, cards...))

		if more := len(m.calls) - end + m.offset; more > 0 {
			b.WriteString("\n")
			b.WriteString(m.renderer.More(more))
		}
	}

	b.WriteString("\n")
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		b.WriteString(statusStyle.Render(m.statusMsg))
	} else {
		b.WriteString(m.buildKeybindBar(m.width))
	}

	return b.String()
}

func (m Model) card(c model.Call, selected bool, now time.Time) string {
	opts := render.Options{
		Width:       m.cfg.Display.Width,
		Selected:    selected,
		ShowPlate:   m.cfg.Display.ShowPlate,
		ShowVehicle: m.cfg.Display.ShowVehicle,
	}
	if m.cfg.Display.ShowCountdown && m.manager != nil {
		opts.Remaining = m.manager.Remaining(c.ID)
	}
	return m.cache.Card(c, render.RelativeTime(c.Info.Time, now), opts)
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	return titleStyle.Render("Keyboard Shortcuts") + "\n\n" +
		m.help.View(m.keys) + "\n\n" +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Press ? or esc to return")
}

// keybind is one status bar entry.
type keybind struct {
	key  string
	desc string
}

// Most important first; the bar drops entries from the end when narrow.
var listKeybinds = []keybind{
	{"a", "attach"},
	{"d", "dismiss"},
	{"w", "waypoint"},
	{"q", "quit"},
	{"?", "help"},
	{"c", "copy"},
	{"↑/↓", "select"},
}

// buildKeybindBar builds a keybind bar that fits within the given width.
func (m Model) buildKeybindBar(width int) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	const separator = "  "
	result := ""
	used := 0
	for _, b := range listKeybinds {
		plain := b.key + " " + b.desc
		next := used + lipgloss.Width(plain)
		if result != "" {
			next += len(separator)
		}
		if width > 0 && next > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		used = next
	}

	return style.Render(result)
}

// NewProgram creates the HUD program. The program stops when ctx is done.
func NewProgram(ctx context.Context, opts Options, programOpts ...tea.ProgramOption) *tea.Program {
	programOpts = append([]tea.ProgramOption{tea.WithContext(ctx)}, programOpts...)
	return tea.NewProgram(New(opts), programOpts...)
}
