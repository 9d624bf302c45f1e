package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/benywifi/beny/internal/charger"
	"github.com/benywifi/beny/internal/protocol"
)

// Controller is what the dashboard drives. Refresh fetches a reading now;
// ToggleCharging sends a start or stop command.
type Controller interface {
	Refresh(ctx context.Context) (*charger.Reading, error)
	ToggleCharging(ctx context.Context, cmd protocol.ChargerCommand) error
}

// Message types for async operations
type readingMsg struct {
	reading *charger.Reading
	err     error
}

type commandMsg struct {
	cmd protocol.ChargerCommand
	err error
}

// pollMsg fires when the poll interval elapses. Only the newest one
// triggers a refresh.
type pollMsg struct {
	gen int
}

// dashboardKeyMap defines key bindings for the dashboard
type dashboardKeyMap struct {
	Refresh key.Binding
	Start   key.Binding
	Stop    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Start, k.Stop, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newDashboardKeyMap() dashboardKeyMap {
	return dashboardKeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start charging"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop charging"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// DashboardModel is the live view behind "benyctl watch"
type DashboardModel struct {
	ctx      context.Context
	ctrl     Controller
	name     string
	phases   int
	interval time.Duration

	Reading *charger.Reading
	Err     error
	Notice  string // result of the last command, e.g. "Charging started"
	Busy    bool
	gen     int

	Width  int
	Height int

	Spinner spinner.Model
	Help    help.Model
	Keys    dashboardKeyMap
}

// NewDashboardModel creates a dashboard that refreshes every interval.
// phases follows ShowPhases.
func NewDashboardModel(ctx context.Context, ctrl Controller, name string, phases int, interval time.Duration) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()

	return DashboardModel{
		ctx:      ctx,
		ctrl:     ctrl,
		name:     name,
		phases:   phases,
		interval: interval,
		Busy:     true,
		Width:    width,
		Height:   height,
		Spinner:  s,
		Help:     help.New(),
		Keys:     newDashboardKeyMap(),
	}
}

// Init starts the first fetch
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.refreshCmd())
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case readingMsg:
		m.Busy = false
		if msg.err != nil {
			m.Err = msg.err
		} else {
			m.Reading = msg.reading
			m.Err = nil
		}
		m.gen++
		return m, m.pollCmd()

	case commandMsg:
		if msg.err != nil {
			m.Busy = false
			m.Err = msg.err
			m.Notice = ""
			return m, nil
		}
		m.Err = nil
		if msg.cmd == protocol.CommandStart {
			m.Notice = "Charging started"
		} else {
			m.Notice = "Charging stopped"
		}
		return m, m.refreshCmd()

	case pollMsg:
		if msg.gen != m.gen || m.Busy {
			return m, nil
		}
		m.Busy = true
		return m, tea.Batch(m.Spinner.Tick, m.refreshCmd())
	}

	return m, nil
}

func (m DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case m.Busy:
		// One exchange at a time
		return m, nil

	case key.Matches(msg, m.Keys.Refresh):
		m.Busy = true
		m.Notice = ""
		return m, tea.Batch(m.Spinner.Tick, m.refreshCmd())

	case key.Matches(msg, m.Keys.Start):
		m.Busy = true
		return m, tea.Batch(m.Spinner.Tick, m.commandCmd(protocol.CommandStart))

	case key.Matches(msg, m.Keys.Stop):
		m.Busy = true
		return m, tea.Batch(m.Spinner.Tick, m.commandCmd(protocol.CommandStop))
	}
	return m, nil
}

func (m DashboardModel) refreshCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		r, err := ctrl.Refresh(ctx)
		return readingMsg{reading: r, err: err}
	}
}

func (m DashboardModel) commandCmd(cmd protocol.ChargerCommand) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return commandMsg{cmd: cmd, err: ctrl.ToggleCharging(ctx, cmd)}
	}
}

func (m DashboardModel) pollCmd() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	gen := m.gen
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return pollMsg{gen: gen}
	})
}

// View renders the dashboard
func (m DashboardModel) View() string {
	width := clampWidth(m.Width)

	sections := []string{
		NewHeader("Beny charger", m.name).SetWidth(width).Render(),
	}

	switch {
	case m.Reading != nil:
		sections = append(sections, RenderReading(m.Reading, m.phases, width))
	case m.Busy:
		sections = append(sections, PanelStyle(width).Render(m.Spinner.View()+" Waiting for first reading..."))
	}

	sections = append(sections, m.statusLine(), HelpStyle.Render(m.Help.View(m.Keys)))
	return strings.Join(sections, "\n") + "\n"
}

func (m DashboardModel) statusLine() string {
	switch {
	case m.Busy:
		return "  " + m.Spinner.View() + " Talking to charger..."
	case m.Err != nil:
		return ErrorMessageStyle.Render("  " + FailureMarker + " " + charger.GetShortErrorMessage(m.Err))
	case m.Notice != "":
		return SuccessTitleStyle.Render("  " + SuccessMarker + " " + m.Notice)
	default:
		return ""
	}
}

// RunDashboard runs the dashboard full screen until the user quits or ctx
// is done.
func RunDashboard(ctx context.Context, m DashboardModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, err := p.Run()
	return err
}
