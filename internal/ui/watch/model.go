// Package watch is the live terminal view of the autonomous scheduler.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/inbox-triage/internal/scheduler"
	"github.com/nhle/inbox-triage/internal/theme"
	"github.com/nhle/inbox-triage/internal/ui"
	"github.com/nhle/inbox-triage/internal/ui/summary"
)

const maxHistory = 10

// Controller is the scheduler surface the view drives.
type Controller interface {
	Start(ctx context.Context) bool
	Stop()
	State() scheduler.State
	Outcomes() <-chan scheduler.Outcome
}

// OutcomeMsg wraps a scheduler outcome for the Bubble Tea runtime.
type OutcomeMsg struct {
	Outcome scheduler.Outcome
}

// channelClosedMsg is sent when the outcome channel is drained for good.
type channelClosedMsg struct{}

type keyMap struct {
	Toggle key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start/stop")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the Bubble Tea model for the watch view.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	spinner  spinner.Model
	history  []scheduler.Outcome
	frame    ui.Frame
	quitting bool
}

// New creates the view. ctx bounds scheduler runs started from the view.
func New(ctx context.Context, ctrl Controller) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.HelpStyle

	return Model{ctx: ctx, ctrl: ctrl, spinner: sp}
}

// Init starts the scheduler and subscribes to outcomes.
func (m Model) Init() tea.Cmd {
	m.ctrl.Start(m.ctx)
	return tea.Batch(m.spinner.Tick, waitForOutcome(m.ctrl.Outcomes()))
}

// waitForOutcome blocks on the next outcome. It is re-issued after every
// OutcomeMsg to keep listening.
func waitForOutcome(ch <-chan scheduler.Outcome) tea.Cmd {
	return func() tea.Msg {
		out, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return OutcomeMsg{Outcome: out}
	}
}

// Update handles key presses, spinner ticks and outcomes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.frame = ui.Frame{Width: msg.Width, Height: msg.Height}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			m.ctrl.Stop()
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			if m.ctrl.State() == scheduler.Running {
				m.ctrl.Stop()
			} else {
				m.ctrl.Start(m.ctx)
			}
			return m, nil
		}
		return m, nil

	case OutcomeMsg:
		m.history = append([]scheduler.Outcome{msg.Outcome}, m.history...)
		if len(m.history) > maxHistory {
			m.history = m.history[:maxHistory]
		}
		return m, waitForOutcome(m.ctrl.Outcomes())

	case channelClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the state header, recent outcomes and key hints.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	state := "idle"
	if m.ctrl.State() == scheduler.Running {
		state = m.spinner.View() + " running"
	}

	var b strings.Builder
	if len(m.history) == 0 {
		b.WriteString(theme.HelpStyle.Render("waiting for the first cycle..."))
		b.WriteString("\n")
	}
	for _, out := range m.history {
		b.WriteString(renderOutcome(out))
		b.WriteString("\n")
	}

	hints := fmt.Sprintf("%s %s  %s %s",
		keys.Toggle.Help().Key, keys.Toggle.Help().Desc,
		keys.Quit.Help().Key, keys.Quit.Help().Desc,
	)
	return m.frame.Compose(
		m.frame.Header("inboxagent watch", state),
		b.String(),
		m.frame.StatusBar(hints),
	)
}

func renderOutcome(out scheduler.Outcome) string {
	stamp := theme.HelpStyle.Render(out.At.Format(time.TimeOnly))
	next := theme.HelpStyle.Render("next in " + out.Next.Round(time.Second).String())

	switch {
	case out.Err != nil:
		return fmt.Sprintf("%s %s %s", stamp, theme.ErrorStyle.Render("failed: "+out.Err.Error()), next)
	case out.Skipped:
		return fmt.Sprintf("%s %s %s", stamp, theme.HelpStyle.Render("skipped, auto-reply disabled"), next)
	case out.Summary != nil:
		return fmt.Sprintf("%s %s %s", stamp, summary.Counters(*out.Summary), next)
	default:
		return stamp
	}
}
