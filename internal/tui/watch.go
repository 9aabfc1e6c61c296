// Package tui provides the live session view for veriflow watch mode.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"veriflow/internal/telemetry"
)

// feedLimit caps how many events the feed keeps on screen.
const feedLimit = 20

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// eventMsg wraps one coordination event for the update loop.
type eventMsg telemetry.Event

// doneMsg signals that the event stream closed.
type doneMsg struct{}

// Watch is the bubbletea model rendering a live coordination session.
type Watch struct {
	request string
	events  <-chan telemetry.Event
	spin    spinner.Model
	feed    []string
	stage   string
	done    bool
	quit    bool
}

// NewWatch creates the watch model over a coordinator event stream.
func NewWatch(request string, events <-chan telemetry.Event) *Watch {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	return &Watch{
		request: request,
		events:  events,
		spin:    sp,
	}
}

// Init starts the spinner and the event pump.
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spin.Tick, w.nextEvent())
}

// nextEvent waits for the next coordination event.
func (w *Watch) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles messages.
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			w.quit = true
			return w, tea.Quit
		}
	case eventMsg:
		w.apply(telemetry.Event(msg))
		return w, w.nextEvent()
	case doneMsg:
		w.done = true
		return w, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spin, cmd = w.spin.Update(msg)
		return w, cmd
	}
	return w, nil
}

// apply folds one event into the view state.
func (w *Watch) apply(ev telemetry.Event) {
	if ev.Stage != "" {
		w.stage = ev.Stage
	}

	var line string
	switch ev.Type {
	case telemetry.EventHallucinationFlagged:
		line = failStyle.Render(fmt.Sprintf("✗ hallucination [%s] %s", ev.AgentID, ev.Detail))
	case telemetry.EventCompletionVetoed:
		line = warnStyle.Render(fmt.Sprintf("⚠ veto %s", ev.Detail))
	case telemetry.EventForcedAssignment:
		line = warnStyle.Render(fmt.Sprintf("⚠ forced assignment %s", ev.Detail))
	case telemetry.EventGateResult:
		if strings.Contains(ev.Detail, "passed") {
			line = okStyle.Render(fmt.Sprintf("✓ %s gate %s", ev.Stage, ev.Detail))
		} else {
			line = failStyle.Render(fmt.Sprintf("✗ %s gate %s", ev.Stage, ev.Detail))
		}
	case telemetry.EventSessionDone:
		line = titleStyle.Render(fmt.Sprintf("session %s", ev.Detail))
	default:
		line = dimStyle.Render(fmt.Sprintf("%s %s %s", ev.Type, ev.Stage, ev.Detail))
	}

	w.feed = append(w.feed, line)
	if len(w.feed) > feedLimit {
		w.feed = w.feed[len(w.feed)-feedLimit:]
	}
}

// View renders the session header and the event feed.
func (w *Watch) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("veriflow"))
	b.WriteString(dimStyle.Render("  " + w.request))
	b.WriteString("\n")
	if w.done {
		b.WriteString(okStyle.Render("finished"))
	} else {
		b.WriteString(w.spin.View())
		b.WriteString(stageStyle.Render(" stage: " + orDash(w.stage)))
	}
	b.WriteString("\n\n")

	for _, line := range w.feed {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Run blocks until the session ends or the user quits.
func Run(request string, events <-chan telemetry.Event) error {
	p := tea.NewProgram(NewWatch(request, events))
	_, err := p.Run()
	return err
}
