package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tidelab/swell/internal/engine"
	"github.com/tidelab/swell/internal/event"
)

// feedSize bounds the rolling event feed.
const feedSize = 8

var (
	primaryColor = lipgloss.Color("#A78BFA")
	okColor      = lipgloss.Color("#10B981")
	warnColor    = lipgloss.Color("#F59E0B")
	errColor     = lipgloss.Color("#F87171")
	mutedColor   = lipgloss.Color("#9CA3AF")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	okStyle    = lipgloss.NewStyle().Foreground(okColor)
	warnStyle  = lipgloss.NewStyle().Foreground(warnColor)
	errStyle   = lipgloss.NewStyle().Foreground(errColor)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// busMsg wraps a bus event forwarded into the program.
type busMsg struct {
	ev event.Event
}

// runDoneMsg carries the engine's final word.
type runDoneMsg struct {
	report *engine.RunReport
	err    error
}

// Model is the live run dashboard. It consumes bus events and renders the
// current wave, the workers in flight, and a rolling feed of what happened.
type Model struct {
	spinner spinner.Model
	cancel  context.CancelFunc

	runID      string
	iterative  bool
	cycle      int
	waveIndex  int
	inFlight   map[string]struct{}
	delivered  int
	rejected   int
	rolledBack int
	feed       []string

	stopping bool
	done     bool
	report   *engine.RunReport
	runErr   error
}

// NewModel builds the dashboard model. cancel stops the run between waves
// when the user quits early; nil is allowed for tests.
func NewModel(cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)
	return Model{
		spinner:  sp,
		cancel:   cancel,
		cycle:    1,
		inFlight: make(map[string]struct{}),
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update reacts to key presses, spinner ticks, bus events, and the run's
// completion.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			// Cancellation lands between waves; the wave in flight
			// always finishes.
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case busMsg:
		m.apply(msg.ev)
		return m, nil

	case runDoneMsg:
		m.done = true
		m.report = msg.report
		m.runErr = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) apply(ev event.Event) {
	switch ev := ev.(type) {
	case event.RunStartedEvent:
		m.runID = ev.RunID
		m.iterative = ev.Iterative
		m.push(mutedStyle.Render(fmt.Sprintf("run started with %d items", ev.ItemCount)))

	case event.WaveStartedEvent:
		m.waveIndex = ev.Index
		m.push(fmt.Sprintf("wave %d started: %d items (ceiling %d)",
			ev.Index, len(ev.ItemIDs), ev.Parallelism))

	case event.WaveVerifiedEvent:
		style := okStyle
		if !ev.Verdict.IsPassing() {
			style = errStyle
		}
		m.push(style.Render(fmt.Sprintf("wave %d verdict: %s (%d issues)",
			ev.Index, ev.Verdict, ev.Issues)))

	case event.ItemDispatchedEvent:
		m.inFlight[ev.ItemID] = struct{}{}

	case event.ItemFinishedEvent:
		delete(m.inFlight, ev.ItemID)
		if ev.Success {
			m.delivered++
			m.push(okStyle.Render("✓ " + ev.ItemID + " delivered"))
		} else {
			m.rejected++
			m.push(errStyle.Render("✗ " + ev.ItemID + " failed"))
		}

	case event.ItemRolledBackEvent:
		m.rolledBack++
		m.push(warnStyle.Render(fmt.Sprintf("↩ %s rolled back: %s", ev.ItemID, ev.Reason)))

	case event.WorkerStuckEvent:
		m.push(warnStyle.Render(fmt.Sprintf("worker %s stuck on %s; %s takes over",
			ev.WorkerID, ev.ItemID, ev.ReplacementID)))

	case event.ConflictEscalatedEvent:
		m.push(warnStyle.Render(fmt.Sprintf("conflict on %s: %s vs %s",
			ev.File, ev.ItemA, ev.ItemB)))

	case event.ItemsMergedEvent:
		m.push(warnStyle.Render(fmt.Sprintf("%s folded into %s",
			strings.Join(ev.SourceIDs, ", "), ev.CompositeID)))

	case event.IterationFinishedEvent:
		m.cycle = ev.Iteration + 1
		m.push(mutedStyle.Render(fmt.Sprintf("cycle %d finished, completed weight %d",
			ev.Iteration, ev.CompletedWeight)))

	case event.RunFinishedEvent:
		m.push(mutedStyle.Render(fmt.Sprintf("run finished: %s", ev.Verdict)))
	}
}

func (m *Model) push(line string) {
	m.feed = append(m.feed, line)
	if len(m.feed) > feedSize {
		m.feed = m.feed[len(m.feed)-feedSize:]
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder

	title := "swell run"
	if m.runID != "" {
		title += " " + m.runID
	}
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(titleStyle.Render(title))
	if m.iterative {
		b.WriteString(mutedStyle.Render(fmt.Sprintf(" · cycle %d", m.cycle)))
	}
	b.WriteString("\n\n")

	if m.waveIndex > 0 {
		b.WriteString(fmt.Sprintf("  wave %d · %d in flight\n", m.waveIndex, len(m.inFlight)))
		if ids := m.flightIDs(); len(ids) > 0 {
			b.WriteString(mutedStyle.Render("  " + strings.Join(ids, "  ")))
			b.WriteString("\n")
		}
	}
	b.WriteString(fmt.Sprintf("  delivered %d · failed %d · rolled back %d\n\n",
		m.delivered, m.rejected, m.rolledBack))

	for _, line := range m.feed {
		b.WriteString("  " + line + "\n")
	}

	b.WriteString("\n")
	if m.stopping {
		b.WriteString(warnStyle.Render("  stopping: the wave in flight finishes first"))
	} else {
		b.WriteString(mutedStyle.Render("  q stops after the wave in flight"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) flightIDs() []string {
	ids := make([]string, 0, len(m.inFlight))
	for id := range m.inFlight {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
