package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tidelab/swell/internal/engine"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/work"
)

func feed(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		if !ok {
			t.Fatalf("Update returned %T, want Model", next)
		}
	}
	return m
}

func TestModel_TracksWaveAndCounters(t *testing.T) {
	m := feed(t, NewModel(nil),
		busMsg{ev: event.NewRunStartedEvent("ab12cd34", 3, false)},
		busMsg{ev: event.NewWaveStartedEvent(1, []string{"item-a", "item-b"}, 2)},
		busMsg{ev: event.NewItemDispatchedEvent("item-a", 1, "worker-1")},
		busMsg{ev: event.NewItemDispatchedEvent("item-b", 1, "worker-2")},
		busMsg{ev: event.NewItemFinishedEvent("item-a", 1, true, "done")},
	)

	view := m.View()
	if !strings.Contains(view, "ab12cd34") {
		t.Errorf("view does not name the run:\n%s", view)
	}
	if !strings.Contains(view, "wave 1 · 1 in flight") {
		t.Errorf("view does not show the wave in flight:\n%s", view)
	}
	if !strings.Contains(view, "item-b") {
		t.Errorf("view does not list the item still in flight:\n%s", view)
	}
	if !strings.Contains(view, "delivered 1 · failed 0 · rolled back 0") {
		t.Errorf("view does not show the counters:\n%s", view)
	}
}

func TestModel_CountsFailuresAndRollbacks(t *testing.T) {
	m := feed(t, NewModel(nil),
		busMsg{ev: event.NewItemDispatchedEvent("item-a", 1, "worker-1")},
		busMsg{ev: event.NewItemFinishedEvent("item-a", 1, false, "")},
		busMsg{ev: event.NewItemRolledBackEvent("item-b", 1, "verification failed")},
	)

	if m.rejected != 1 || m.rolledBack != 1 {
		t.Errorf("rejected=%d rolledBack=%d, want 1 and 1", m.rejected, m.rolledBack)
	}
	if len(m.inFlight) != 0 {
		t.Errorf("inFlight has %d entries after the item finished", len(m.inFlight))
	}
}

func TestModel_FeedStaysBounded(t *testing.T) {
	m := NewModel(nil)
	for i := 0; i < feedSize*3; i++ {
		m = feed(t, m, busMsg{ev: event.NewItemRolledBackEvent("item-x", 1, "again")})
	}
	if len(m.feed) != feedSize {
		t.Errorf("feed holds %d lines, want %d", len(m.feed), feedSize)
	}
}

func TestModel_IterativeShowsCycle(t *testing.T) {
	m := feed(t, NewModel(nil),
		busMsg{ev: event.NewRunStartedEvent("ab12cd34", 1, true)},
		busMsg{ev: event.NewIterationFinishedEvent(1, 2, true)},
	)
	if !strings.Contains(m.View(), "cycle 2") {
		t.Errorf("view does not advance the cycle:\n%s", m.View())
	}
}

func TestModel_QuitRequestCancelsOnce(t *testing.T) {
	cancelled := 0
	m := NewModel(func() { cancelled++ })

	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
	m = feed(t, m, key, key)

	if cancelled != 1 {
		t.Errorf("cancel ran %d times, want once", cancelled)
	}
	if !m.stopping {
		t.Error("model is not stopping after q")
	}
	if !strings.Contains(m.View(), "stopping") {
		t.Errorf("view does not announce the stop:\n%s", m.View())
	}
}

func TestModel_RunDoneQuits(t *testing.T) {
	rep := &engine.RunReport{State: work.RunComplete}
	next, cmd := NewModel(nil).Update(runDoneMsg{report: rep})
	m := next.(Model)

	if cmd == nil {
		t.Fatal("no command returned for runDoneMsg")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("command produced %T, want tea.QuitMsg", cmd())
	}
	if !m.done || m.report != rep {
		t.Error("model did not record the finished run")
	}
	if m.View() != "" {
		t.Errorf("finished model still renders:\n%s", m.View())
	}
}
