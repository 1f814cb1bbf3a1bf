// Package tui renders a live dashboard over the event bus while a run
// executes. The engine runs on its own goroutine; the dashboard only
// observes, and quitting it cancels the run between waves instead of
// killing work in flight.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tidelab/swell/internal/engine"
	"github.com/tidelab/swell/internal/event"
)

// Run executes eng under a live dashboard fed by bus. The returned report
// and error are the engine's own; a dashboard failure cancels the run and
// still waits for the engine to hand back its report.
func Run(ctx context.Context, eng *engine.Engine, bus *event.Bus) (*engine.RunReport, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(cancel), tea.WithAltScreen())

	sub := bus.SubscribeAll(func(ev event.Event) {
		p.Send(busMsg{ev: ev})
	})
	defer bus.Unsubscribe(sub)

	// Buffered so the engine goroutine never blocks on a dashboard that
	// already exited.
	done := make(chan runDoneMsg, 1)
	go func() {
		rep, err := eng.Run(runCtx)
		msg := runDoneMsg{report: rep, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		res := <-done
		if res.err != nil {
			return res.report, res.err
		}
		return res.report, err
	}

	res := <-done
	return res.report, res.err
}
