package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tidelab/swell/internal/work"
)

var (
	primaryColor = lipgloss.Color("#A78BFA") // purple
	okColor      = lipgloss.Color("#10B981") // green
	warnColor    = lipgloss.Color("#F59E0B") // amber
	errColor     = lipgloss.Color("#F87171") // red
	mutedColor   = lipgloss.Color("#9CA3AF") // gray
	infoColor    = lipgloss.Color("#60A5FA") // blue

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(mutedColor)

	okStyle    = lipgloss.NewStyle().Foreground(okColor)
	warnStyle  = lipgloss.NewStyle().Foreground(warnColor)
	errStyle   = lipgloss.NewStyle().Foreground(errColor)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)
	infoStyle  = lipgloss.NewStyle().Foreground(infoColor)
)

func statusStyle(s work.Status) lipgloss.Style {
	switch s {
	case work.StatusCompleted:
		return okStyle
	case work.StatusInProgress:
		return infoStyle
	case work.StatusFailed, work.StatusBlocked:
		return errStyle
	case work.StatusRolledBack:
		return warnStyle
	default:
		return mutedStyle
	}
}

func waveStyle(s work.WaveStatus) lipgloss.Style {
	switch s {
	case work.WavePassed:
		return okStyle
	case work.WaveFailed:
		return errStyle
	case work.WaveRunning, work.WaveVerifying:
		return infoStyle
	case work.WaveSkipped:
		return warnStyle
	default:
		return mutedStyle
	}
}

func waveGlyph(s work.WaveStatus) string {
	switch s {
	case work.WavePassed:
		return "✓"
	case work.WaveFailed:
		return "✗"
	case work.WaveRunning:
		return "▶"
	case work.WaveVerifying:
		return "?"
	case work.WaveSkipped:
		return "»"
	default:
		return "·"
	}
}

func runStateStyle(s work.RunState) lipgloss.Style {
	switch s {
	case work.RunComplete:
		return okStyle
	case work.RunStalled, work.RunMaxIterations:
		return errStyle
	default:
		return infoStyle
	}
}
