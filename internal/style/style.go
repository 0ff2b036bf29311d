// Package style defines the terminal styles used to render transcripts.
package style

import (
	"hash/fnv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alienxp03/agora/internal/core"
)

// Palette holds the colors assigned to participants. A participant keeps
// the same color across runs.
var Palette = []lipgloss.Color{
	"#5B8DEF", // Blue
	"#4CC38A", // Green
	"#F5A524", // Amber
	"#B57EDC", // Purple
	"#3FC1C9", // Teal
	"#F7768E", // Pink
}

var (
	Title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	Label = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	Error = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))

	userHeader   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E0AF68"))
	systemHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	modHeader    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))

	Body = lipgloss.NewStyle().PaddingLeft(2)

	Rule = Muted.Render(strings.Repeat("─", 40))
)

// ColorFor returns the palette color of a participant id.
func ColorFor(participantID string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(participantID))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

// HeaderStyle returns the style of a turn's speaker header.
func HeaderStyle(t *core.Turn) lipgloss.Style {
	switch {
	case t.Kind == core.KindUser:
		return userHeader
	case t.Kind == core.KindSystem:
		return systemHeader
	case !t.HasParticipant():
		return modHeader
	default:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorFor(t.ParticipantID))
	}
}

// Status renders a debate status.
func Status(s core.DebateStatus) string {
	if s == core.StatusComplete {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#4CC38A")).Render(string(s))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Render(string(s))
}
