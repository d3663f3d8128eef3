// Package ui provides the styled rendering helpers used by nfcsync CLI
// output.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// colorEnabled honors NO_COLOR and friends.
func colorEnabled() bool {
	return !termenv.EnvNoColor()
}

func render(style lipgloss.Style, s string) string {
	if !colorEnabled() {
		return s
	}
	return style.Render(s)
}

// RenderPass styles a success glyph or message.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderFail styles a failure glyph or message.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderWarn styles a warning glyph or message.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderAccent styles an informational highlight.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderMuted styles secondary detail.
func RenderMuted(s string) string { return render(mutedStyle, s) }
