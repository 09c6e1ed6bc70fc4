// Package ui holds layout helpers shared by the terminal views.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inbox-triage/internal/theme"
)

// Frame lays a view out as header, body and a one-line status bar.
type Frame struct {
	Width  int
	Height int
}

// BodyHeight is the height left for the body.
func (f Frame) BodyHeight() int {
	return max(0, f.Height-2)
}

// Header renders title on the left and state on the right, padded to the
// full width.
func (f Frame) Header(title, state string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Align(lipgloss.Right).Render(state)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, fill(theme.HeaderStyle, f.Width-lipgloss.Width(left)-lipgloss.Width(right)), right)
}

// StatusBar renders key hints across the full width.
func (f Frame) StatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, fill(theme.StatusBarStyle, f.Width-lipgloss.Width(rendered)))
}

// Compose stacks header, body and status bar. The body is padded to
// BodyHeight so the status bar stays at the bottom.
func (f Frame) Compose(header, body, status string) string {
	if h := f.BodyHeight(); h > 0 {
		body = lipgloss.NewStyle().Height(h).MaxHeight(h).Render(body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func fill(style lipgloss.Style, gap int) string {
	if gap <= 0 {
		return ""
	}
	return lipgloss.NewStyle().Width(gap).Background(style.GetBackground()).Render("")
}
