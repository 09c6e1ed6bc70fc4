// Package summary renders cycle summaries for the terminal.
package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/theme"
)

const subjectWidth = 48

// Counters renders the one-line totals of a cycle.
func Counters(s model.CycleSummary) string {
	line := fmt.Sprintf("processed %d of %d unread, %d auto-replies",
		s.ProcessedCount, s.TotalUnread, s.AutoRepliesSent)
	if s.QuotaLimited {
		line += theme.HelpStyle.Render(fmt.Sprintf(" (%d left for later cycles)", s.RemainingUnread))
	}
	return line
}

// Render renders the full summary: digest, counters and one row per
// message.
func Render(s model.CycleSummary, width int) string {
	var b strings.Builder

	b.WriteString(theme.HeaderStyle.Render("Inbox cycle"))
	b.WriteString("\n\n")
	b.WriteString(Counters(s))
	b.WriteString("\n")

	if len(s.ProcessedEmails) > 0 {
		b.WriteString("\n")
		for _, r := range s.ProcessedEmails {
			b.WriteString(Row(r))
			b.WriteString("\n")
		}
	}

	digest := strings.TrimSpace(s.Summary)
	if digest != "" {
		style := theme.PanelStyle
		if width > 4 {
			style = style.Width(width - 2)
		}
		b.WriteString("\n")
		b.WriteString(style.Render(digest))
		b.WriteString("\n")
	}

	return b.String()
}

// Row renders one processed message.
func Row(r model.ProcessingResult) string {
	status := theme.HelpStyle.Render("suggested")
	switch {
	case r.Error != "":
		status = theme.ErrorStyle.Render("error: " + r.Error)
	case r.AutoReplySent:
		status = theme.SuccessStyle.Render("auto-replied")
	}

	category := theme.CategoryStyle(r.Category).Width(17).Render(string(r.Category))
	return lipgloss.JoinHorizontal(lipgloss.Top,
		category,
		" ",
		lipgloss.NewStyle().Width(subjectWidth).Render(clip(r.Message.Subject, subjectWidth-2)),
		" ",
		status,
	)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
