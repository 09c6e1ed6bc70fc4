package intel

import (
	"fmt"
	"strings"

	"github.com/nhle/inbox-triage/internal/model"
)

const (
	summaryBodyLimit  = 500
	categoryBodyLimit = 300
	replyBodyLimit    = 500
)

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func summaryPrompt(batch []model.Message) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Please provide a concise summary of these %d unread emails:\n\n", len(batch))
	for _, m := range batch {
		fmt.Fprintf(&sb, "From: %s\nSubject: %s\nContent: %s...\n\n",
			m.Sender, m.Subject, truncate(m.Body, summaryBodyLimit))
	}

	sb.WriteString("Summarize:\n")
	sb.WriteString("1. Key senders and topics\n")
	sb.WriteString("2. Urgent items that need attention\n")
	sb.WriteString("3. Overall themes or categories\n\n")
	sb.WriteString("Keep the summary brief and actionable.")

	return sb.String()
}

var categoryDescriptions = map[model.Category]string{
	model.CategoryCalendarInvite: "Meeting invitations, calendar events",
	model.CategoryNewsletter:     "Marketing emails, newsletters, promotions",
	model.CategoryNotification:   "System notifications, confirmations, receipts",
	model.CategoryConfirmation:   "Booking confirmations, order confirmations",
	model.CategoryPersonal:       "Personal correspondence requiring human response",
	model.CategoryBusiness:       "Business emails requiring human attention",
	model.CategoryUrgent:         "Emails marked urgent or requiring immediate attention",
}

func categoryPrompt(m model.Message) string {
	var sb strings.Builder

	sb.WriteString("Categorize this email into one of these categories:\n")
	for _, c := range model.Categories {
		fmt.Fprintf(&sb, "- %s: %s\n", c, categoryDescriptions[c])
	}

	fmt.Fprintf(&sb, "\nEmail:\nFrom: %s\nSubject: %s\nContent: %s\n\n",
		m.Sender, m.Subject, truncate(m.Body, categoryBodyLimit))
	sb.WriteString("Respond with just the category name.")

	return sb.String()
}

func preferencesContext(p model.UserPreferences) string {
	cats := make([]string, 0, len(p.AutoCategories))
	for _, c := range p.AutoCategories {
		cats = append(cats, string(c))
	}
	return fmt.Sprintf(
		"User preferences: tone=%s, signature=%q, working hours %02d:00-%02d:00, auto-reply categories [%s]",
		p.ResponseTone, p.Signature, p.WorkingHours.Start, p.WorkingHours.End,
		strings.Join(cats, ", "),
	)
}

// replyPrompt shapes the generation request by category: a short
// acknowledgment for bulk mail, a tentative acceptance for invites and a
// full reply for everything else.
func replyPrompt(m model.Message, category model.Category, p model.UserPreferences) string {
	var sb strings.Builder

	switch category {
	case model.CategoryCalendarInvite:
		sb.WriteString("Generate a polite response to this calendar invitation:\n\n")
		fmt.Fprintf(&sb, "From: %s\nSubject: %s\nContent: %s\n\n",
			m.Sender, m.Subject, truncate(m.Body, replyBodyLimit))
		sb.WriteString(preferencesContext(p))
		sb.WriteString("\n\nThe response should:\n")
		sb.WriteString("- Be professional and brief\n")
		sb.WriteString("- Accept tentatively if it's a reasonable request\n")
		sb.WriteString("- Ask for more details if needed\n")
		sb.WriteString("- Be friendly but not overly casual\n")
	case model.CategoryNewsletter, model.CategoryNotification:
		fmt.Fprintf(&sb, "Generate a brief acknowledgment for this %s:\n\n", category)
		fmt.Fprintf(&sb, "From: %s\nSubject: %s\n\n", m.Sender, m.Subject)
		sb.WriteString("The response should:\n")
		sb.WriteString("- Be very brief (1-2 sentences)\n")
		sb.WriteString("- Acknowledge receipt\n")
		sb.WriteString("- Be polite but minimal\n")
	default:
		sb.WriteString("Generate a professional email reply for:\n\n")
		fmt.Fprintf(&sb, "From: %s\nSubject: %s\nContent: %s\n\n",
			m.Sender, m.Subject, truncate(m.Body, replyBodyLimit))
		sb.WriteString(preferencesContext(p))
		sb.WriteString("\n\nThe reply should:\n")
		sb.WriteString("- Be professional and helpful\n")
		sb.WriteString("- Address the main points\n")
		sb.WriteString("- Be concise but thorough\n")
		sb.WriteString("- Ask clarifying questions if needed\n")
		sb.WriteString("- Match the tone of the original email\n")
	}

	if p.ResponseTone != "" {
		fmt.Fprintf(&sb, "- Use a %s tone\n", p.ResponseTone)
	}
	sb.WriteString("\nReturn only the reply body, without a subject line.")

	return sb.String()
}

// withSignature appends sig unless reply already ends with it.
func withSignature(reply, sig string) string {
	reply = strings.TrimSpace(reply)
	sig = strings.TrimSpace(sig)
	if sig == "" || strings.HasSuffix(reply, sig) {
		return reply
	}
	return reply + "\n\n" + sig
}
