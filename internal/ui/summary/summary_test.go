package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/inbox-triage/internal/model"
)

func TestRenderIncludesCountersAndRows(t *testing.T) {
	s := model.CycleSummary{
		Summary:         "Two newsletters and a meeting.",
		ProcessedCount:  2,
		TotalUnread:     5,
		AutoRepliesSent: 1,
		QuotaLimited:    true,
		RemainingUnread: 3,
		ProcessedEmails: []model.ProcessingResult{
			{Message: model.Message{Subject: "Weekly digest"}, Category: model.CategoryNewsletter, AutoReplySent: true},
			{Message: model.Message{Subject: "Planning"}, Category: model.CategoryBusiness, Error: "send failed"},
		},
	}

	out := Render(s, 80)
	assert.Contains(t, out, "processed 2 of 5 unread, 1 auto-replies")
	assert.Contains(t, out, "3 left for later cycles")
	assert.Contains(t, out, "Weekly digest")
	assert.Contains(t, out, "auto-replied")
	assert.Contains(t, out, "error: send failed")
	assert.Contains(t, out, "Two newsletters and a meeting.")
}

func TestCountersWithoutQuotaPressure(t *testing.T) {
	out := Counters(model.CycleSummary{ProcessedCount: 1, TotalUnread: 1})
	assert.NotContains(t, out, "left for later")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	long := strings.Repeat("a", 20)
	assert.Equal(t, strings.Repeat("a", 9)+"…", clip(long, 10))
}
