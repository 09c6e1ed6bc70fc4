package testutil

import (
	"fmt"
	"time"

	"github.com/nhle/inbox-triage/internal/model"
)

// Messages builds n unread messages with ids "1".."n", newest first.
func Messages(n int) []model.Message {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]model.Message, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, model.Message{
			ID:        fmt.Sprint(i),
			Subject:   fmt.Sprintf("Subject %d", i),
			Sender:    fmt.Sprintf("Sender %d <sender%d@example.com>", i, i),
			Body:      fmt.Sprintf("Body of message %d", i),
			Date:      base.Add(time.Duration(i) * time.Minute),
			MessageID: fmt.Sprintf("msg-%d@example.com", i),
		})
	}
	return out
}
