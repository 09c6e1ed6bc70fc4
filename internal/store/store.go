package store

import (
	"context"
	"time"

	"github.com/nhle/inbox-triage/internal/model"
)

// Stats aggregates the recorded cycle history.
type Stats struct {
	Cycles           int        `json:"cycles"`
	TotalProcessed   int        `json:"total_processed"`
	TotalAutoReplies int        `json:"total_auto_replies"`
	TotalFailures    int        `json:"total_failures"`
	LastProcessed    *time.Time `json:"last_processed,omitempty"`
	FeedbackCount    int        `json:"feedback_count"`
}

// AutoReplyRate is the share of processed messages that were auto-replied.
func (s Stats) AutoReplyRate() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.TotalAutoReplies) / float64(s.TotalProcessed)
}

// Store persists feedback records and cycle history. It never holds
// message bodies.
type Store interface {
	SaveFeedback(ctx context.Context, fb model.Feedback) error
	ListFeedback(ctx context.Context, limit int) ([]model.Feedback, error)

	RecordCycle(ctx context.Context, run model.CycleRun) error
	RecentCycles(ctx context.Context, limit int) ([]model.CycleRun, error)
	Stats(ctx context.Context) (Stats, error)

	Close() error
}
