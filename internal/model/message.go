package model

import "time"

// Category is the classification label assigned to a message.
type Category string

// Fixed category set used for auto-reply decisions. CategoryUnknown and
// CategoryError are fallbacks and never come from a successful
// classification.
const (
	CategoryCalendarInvite Category = "calendar_invite"
	CategoryNewsletter     Category = "newsletter"
	CategoryNotification   Category = "notification"
	CategoryConfirmation   Category = "confirmation"
	CategoryPersonal       Category = "personal"
	CategoryBusiness       Category = "business"
	CategoryUrgent         Category = "urgent"
	CategoryUnknown        Category = "unknown"
	CategoryError          Category = "error"
)

// Categories lists the labels a classifier may return.
var Categories = []Category{
	CategoryCalendarInvite,
	CategoryNewsletter,
	CategoryNotification,
	CategoryConfirmation,
	CategoryPersonal,
	CategoryBusiness,
	CategoryUrgent,
}

// ParseCategory normalizes a raw label. Anything outside the fixed set
// maps to CategoryUnknown.
func ParseCategory(raw string) Category {
	c := Category(normalizeLabel(raw))
	for _, known := range Categories {
		if c == known {
			return c
		}
	}
	return CategoryUnknown
}

// Message is a single unread email as returned by one fetch call.
type Message struct {
	// ID is the transport-assigned identifier (an IMAP UID rendered as a
	// string). It is only meaningful to the session family that produced
	// it and must be re-resolved with a fresh fetch before acting on it.
	ID string `json:"id"`

	Subject string `json:"subject"`

	// Sender is the raw From header, display name included.
	Sender string `json:"sender"`

	Body string    `json:"body"`
	Date time.Time `json:"date"`

	// MessageID is the RFC 5322 Message-ID header, without angle brackets.
	MessageID string `json:"message_id"`
}

// ProcessingResult is the outcome of one message within a cycle.
type ProcessingResult struct {
	Message        Message  `json:"email"`
	SuggestedReply string   `json:"suggested_reply"`
	AutoReplySent  bool     `json:"auto_reply_sent"`
	Category       Category `json:"category"`
	Error          string   `json:"error,omitempty"`
}

// CycleSummary aggregates one processing cycle.
type CycleSummary struct {
	Summary         string             `json:"summary"`
	ProcessedEmails []ProcessingResult `json:"processed_emails"`
	AutoRepliesSent int                `json:"auto_replies_sent"`
	TotalUnread     int                `json:"total_unread"`
	ProcessedCount  int                `json:"processed_count"`
	QuotaLimited    bool               `json:"quota_limited"`
	RemainingUnread int                `json:"remaining_unread"`
}

// FeedbackAction identifies how the user acted on a suggestion.
type FeedbackAction string

const (
	FeedbackManualReply FeedbackAction = "manual_reply"
	FeedbackApproved    FeedbackAction = "approved"
)

// Feedback is a learning record about how a suggestion was used.
type Feedback struct {
	ID              string         `json:"id" db:"id"`
	Category        Category       `json:"email_category" db:"category"`
	Action          FeedbackAction `json:"user_action" db:"action"`
	Reply           string         `json:"user_reply,omitempty" db:"reply"`
	Sender          string         `json:"original_sender" db:"sender"`
	SubjectKeywords []string       `json:"subject_keywords" db:"-"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// CycleRun is the persisted counters of one completed cycle. It holds no
// message content.
type CycleRun struct {
	ID              string    `json:"id" db:"id"`
	TotalUnread     int       `json:"total_unread" db:"total_unread"`
	ProcessedCount  int       `json:"processed_count" db:"processed_count"`
	AutoRepliesSent int       `json:"auto_replies_sent" db:"auto_replies_sent"`
	Failures        int       `json:"failures" db:"failures"`
	QuotaLimited    bool      `json:"quota_limited" db:"quota_limited"`
	StartedAt       time.Time `json:"started_at" db:"started_at"`
	FinishedAt      time.Time `json:"finished_at" db:"finished_at"`
}
