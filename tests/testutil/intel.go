package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/nhle/inbox-triage/internal/intel"
	"github.com/nhle/inbox-triage/internal/model"
)

// FeedbackCall records one RecordFeedback invocation.
type FeedbackCall struct {
	MessageID string
	Action    model.FeedbackAction
	Reply     string
}

// FakeIntelligence is a deterministic intel.Intelligence.
type FakeIntelligence struct {
	mu sync.Mutex

	// Categories maps message id to label. Missing ids get Default.
	Categories map[string]model.Category
	Default    model.Category
	// Eligible is returned by IsAutoReplyEligible for every message.
	Eligible bool

	FailSummary bool
	// FailReply makes GenerateReply fail for these ids.
	FailReply map[string]bool

	SummaryCalls int
	ReplyCalls   int
	Feedback     []FeedbackCall
}

// NewFakeIntelligence returns a fake that labels everything def.
func NewFakeIntelligence(def model.Category) *FakeIntelligence {
	return &FakeIntelligence{
		Categories: map[string]model.Category{},
		Default:    def,
		FailReply:  map[string]bool{},
	}
}

func (f *FakeIntelligence) Categorize(_ context.Context, msg model.Message) model.Category {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.Categories[msg.ID]; ok {
		return c
	}
	return f.Default
}

func (f *FakeIntelligence) Summarize(_ context.Context, batch []model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SummaryCalls++
	if f.FailSummary {
		return "", &intel.IntelligenceError{Op: "summarize", Err: errors.New("fake failure")}
	}
	return "summary of batch", nil
}

func (f *FakeIntelligence) GenerateReply(
	_ context.Context,
	msg model.Message,
	category model.Category,
	prefs model.UserPreferences,
) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ReplyCalls++
	if f.FailReply[msg.ID] {
		return "", &intel.IntelligenceError{Op: "generate_reply", Err: errors.New("fake failure")}
	}
	return "Re " + string(category) + ": " + msg.Subject + "\n\n" + prefs.Signature, nil
}

func (f *FakeIntelligence) IsAutoReplyEligible(context.Context, model.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Eligible
}

func (f *FakeIntelligence) RecordFeedback(
	_ context.Context,
	msg model.Message,
	action model.FeedbackAction,
	reply string,
) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Feedback = append(f.Feedback, FeedbackCall{MessageID: msg.ID, Action: action, Reply: reply})
}

// FeedbackCalls returns a copy of the recorded feedback.
func (f *FakeIntelligence) FeedbackCalls() []FeedbackCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FeedbackCall(nil), f.Feedback...)
}

var _ intel.Intelligence = (*FakeIntelligence)(nil)
