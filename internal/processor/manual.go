package processor

import (
	"context"
	"strings"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// FindByID re-fetches the manual window and scans it for id. A missing
// message is reported as found=false with a nil error; only a transport
// failure returns an error.
func (p *Processor) FindByID(ctx context.Context, id string) (model.Message, bool, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()
	return p.findByID(ctx, id)
}

func (p *Processor) findByID(ctx context.Context, id string) (model.Message, bool, error) {
	msgs, ok := p.transport.FetchUnread(ctx, p.manualWindow)
	if !ok {
		return model.Message{}, false, ErrFetchFailed
	}
	for _, m := range msgs {
		if m.ID == id {
			return m, true, nil
		}
	}
	return model.Message{}, false, nil
}

// lookup wraps findByID for the bool-returning manual paths.
func (p *Processor) lookup(ctx context.Context, id, action string) (model.Message, bool) {
	msg, found, err := p.findByID(ctx, id)
	switch {
	case err != nil:
		p.logger.Warn("manual action lookup failed", "action", action, "uid", id, "err", err)
		return model.Message{}, false
	case !found:
		p.logger.Debug("manual action target not in unread window", "action", action, "uid", id, "err", ErrNotFound)
		return model.Message{}, false
	}
	return msg, true
}

// SendManualReply sends text as a reply to the unread message id. It
// returns false when the message is no longer in the unread window or the
// send fails.
func (p *Processor) SendManualReply(ctx context.Context, id, text string) bool {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	if strings.TrimSpace(text) == "" {
		return false
	}

	msg, ok := p.lookup(ctx, id, "manual_reply")
	if !ok {
		return false
	}

	return p.deliver(ctx, msg, text, model.FeedbackManualReply)
}

// ApproveSuggestedReply regenerates the suggested reply for id and sends
// it.
func (p *Processor) ApproveSuggestedReply(ctx context.Context, id string) bool {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	msg, ok := p.lookup(ctx, id, "approve")
	if !ok {
		return false
	}

	category := p.intel.Categorize(ctx, msg)
	reply, err := p.intel.GenerateReply(ctx, msg, category, p.prefs.Get())
	if err != nil {
		p.logger.Warn("regenerating reply failed", "uid", id, "err", err)
		return false
	}

	return p.deliver(ctx, msg, reply, model.FeedbackApproved)
}

func (p *Processor) deliver(ctx context.Context, msg model.Message, body string, action model.FeedbackAction) bool {
	if !p.transport.SendReply(ctx, replyTo(msg, body)) {
		return false
	}
	if !p.transport.MarkRead(ctx, msg.ID) {
		p.logger.Warn("reply sent but mark read failed", "uid", msg.ID)
	}
	p.intel.RecordFeedback(ctx, msg, action, body)
	p.logger.Info("reply sent", "uid", msg.ID, "action", action)
	return true
}

// SendMessage sends a new message outside any thread.
func (p *Processor) SendMessage(ctx context.Context, msg mail.Outgoing) bool {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	if len(msg.To) == 0 {
		return false
	}
	return p.transport.SendMessage(ctx, msg)
}

// NotYetAvailable is the stats placeholder used before any cycle ran.
const NotYetAvailable = "No cycles recorded yet"

// StatsReport is the payload of the stats endpoint.
type StatsReport struct {
	Preferences    model.UserPreferences `json:"preferences"`
	Quota          int                   `json:"processing_limit"`
	LastProcessed  any                   `json:"last_processed"`
	TotalProcessed any                   `json:"total_processed"`
	AutoReplyRate  any                   `json:"auto_reply_rate"`
	Cycles         int                   `json:"cycles"`
	FeedbackCount  int                   `json:"feedback_count"`
}

// Stats reports preferences plus history aggregates. Fields fall back to
// a placeholder string when no cycle has been recorded.
func (p *Processor) Stats(ctx context.Context) StatsReport {
	report := StatsReport{
		Preferences:    p.prefs.Get(),
		Quota:          p.Quota(),
		LastProcessed:  NotYetAvailable,
		TotalProcessed: NotYetAvailable,
		AutoReplyRate:  NotYetAvailable,
	}
	if p.history == nil {
		return report
	}

	st, err := p.history.Stats(ctx)
	if err != nil {
		p.logger.Warn("reading stats failed", "err", err)
		return report
	}
	report.FeedbackCount = st.FeedbackCount
	report.Cycles = st.Cycles
	if st.Cycles == 0 {
		return report
	}

	report.TotalProcessed = st.TotalProcessed
	report.AutoReplyRate = st.AutoReplyRate()
	if st.LastProcessed != nil {
		report.LastProcessed = *st.LastProcessed
	}
	return report
}

var _ History = (store.Store)(nil)
