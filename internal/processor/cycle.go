package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
)

// ProcessInbox runs one cycle over at most Quota() unread messages.
// It returns ErrFetchFailed only when the mailbox could not be listed,
// rather than an empty "No unread emails found." summary, so callers can
// tell an unreachable mailbox from an empty one and the scheduler backs
// off. Every later failure degrades inside the summary.
func (p *Processor) ProcessInbox(ctx context.Context) (model.CycleSummary, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	started := p.now()
	quota := p.Quota()

	msgs, ok := p.transport.FetchUnread(ctx, quota)
	if !ok {
		return model.CycleSummary{}, ErrFetchFailed
	}
	if len(msgs) > quota {
		msgs = msgs[:quota]
	}

	if len(msgs) == 0 {
		p.logger.Info("no unread messages")
		summary := emptySummary()
		p.record(ctx, summary, 0, started)
		return summary, nil
	}

	total := p.countUnread(ctx, len(msgs))
	summary, failures := p.runBatch(ctx, msgs)
	summary.TotalUnread = total
	summary.QuotaLimited = total > summary.ProcessedCount
	summary.RemainingUnread = max(0, total-summary.ProcessedCount)

	p.logger.Info("cycle finished",
		"processed", summary.ProcessedCount,
		"auto_replies", summary.AutoRepliesSent,
		"total_unread", total,
		"quota_limited", summary.QuotaLimited,
		"failures", failures,
	)
	p.record(ctx, summary, failures, started)

	return summary, nil
}

// ProcessNextBatch emulates an offset by fetching skip+quota messages and
// processing the slice [skip, skip+quota). The unread set can change
// between calls, so offsets are not stable: messages read or received in
// between shift the window.
func (p *Processor) ProcessNextBatch(ctx context.Context, skip, quota int) (model.CycleSummary, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	started := p.now()
	skip = max(0, skip)
	quota = ClampQuota(quota)

	msgs, ok := p.transport.FetchUnread(ctx, skip+quota)
	if !ok {
		return model.CycleSummary{}, ErrFetchFailed
	}
	if skip >= len(msgs) {
		summary := emptySummary()
		summary.TotalUnread = p.countUnread(ctx, len(msgs))
		summary.RemainingUnread = max(0, summary.TotalUnread-skip)
		return summary, nil
	}
	msgs = msgs[skip:min(len(msgs), skip+quota)]

	total := p.countUnread(ctx, skip+len(msgs))
	summary, failures := p.runBatch(ctx, msgs)
	summary.TotalUnread = total
	summary.QuotaLimited = total > skip+summary.ProcessedCount
	summary.RemainingUnread = max(0, total-skip-summary.ProcessedCount)

	p.logger.Info("batch finished",
		"skip", skip,
		"processed", summary.ProcessedCount,
		"auto_replies", summary.AutoRepliesSent,
		"total_unread", total,
	)
	p.record(ctx, summary, failures, started)

	return summary, nil
}

func emptySummary() model.CycleSummary {
	return model.CycleSummary{
		Summary:         noUnreadSummary,
		ProcessedEmails: []model.ProcessingResult{},
	}
}

// countUnread asks for the unbounded unread count. A failed count
// degrades to floor so processed never exceeds total.
func (p *Processor) countUnread(ctx context.Context, floor int) int {
	n, ok := p.transport.CountUnread(ctx)
	if !ok {
		p.logger.Warn("unread count unavailable, using fetched size", "fetched", floor)
		n = 0
	}
	return max(n, floor)
}

// runBatch summarizes msgs and processes each one in isolation.
func (p *Processor) runBatch(ctx context.Context, msgs []model.Message) (model.CycleSummary, int) {
	text, err := p.intel.Summarize(ctx, msgs)
	if err != nil {
		p.logger.Warn("summary failed", "err", err)
		text = summaryPlaceholder
	}

	prefs := p.prefs.Get()
	summary := model.CycleSummary{
		Summary:         text,
		ProcessedEmails: make([]model.ProcessingResult, 0, len(msgs)),
	}

	failures := 0
	for _, msg := range msgs {
		res := p.processOne(ctx, msg, prefs)
		if res.AutoReplySent {
			summary.AutoRepliesSent++
		}
		if res.Error != "" {
			failures++
		}
		summary.ProcessedEmails = append(summary.ProcessedEmails, res)
	}
	summary.ProcessedCount = len(summary.ProcessedEmails)

	return summary, failures
}

// processOne classifies, drafts and, when policy allows, auto-replies to
// one message. Failures are recorded on the result.
func (p *Processor) processOne(
	ctx context.Context,
	msg model.Message,
	prefs model.UserPreferences,
) (res model.ProcessingResult) {
	res = model.ProcessingResult{Message: msg}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("message processing panicked", "uid", msg.ID, "panic", r)
			res.AutoReplySent = false
			res.Error = fmt.Sprintf("processing panicked: %v", r)
			if res.SuggestedReply == "" {
				res.SuggestedReply = replyPlaceholder
			}
		}
	}()

	res.Category = p.intel.Categorize(ctx, msg)

	reply, err := p.intel.GenerateReply(ctx, msg, res.Category, prefs)
	if err != nil {
		p.logger.Warn("reply generation failed", "uid", msg.ID, "category", res.Category, "err", err)
		res.SuggestedReply = replyPlaceholder
		res.Error = err.Error()
		return res
	}
	res.SuggestedReply = reply

	if !prefs.AutoReplyEnabled || !prefs.AllowsAutoReply(res.Category) {
		return res
	}

	if !p.transport.SendReply(ctx, replyTo(msg, reply)) {
		res.Error = "auto-reply could not be sent"
		return res
	}
	res.AutoReplySent = true
	p.logger.Info("auto-reply sent", "uid", msg.ID, "category", res.Category)

	if !p.transport.MarkRead(ctx, msg.ID) {
		res.Error = "auto-reply sent but message could not be marked read"
	}

	return res
}

func replyTo(msg model.Message, body string) mail.Reply {
	return mail.Reply{
		To:              mail.ExtractAddress(msg.Sender),
		OriginalSubject: msg.Subject,
		Body:            body,
		InReplyTo:       msg.MessageID,
	}
}

// record stores the cycle counters. Errors are logged only.
func (p *Processor) record(ctx context.Context, s model.CycleSummary, failures int, started time.Time) {
	if p.history == nil {
		return
	}
	run := model.CycleRun{
		ID:              uuid.New().String(),
		TotalUnread:     s.TotalUnread,
		ProcessedCount:  s.ProcessedCount,
		AutoRepliesSent: s.AutoRepliesSent,
		Failures:        failures,
		QuotaLimited:    s.QuotaLimited,
		StartedAt:       started,
		FinishedAt:      p.now(),
	}
	if err := p.history.RecordCycle(ctx, run); err != nil {
		p.logger.Warn("recording cycle failed", "err", err)
	}
}
