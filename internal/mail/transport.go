package mail

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/model"
)

// Transport is the boundary the inbox processor depends on. Failures are
// logged by the implementation and reported as false or an empty result;
// they never propagate as errors.
type Transport interface {
	// FetchUnread returns at most limit unread messages in transport order.
	// ok is false when the mailbox could not be reached.
	FetchUnread(ctx context.Context, limit int) (msgs []model.Message, ok bool)
	// CountUnread counts unread messages without fetching bodies.
	CountUnread(ctx context.Context) (count int, ok bool)
	// MarkRead is idempotent.
	MarkRead(ctx context.Context, id string) bool
	// SendReply prefixes the subject with a reply marker when missing.
	SendReply(ctx context.Context, r Reply) bool
	SendMessage(ctx context.Context, msg Outgoing) bool
}

// Mailbox implements Transport on top of an IMAP reader and SMTP sender.
type Mailbox struct {
	reader *IMAPClient
	sender *Sender
	logger *log.Logger
}

// NewMailbox wires a reader and a sender together.
func NewMailbox(reader *IMAPClient, sender *Sender, logger *log.Logger) *Mailbox {
	return &Mailbox{
		reader: reader,
		sender: sender,
		logger: logger.WithPrefix("transport"),
	}
}

// Close releases pooled connections.
func (m *Mailbox) Close() error {
	return m.reader.Close()
}

func (m *Mailbox) FetchUnread(ctx context.Context, limit int) ([]model.Message, bool) {
	msgs, err := m.reader.FetchUnread(ctx, limit)
	if err != nil {
		m.logger.Warn("fetch unread failed", "limit", limit, "auth", IsAuthError(err), "err", err)
		return nil, false
	}
	m.logger.Debug("fetched unread", "limit", limit, "count", len(msgs))
	return msgs, true
}

func (m *Mailbox) CountUnread(ctx context.Context) (int, bool) {
	n, err := m.reader.CountUnread(ctx)
	if err != nil {
		m.logger.Warn("count unread failed", "err", err)
		return 0, false
	}
	return n, true
}

func (m *Mailbox) MarkRead(ctx context.Context, id string) bool {
	if err := m.reader.MarkRead(ctx, id); err != nil {
		m.logger.Warn("mark read failed", "uid", id, "err", err)
		return false
	}
	return true
}

func (m *Mailbox) SendReply(ctx context.Context, r Reply) bool {
	return m.SendMessage(ctx, Outgoing{
		To:        []string{r.To},
		Subject:   ReplySubject(r.OriginalSubject),
		Body:      r.Body,
		InReplyTo: r.InReplyTo,
	})
}

func (m *Mailbox) SendMessage(ctx context.Context, msg Outgoing) bool {
	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.Warn("send failed", "to", msg.To, "subject", msg.Subject, "err", err)
		return false
	}
	m.logger.Info("message sent", "to", msg.To, "subject", msg.Subject)
	return true
}
