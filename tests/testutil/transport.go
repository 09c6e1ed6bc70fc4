package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
)

// FakeTransport is an in-memory mail.Transport. Unread holds messages in
// transport order; MarkRead removes them.
type FakeTransport struct {
	mu sync.Mutex

	Unread []model.Message

	FailFetch bool
	FailCount bool
	// FailSendTo makes SendReply fail for these recipient addresses.
	FailSendTo map[string]bool
	// FailMarkRead makes MarkRead fail for these ids.
	FailMarkRead map[string]bool

	Replies   []mail.Reply
	Messages  []mail.Outgoing
	MarkedIDs []string
	Fetches   []int
}

// NewFakeTransport returns a transport holding msgs as unread.
func NewFakeTransport(msgs ...model.Message) *FakeTransport {
	return &FakeTransport{
		Unread:       msgs,
		FailSendTo:   map[string]bool{},
		FailMarkRead: map[string]bool{},
	}
}

func (f *FakeTransport) FetchUnread(_ context.Context, limit int) ([]model.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Fetches = append(f.Fetches, limit)
	if f.FailFetch {
		return nil, false
	}
	n := min(limit, len(f.Unread))
	if n < 0 {
		n = 0
	}
	out := make([]model.Message, n)
	copy(out, f.Unread[:n])
	return out, true
}

func (f *FakeTransport) CountUnread(context.Context) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCount {
		return 0, false
	}
	return len(f.Unread), true
}

func (f *FakeTransport) MarkRead(_ context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailMarkRead[id] {
		return false
	}
	f.MarkedIDs = append(f.MarkedIDs, id)
	for i, m := range f.Unread {
		if m.ID == id {
			f.Unread = append(f.Unread[:i:i], f.Unread[i+1:]...)
			break
		}
	}
	return true
}

func (f *FakeTransport) SendReply(_ context.Context, r mail.Reply) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailSendTo[strings.ToLower(r.To)] {
		return false
	}
	f.Replies = append(f.Replies, r)
	return true
}

func (f *FakeTransport) SendMessage(_ context.Context, msg mail.Outgoing) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, to := range msg.To {
		if f.FailSendTo[strings.ToLower(to)] {
			return false
		}
	}
	f.Messages = append(f.Messages, msg)
	return true
}

// SentReplies returns a copy of the recorded replies.
func (f *FakeTransport) SentReplies() []mail.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Reply(nil), f.Replies...)
}

// UnreadCount returns how many messages are still unread.
func (f *FakeTransport) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Unread)
}

var _ mail.Transport = (*FakeTransport)(nil)
