package processor_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/logging"
	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/processor"
	"github.com/nhle/inbox-triage/tests/testutil"
)

type staticPrefs struct {
	p model.UserPreferences
}

func (s staticPrefs) Get() model.UserPreferences { return s.p.Clone() }

func autoPrefs(enabled bool, cats ...model.Category) staticPrefs {
	p := model.DefaultPreferences()
	p.AutoReplyEnabled = enabled
	if cats != nil {
		p.AutoCategories = cats
	}
	return staticPrefs{p: p}
}

func newProcessor(
	t *testing.T,
	tr *testutil.FakeTransport,
	in *testutil.FakeIntelligence,
	prefs processor.Preferences,
	opts ...processor.Option,
) *processor.Processor {
	t.Helper()
	return processor.New(tr, in, prefs, logging.Discard(), opts...)
}

func TestQuotaSemantics(t *testing.T) {
	for _, q := range []int{1, 3, 5, 10} {
		for u := 0; u <= 12; u++ {
			t.Run(fmt.Sprintf("quota=%d/unread=%d", q, u), func(t *testing.T) {
				tr := testutil.NewFakeTransport(testutil.Messages(u)...)
				in := testutil.NewFakeIntelligence(model.CategoryBusiness)
				p := newProcessor(t, tr, in, autoPrefs(true), processor.WithQuota(q))

				s, err := p.ProcessInbox(context.Background())
				require.NoError(t, err)

				assert.Equal(t, min(u, q), s.ProcessedCount)
				assert.Len(t, s.ProcessedEmails, s.ProcessedCount)
				assert.LessOrEqual(t, s.ProcessedCount, s.TotalUnread)
				assert.LessOrEqual(t, s.AutoRepliesSent, s.ProcessedCount)
				assert.Equal(t, u > q, s.QuotaLimited)
				assert.Equal(t, max(0, u-q), s.RemainingUnread)
				assert.GreaterOrEqual(t, s.RemainingUnread, 0)
			})
		}
	}
}

func TestProcessInboxScenarios(t *testing.T) {
	tests := []struct {
		unread        int
		wantProcessed int
		wantLimited   bool
		wantRemaining int
	}{
		{unread: 3, wantProcessed: 3, wantLimited: false, wantRemaining: 0},
		{unread: 8, wantProcessed: 5, wantLimited: true, wantRemaining: 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d unread", tt.unread), func(t *testing.T) {
			tr := testutil.NewFakeTransport(testutil.Messages(tt.unread)...)
			in := testutil.NewFakeIntelligence(model.CategoryPersonal)
			p := newProcessor(t, tr, in, autoPrefs(true), processor.WithQuota(5))

			s, err := p.ProcessInbox(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantProcessed, s.ProcessedCount)
			assert.Equal(t, tt.wantLimited, s.QuotaLimited)
			assert.Equal(t, tt.wantRemaining, s.RemainingUnread)
			assert.Equal(t, tt.unread, s.TotalUnread)
			assert.Equal(t, "summary of batch", s.Summary)
		})
	}
}

func TestProcessInboxEmptySkipsGeneration(t *testing.T) {
	tr := testutil.NewFakeTransport()
	in := testutil.NewFakeIntelligence(model.CategoryNewsletter)
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.ProcessedCount)
	assert.False(t, s.QuotaLimited)
	assert.Equal(t, "No unread emails found.", s.Summary)
	assert.NotNil(t, s.ProcessedEmails)
	assert.Zero(t, in.SummaryCalls)
	assert.Zero(t, in.ReplyCalls)
}

func TestAutoReplySendsToBareAddressAndMarksRead(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(2)...)
	in := testutil.NewFakeIntelligence(model.CategoryCalendarInvite)
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.AutoRepliesSent)

	replies := tr.SentReplies()
	require.Len(t, replies, 2)
	assert.Equal(t, "sender2@example.com", replies[0].To)
	assert.Equal(t, "Subject 2", replies[0].OriginalSubject)
	assert.Equal(t, "msg-2@example.com", replies[0].InReplyTo)
	assert.Equal(t, s.ProcessedEmails[0].SuggestedReply, replies[0].Body)
	assert.Equal(t, []string{"2", "1"}, tr.MarkedIDs)
	assert.Zero(t, tr.UnreadCount())

	for _, r := range s.ProcessedEmails {
		assert.True(t, r.AutoReplySent)
		assert.Empty(t, r.Error)
		assert.Equal(t, model.CategoryCalendarInvite, r.Category)
	}
}

func TestAutoReplyDisabledNeverSends(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(4)...)
	in := testutil.NewFakeIntelligence(model.CategoryCalendarInvite)
	in.Eligible = true
	p := newProcessor(t, tr, in, autoPrefs(false))

	for range 2 {
		s, err := p.ProcessInbox(context.Background())
		require.NoError(t, err)
		assert.Zero(t, s.AutoRepliesSent)
		for _, r := range s.ProcessedEmails {
			assert.False(t, r.AutoReplySent)
			assert.NotEmpty(t, r.SuggestedReply)
		}
	}
	assert.Empty(t, tr.SentReplies())
	assert.Empty(t, tr.MarkedIDs)
}

func TestCategoryOutsideAllowListNeverAutoReplied(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(3)...)
	in := testutil.NewFakeIntelligence(model.CategoryUrgent)
	in.Eligible = true
	p := newProcessor(t, tr, in, autoPrefs(true, model.CategoryNewsletter))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.AutoRepliesSent)
	assert.Empty(t, tr.SentReplies())
}

func TestSendFailureIsIsolatedPerMessage(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(3)...)
	tr.FailSendTo["sender2@example.com"] = true
	in := testutil.NewFakeIntelligence(model.CategoryNewsletter)
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	require.Len(t, s.ProcessedEmails, 3)

	byID := map[string]model.ProcessingResult{}
	for _, r := range s.ProcessedEmails {
		byID[r.Message.ID] = r
	}

	assert.False(t, byID["2"].AutoReplySent)
	assert.NotEmpty(t, byID["2"].Error)
	assert.True(t, byID["1"].AutoReplySent)
	assert.Empty(t, byID["1"].Error)
	assert.True(t, byID["3"].AutoReplySent)
	assert.Equal(t, 2, s.AutoRepliesSent)
	assert.NotContains(t, tr.MarkedIDs, "2")
}

func TestMarkReadFailureRecordedButCounted(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(1)...)
	tr.FailMarkRead["1"] = true
	in := testutil.NewFakeIntelligence(model.CategoryNewsletter)
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.AutoRepliesSent)
	assert.True(t, s.ProcessedEmails[0].AutoReplySent)
	assert.NotEmpty(t, s.ProcessedEmails[0].Error)
}

func TestGenerationFailureDegradesToPlaceholder(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(3)...)
	in := testutil.NewFakeIntelligence(model.CategoryNewsletter)
	in.FailReply["3"] = true
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	require.Len(t, s.ProcessedEmails, 3)

	failed := s.ProcessedEmails[0]
	assert.Equal(t, "3", failed.Message.ID)
	assert.NotEmpty(t, failed.Error)
	assert.NotEmpty(t, failed.SuggestedReply)
	assert.False(t, failed.AutoReplySent)
	assert.Equal(t, 2, s.AutoRepliesSent)
}

func TestSummaryFailureKeepsCycle(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(2)...)
	in := testutil.NewFakeIntelligence(model.CategoryPersonal)
	in.FailSummary = true
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.ProcessedCount)
	assert.NotEmpty(t, s.Summary)
}

func TestFetchFailureReturnsError(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(2)...)
	tr.FailFetch = true
	p := newProcessor(t, tr, testutil.NewFakeIntelligence(model.CategoryPersonal), autoPrefs(true))

	_, err := p.ProcessInbox(context.Background())
	assert.ErrorIs(t, err, processor.ErrFetchFailed)
}

func TestCountFailureDegradesToFetchedSize(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(8)...)
	tr.FailCount = true
	p := newProcessor(t, tr, testutil.NewFakeIntelligence(model.CategoryPersonal), autoPrefs(true),
		processor.WithQuota(5))

	s, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, s.ProcessedCount)
	assert.Equal(t, 5, s.TotalUnread)
	assert.False(t, s.QuotaLimited)
	assert.Zero(t, s.RemainingUnread)
}

func TestProcessNextBatch(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(8)...)
	in := testutil.NewFakeIntelligence(model.CategoryPersonal)
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessNextBatch(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, tr.Fetches)
	require.Equal(t, 3, s.ProcessedCount)
	assert.Equal(t, "3", s.ProcessedEmails[0].Message.ID)
	assert.Equal(t, "1", s.ProcessedEmails[2].Message.ID)
	assert.Equal(t, 8, s.TotalUnread)
	assert.False(t, s.QuotaLimited)
	assert.Zero(t, s.RemainingUnread)

	s, err = p.ProcessNextBatch(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.ProcessedCount)
	assert.Equal(t, "6", s.ProcessedEmails[0].Message.ID)
	assert.True(t, s.QuotaLimited)
	assert.Equal(t, 3, s.RemainingUnread)
}

func TestProcessNextBatchPastEnd(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(2)...)
	in := testutil.NewFakeIntelligence(model.CategoryPersonal)
	p := newProcessor(t, tr, in, autoPrefs(true))

	s, err := p.ProcessNextBatch(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.Zero(t, s.ProcessedCount)
	assert.Zero(t, in.SummaryCalls)
	assert.Equal(t, 2, s.TotalUnread)
}

func TestSetProcessingLimitClamps(t *testing.T) {
	p := newProcessor(t, testutil.NewFakeTransport(), testutil.NewFakeIntelligence(model.CategoryPersonal), autoPrefs(true))

	assert.Equal(t, processor.DefaultQuota, p.Quota())
	assert.Equal(t, 1, p.SetProcessingLimit(0))
	assert.Equal(t, 1, p.SetProcessingLimit(-4))
	assert.Equal(t, 50, p.SetProcessingLimit(500))
	assert.Equal(t, 7, p.SetProcessingLimit(7))
	assert.Equal(t, 7, p.Quota())
}

func TestManualReplyNotFound(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(3)...)
	in := testutil.NewFakeIntelligence(model.CategoryPersonal)
	p := newProcessor(t, tr, in, autoPrefs(true))

	assert.False(t, p.SendManualReply(context.Background(), "999", "hello"))
	assert.False(t, p.ApproveSuggestedReply(context.Background(), "999"))
	assert.Empty(t, tr.SentReplies())
	assert.Empty(t, in.FeedbackCalls())

	_, found, err := p.FindByID(context.Background(), "999")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManualReplyUsesWideWindow(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(30)...)
	in := testutil.NewFakeIntelligence(model.CategoryPersonal)
	p := newProcessor(t, tr, in, autoPrefs(true), processor.WithQuota(5))

	require.True(t, p.SendManualReply(context.Background(), "1", "Thanks, see you then"))
	assert.Equal(t, []int{processor.DefaultManualWindow}, tr.Fetches)

	replies := tr.SentReplies()
	require.Len(t, replies, 1)
	assert.Equal(t, "sender1@example.com", replies[0].To)
	assert.Equal(t, "Thanks, see you then", replies[0].Body)
	assert.Equal(t, []string{"1"}, tr.MarkedIDs)

	fb := in.FeedbackCalls()
	require.Len(t, fb, 1)
	assert.Equal(t, model.FeedbackManualReply, fb[0].Action)
	assert.Equal(t, "Thanks, see you then", fb[0].Reply)

	// Already read now, so a second attempt is a no-op.
	assert.False(t, p.SendManualReply(context.Background(), "1", "again"))
}

func TestManualReplyRejectsEmptyText(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(1)...)
	p := newProcessor(t, tr, testutil.NewFakeIntelligence(model.CategoryPersonal), autoPrefs(true))

	assert.False(t, p.SendManualReply(context.Background(), "1", "  "))
	assert.Empty(t, tr.SentReplies())
}

func TestManualReplyTransportFailure(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(1)...)
	tr.FailSendTo["sender1@example.com"] = true
	in := testutil.NewFakeIntelligence(model.CategoryPersonal)
	p := newProcessor(t, tr, in, autoPrefs(true))

	assert.False(t, p.SendManualReply(context.Background(), "1", "hi"))
	assert.Empty(t, tr.MarkedIDs)
	assert.Empty(t, in.FeedbackCalls())

	tr.FailFetch = true
	_, _, err := p.FindByID(context.Background(), "1")
	assert.ErrorIs(t, err, processor.ErrFetchFailed)
	assert.False(t, p.ApproveSuggestedReply(context.Background(), "1"))
}

func TestApproveSuggestedReply(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(2)...)
	in := testutil.NewFakeIntelligence(model.CategoryBusiness)
	p := newProcessor(t, tr, in, autoPrefs(true))

	require.True(t, p.ApproveSuggestedReply(context.Background(), "2"))
	assert.Equal(t, 1, in.ReplyCalls)

	replies := tr.SentReplies()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Body, "Subject 2")

	fb := in.FeedbackCalls()
	require.Len(t, fb, 1)
	assert.Equal(t, model.FeedbackApproved, fb[0].Action)
	assert.Equal(t, "2", fb[0].MessageID)
}

func TestApproveGenerationFailure(t *testing.T) {
	tr := testutil.NewFakeTransport(testutil.Messages(1)...)
	in := testutil.NewFakeIntelligence(model.CategoryBusiness)
	in.FailReply["1"] = true
	p := newProcessor(t, tr, in, autoPrefs(true))

	assert.False(t, p.ApproveSuggestedReply(context.Background(), "1"))
	assert.Empty(t, tr.SentReplies())
}

func TestSendMessage(t *testing.T) {
	tr := testutil.NewFakeTransport()
	p := newProcessor(t, tr, testutil.NewFakeIntelligence(model.CategoryBusiness), autoPrefs(true))

	assert.False(t, p.SendMessage(context.Background(), mail.Outgoing{Subject: "no recipients"}))
	assert.True(t, p.SendMessage(context.Background(), mail.Outgoing{
		To:      []string{"bob@example.com"},
		Cc:      []string{"carol@example.com"},
		Subject: "Hello",
		Body:    "Hi Bob",
	}))
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, "Hello", tr.Messages[0].Subject)
}

func TestStatsPlaceholdersThenHistory(t *testing.T) {
	st := testutil.NewTestStore(t)
	tr := testutil.NewFakeTransport(testutil.Messages(4)...)
	in := testutil.NewFakeIntelligence(model.CategoryNewsletter)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	p := newProcessor(t, tr, in, autoPrefs(true), processor.WithHistory(st),
		processor.WithClock(func() time.Time { return now }))

	report := p.Stats(context.Background())
	assert.Equal(t, processor.NotYetAvailable, report.LastProcessed)
	assert.Equal(t, processor.NotYetAvailable, report.TotalProcessed)
	assert.Equal(t, processor.NotYetAvailable, report.AutoReplyRate)
	assert.Equal(t, "Best regards", report.Preferences.Signature)

	_, err := p.ProcessInbox(context.Background())
	require.NoError(t, err)

	report = p.Stats(context.Background())
	assert.Equal(t, 1, report.Cycles)
	assert.Equal(t, 4, report.TotalProcessed)
	assert.InDelta(t, 1.0, report.AutoReplyRate, 1e-9)
	last, ok := report.LastProcessed.(time.Time)
	require.True(t, ok)
	assert.True(t, now.Equal(last))
}

// overlapTransport records how many FetchUnread calls run at once.
type overlapTransport struct {
	*testutil.FakeTransport
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (o *overlapTransport) FetchUnread(ctx context.Context, limit int) ([]model.Message, bool) {
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return o.FakeTransport.FetchUnread(ctx, limit)
}

func TestCyclesAreSerialized(t *testing.T) {
	tr := &overlapTransport{FakeTransport: testutil.NewFakeTransport(testutil.Messages(3)...)}
	in := testutil.NewFakeIntelligence(model.CategoryPersonal)
	p := processor.New(tr, in, autoPrefs(true), logging.Discard())

	var wg sync.WaitGroup
	for i := range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = p.ProcessInbox(context.Background())
			} else {
				p.SendManualReply(context.Background(), "missing", "x")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), tr.peak.Load())
}
