package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
	"github.com/nhle/inbox-triage/tests/testutil"
)

func TestFeedbackRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	require.NoError(t, s.SaveFeedback(ctx, model.Feedback{
		Category:        model.CategoryBusiness,
		Action:          model.FeedbackManualReply,
		Reply:           "Will do",
		Sender:          "Alice <alice@example.com>",
		SubjectKeywords: []string{"Quarterly", "report"},
		CreatedAt:       older,
	}))
	require.NoError(t, s.SaveFeedback(ctx, model.Feedback{
		ID:        "fb-2",
		Category:  model.CategoryCalendarInvite,
		Action:    model.FeedbackApproved,
		CreatedAt: newer,
	}))

	got, err := s.ListFeedback(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "fb-2", got[0].ID)
	assert.Equal(t, model.FeedbackApproved, got[0].Action)
	assert.Empty(t, got[0].SubjectKeywords)

	assert.NotEmpty(t, got[1].ID)
	assert.Equal(t, model.CategoryBusiness, got[1].Category)
	assert.Equal(t, []string{"Quarterly", "report"}, got[1].SubjectKeywords)
	assert.True(t, older.Equal(got[1].CreatedAt))

	limited, err := s.ListFeedback(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStatsEmpty(t *testing.T) {
	s := testutil.NewTestStore(t)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Cycles)
	assert.Nil(t, st.LastProcessed)
	assert.Zero(t, st.AutoReplyRate())
}

func TestRecordCycleAndStats(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	runs := []model.CycleRun{
		{TotalUnread: 8, ProcessedCount: 5, AutoRepliesSent: 2, QuotaLimited: true,
			StartedAt: start, FinishedAt: start.Add(time.Minute)},
		{TotalUnread: 3, ProcessedCount: 3, AutoRepliesSent: 1, Failures: 1,
			StartedAt: start.Add(5 * time.Minute), FinishedAt: start.Add(6 * time.Minute)},
	}
	for _, r := range runs {
		require.NoError(t, s.RecordCycle(ctx, r))
	}
	require.NoError(t, s.SaveFeedback(ctx, model.Feedback{Category: model.CategoryPersonal, Action: model.FeedbackApproved}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Cycles)
	assert.Equal(t, 8, st.TotalProcessed)
	assert.Equal(t, 3, st.TotalAutoReplies)
	assert.Equal(t, 1, st.TotalFailures)
	assert.Equal(t, 1, st.FeedbackCount)
	require.NotNil(t, st.LastProcessed)
	assert.True(t, start.Add(6*time.Minute).Equal(*st.LastProcessed))
	assert.InDelta(t, 3.0/8.0, st.AutoReplyRate(), 1e-9)

	recent, err := s.RecentCycles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 3, recent[0].TotalUnread)
	assert.False(t, recent[0].QuotaLimited)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordCycle(context.Background(), model.CycleRun{
		ProcessedCount: 1, StartedAt: time.Now(), FinishedAt: time.Now(),
	}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Cycles)
}
