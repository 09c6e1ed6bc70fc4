package intel

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nhle/inbox-triage/internal/model"
)

// Intelligence is the content capability the processor consults for each
// message.
type Intelligence interface {
	// Categorize never fails; errors degrade to model.CategoryUnknown.
	Categorize(ctx context.Context, msg model.Message) model.Category
	Summarize(ctx context.Context, batch []model.Message) (string, error)
	// GenerateReply drafts a reply shaped by category and preferences.
	GenerateReply(ctx context.Context, msg model.Message, category model.Category, prefs model.UserPreferences) (string, error)
	// IsAutoReplyEligible is advisory; the preference allow-list decides.
	IsAutoReplyEligible(ctx context.Context, msg model.Message) bool
	RecordFeedback(ctx context.Context, msg model.Message, action model.FeedbackAction, reply string)
}

// FeedbackSink persists learning records.
type FeedbackSink interface {
	SaveFeedback(ctx context.Context, fb model.Feedback) error
}

// Service implements Intelligence on top of a Completer.
type Service struct {
	completer Completer
	sink      FeedbackSink
	eligible  []model.Category
	logger    *log.Logger
	now       func() time.Time
}

// NewService creates a Service. sink may be nil, in which case feedback is
// only logged.
func NewService(c Completer, sink FeedbackSink, logger *log.Logger) *Service {
	return &Service{
		completer: c,
		sink:      sink,
		eligible:  slices.Clone(model.DefaultAutoReplyCategories),
		logger:    logger.WithPrefix("intel"),
		now:       time.Now,
	}
}

// Categorize asks the model for a label from the fixed set.
func (s *Service) Categorize(ctx context.Context, msg model.Message) model.Category {
	out, err := s.completer.Complete(ctx, categoryPrompt(msg))
	if err != nil {
		s.logger.Warn("categorize failed", "uid", msg.ID, "err", wrapOp("categorize", err))
		return model.CategoryUnknown
	}
	// Models sometimes answer with a sentence; the first line carries the label.
	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return model.ParseCategory(first)
}

// Summarize produces one cross-message digest.
func (s *Service) Summarize(ctx context.Context, batch []model.Message) (string, error) {
	if len(batch) == 0 {
		return "No unread emails found.", nil
	}
	out, err := s.completer.Complete(ctx, summaryPrompt(batch))
	if err != nil {
		return "", wrapOp("summarize", err)
	}
	return strings.TrimSpace(out), nil
}

// GenerateReply drafts a reply and appends the signature when missing.
func (s *Service) GenerateReply(
	ctx context.Context,
	msg model.Message,
	category model.Category,
	prefs model.UserPreferences,
) (string, error) {
	out, err := s.completer.Complete(ctx, replyPrompt(msg, category, prefs))
	if err != nil {
		return "", wrapOp("generate_reply", err)
	}
	reply := strings.TrimSpace(out)
	if reply == "" {
		return "", wrapOp("generate_reply", errors.New("empty reply"))
	}
	return withSignature(reply, prefs.Signature), nil
}

// IsAutoReplyEligible reports whether the model places msg in one of the
// default auto-reply categories.
func (s *Service) IsAutoReplyEligible(ctx context.Context, msg model.Message) bool {
	return slices.Contains(s.eligible, s.Categorize(ctx, msg))
}

// RecordFeedback stores how a suggestion was used. Failures are logged.
func (s *Service) RecordFeedback(
	ctx context.Context,
	msg model.Message,
	action model.FeedbackAction,
	reply string,
) {
	fb := model.Feedback{
		ID:              uuid.NewString(),
		Category:        s.Categorize(ctx, msg),
		Action:          action,
		Reply:           reply,
		Sender:          msg.Sender,
		SubjectKeywords: strings.Fields(msg.Subject),
		CreatedAt:       s.now(),
	}

	s.logger.Debug("feedback", "uid", msg.ID, "category", fb.Category, "action", fb.Action)
	if s.sink == nil {
		return
	}
	if err := s.sink.SaveFeedback(ctx, fb); err != nil {
		s.logger.Warn("saving feedback failed", "uid", msg.ID, "err", err)
	}
}
