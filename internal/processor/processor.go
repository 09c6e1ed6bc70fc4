// Package processor runs bounded inbox triage cycles and the manual
// reply paths on top of a mail transport and a content intelligence
// backend.
package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/intel"
	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/store"
)

// Quota bounds.
const (
	MinQuota            = 1
	MaxQuota            = 50
	DefaultQuota        = 10
	DefaultManualWindow = 50
)

const (
	noUnreadSummary    = "No unread emails found."
	summaryPlaceholder = "Summary unavailable."
	replyPlaceholder   = "Unable to generate a reply for this email."
)

var (
	// ErrFetchFailed is returned when the transport could not list unread
	// messages for a cycle.
	ErrFetchFailed = errors.New("fetching unread messages failed")

	// ErrNotFound marks a manual action whose target was not in the
	// re-fetched unread window.
	ErrNotFound = errors.New("message not found in unread window")
)

// Preferences provides the current preference snapshot.
type Preferences interface {
	Get() model.UserPreferences
}

// History records finished cycles and reports aggregates.
type History interface {
	RecordCycle(ctx context.Context, run model.CycleRun) error
	Stats(ctx context.Context) (store.Stats, error)
}

// Processor is the inbox triage orchestrator. All cycles and manual
// actions are serialized by one mutex.
type Processor struct {
	cycleMu sync.Mutex

	transport mail.Transport
	intel     intel.Intelligence
	prefs     Preferences
	history   History
	logger    *log.Logger
	now       func() time.Time

	quotaMu      sync.RWMutex
	quota        int
	manualWindow int
}

// Option configures a Processor.
type Option func(*Processor)

// WithHistory records every cycle to h.
func WithHistory(h History) Option {
	return func(p *Processor) { p.history = h }
}

// WithQuota sets the initial batch quota. It is clamped like
// SetProcessingLimit.
func WithQuota(n int) Option {
	return func(p *Processor) { p.quota = ClampQuota(n) }
}

// WithManualWindow sets how many unread messages manual actions scan.
func WithManualWindow(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.manualWindow = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New creates a Processor.
func New(
	t mail.Transport,
	in intel.Intelligence,
	prefs Preferences,
	logger *log.Logger,
	opts ...Option,
) *Processor {
	p := &Processor{
		transport:    t,
		intel:        in,
		prefs:        prefs,
		logger:       logger.WithPrefix("processor"),
		now:          time.Now,
		quota:        DefaultQuota,
		manualWindow: DefaultManualWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.manualWindow < p.quota {
		p.manualWindow = p.quota
	}
	return p
}

// ClampQuota forces n into [MinQuota, MaxQuota].
func ClampQuota(n int) int {
	return max(MinQuota, min(MaxQuota, n))
}

// SetProcessingLimit updates the batch quota for later cycles and returns
// the value actually applied.
func (p *Processor) SetProcessingLimit(n int) int {
	n = ClampQuota(n)

	p.quotaMu.Lock()
	p.quota = n
	p.quotaMu.Unlock()

	p.logger.Info("processing limit updated", "quota", n)
	return n
}

// Quota returns the current batch quota.
func (p *Processor) Quota() int {
	p.quotaMu.RLock()
	defer p.quotaMu.RUnlock()
	return p.quota
}

// Preferences returns the current preference snapshot.
func (p *Processor) Preferences() model.UserPreferences {
	return p.prefs.Get()
}
