// Package scheduler runs the inbox processor on a fixed interval in the
// background while auto-reply is enabled.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/inbox-triage/internal/model"
)

// State is the scheduler lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// MarshalText renders the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Default timings.
const (
	DefaultInterval = 300 * time.Second
	DefaultBackoff  = 60 * time.Second
)

// Cycler runs one processing cycle.
type Cycler interface {
	ProcessInbox(ctx context.Context) (model.CycleSummary, error)
}

// Preferences provides the current preference snapshot.
type Preferences interface {
	Get() model.UserPreferences
}

// Outcome reports one tick.
type Outcome struct {
	At      time.Time           `json:"at"`
	Skipped bool                `json:"skipped"`
	Summary *model.CycleSummary `json:"summary,omitempty"`
	Err     error               `json:"-"`
	// Next is the delay before the following tick.
	Next time.Duration `json:"next"`
}

// Error returns the tick error text, or "".
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Scheduler is a cancellable background loop around a Cycler.
type Scheduler struct {
	cycler   Cycler
	prefs    Preferences
	logger   *log.Logger
	interval time.Duration
	backoff  time.Duration

	outcomes chan Outcome

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	last    *Outcome
	started time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the normal delay between ticks.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithBackoff sets the shortened delay after a failed tick.
func WithBackoff(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// New creates an idle Scheduler.
func New(c Cycler, prefs Preferences, logger *log.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cycler:   c,
		prefs:    prefs,
		logger:   logger.WithPrefix("scheduler"),
		interval: DefaultInterval,
		backoff:  DefaultBackoff,
		outcomes: make(chan Outcome, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig translates scheduler settings into options.
func FromConfig(cfg model.SchedulerConfig) []Option {
	return []Option{
		WithInterval(time.Duration(cfg.IntervalSec) * time.Second),
		WithBackoff(time.Duration(cfg.BackoffSec) * time.Second),
	}
}

// Start launches the loop. It returns false, doing nothing, when the loop
// is already running. The first tick happens immediately.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = Running
	s.started = time.Now()

	go s.loop(loopCtx, s.done)

	s.logger.Info("started", "interval", s.interval, "backoff", s.backoff)
	return true
}

// Stop cancels the loop and waits for an in-flight tick to return. It is
// a no-op when idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status is a snapshot for status endpoints.
type Status struct {
	State     State         `json:"state"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Interval  time.Duration `json:"interval"`
	Backoff   time.Duration `json:"backoff"`
	Last      *Outcome      `json:"last,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Status returns the state and the most recent outcome.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, Interval: s.interval, Backoff: s.backoff}
	if s.state == Running {
		started := s.started
		st.StartedAt = &started
	}
	if s.last != nil {
		last := *s.last
		st.Last = &last
		st.LastError = last.Error()
	}
	return st
}

// Outcomes delivers one value per tick. Values are dropped when nobody
// reads and the buffer is full.
func (s *Scheduler) Outcomes() <-chan Outcome {
	return s.outcomes
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.state = Idle
		if s.cancel != nil {
			s.cancel()
		}
		s.cancel = nil
		s.mu.Unlock()
		close(done)
		s.logger.Info("stopped")
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		out := s.tick(ctx)
		if ctx.Err() != nil {
			return
		}
		timer.Reset(out.Next)
	}
}

// tick runs at most one cycle and publishes its outcome.
func (s *Scheduler) tick(ctx context.Context) Outcome {
	out := Outcome{At: time.Now(), Next: s.interval}

	if !s.prefs.Get().AutoReplyEnabled {
		out.Skipped = true
		s.logger.Debug("auto-reply disabled, skipping tick")
		s.publish(out)
		return out
	}

	summary, err := s.runCycle(ctx)
	if err != nil {
		out.Err = err
		out.Next = s.backoff
		s.logger.Error("cycle failed, backing off", "err", err, "retry_in", s.backoff)
	} else {
		out.Summary = &summary
		s.logger.Info("cycle complete",
			"processed", summary.ProcessedCount,
			"auto_replies", summary.AutoRepliesSent,
			"remaining", summary.RemainingUnread,
		)
	}

	s.publish(out)
	return out
}

// runCycle converts a panic in the cycle into an error.
func (s *Scheduler) runCycle(ctx context.Context) (summary model.CycleSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.cycler.ProcessInbox(ctx)
}

// publish records the outcome and sends it without blocking.
func (s *Scheduler) publish(out Outcome) {
	s.mu.Lock()
	s.last = &out
	s.mu.Unlock()

	select {
	case s.outcomes <- out:
	default:
	}
}
