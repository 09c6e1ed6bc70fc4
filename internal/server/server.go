// Package server exposes the inbox processor over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/processor"
	"github.com/nhle/inbox-triage/internal/scheduler"
)

// Processor is the subset of the inbox processor the handlers call.
type Processor interface {
	ProcessInbox(ctx context.Context) (model.CycleSummary, error)
	ProcessNextBatch(ctx context.Context, skip, quota int) (model.CycleSummary, error)
	SendManualReply(ctx context.Context, id, text string) bool
	ApproveSuggestedReply(ctx context.Context, id string) bool
	SendMessage(ctx context.Context, msg mail.Outgoing) bool
	SetProcessingLimit(n int) int
	Quota() int
	Stats(ctx context.Context) processor.StatsReport
}

// Preferences reads and merges the preference record.
type Preferences interface {
	Get() model.UserPreferences
	Update(patch model.PreferencesPatch) model.UserPreferences
}

// Scheduler controls the autonomous loop.
type Scheduler interface {
	Start(ctx context.Context) bool
	Stop()
	Status() scheduler.Status
}

// Config holds the server settings.
type Config struct {
	// RateLimit is requests per minute per client IP.
	RateLimit int
}

// Server wires HTTP routes to the processor.
type Server struct {
	app       *fiber.App
	proc      Processor
	prefs     Preferences
	sched     Scheduler
	logger    *log.Logger
	sanitizer *bluemonday.Policy
	// baseCtx outlives individual requests; the scheduler runs under it.
	baseCtx context.Context
}

// New builds the fiber app. ctx bounds background work started through
// the server.
func New(
	ctx context.Context,
	cfg Config,
	proc Processor,
	prefs Preferences,
	sched Scheduler,
	logger *log.Logger,
) *Server {
	s := &Server{
		proc:      proc,
		prefs:     prefs,
		sched:     sched,
		logger:    logger.WithPrefix("server"),
		sanitizer: bluemonday.StrictPolicy(),
		baseCtx:   ctx,
	}

	app := fiber.New(fiber.Config{
		AppName:               "inboxagent",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(RequestLogger(s.logger))
	app.Use(RateLimiter(ctx, cfg.RateLimit, time.Minute))

	s.routes(app)
	s.app = app

	return s
}

func (s *Server) routes(app *fiber.App) {
	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Post("/process", s.handleProcess)
	api.Post("/process/next", s.handleProcessNext)
	api.Post("/send_reply", s.handleSendReply)
	api.Post("/approve_reply", s.handleApproveReply)
	api.Post("/send", s.handleSend)
	api.Get("/preferences", s.handleGetPreferences)
	api.Post("/preferences", s.handleUpdatePreferences)
	api.Post("/limit", s.handleLimit)
	api.Get("/stats", s.handleStats)
	api.Post("/auto_process", s.handleStartAuto)
	api.Get("/auto_process", s.handleAutoStatus)
	api.Delete("/auto_process", s.handleStopAuto)

	// Un-prefixed paths kept for existing dashboards.
	app.Post("/process", s.handleProcess)
	app.Post("/send_reply", s.handleSendReply)
	app.Post("/approve_reply", s.handleApproveReply)
	app.Get("/preferences", s.handleGetPreferences)
	app.Post("/preferences", s.handleUpdatePreferences)
	app.Get("/stats", s.handleStats)
	app.Get("/auto_process", s.handleStartAuto)
	app.Post("/auto_process", s.handleStartAuto)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and stops the scheduler.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.sched.Stop()
	return s.app.ShutdownWithTimeout(timeout)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
