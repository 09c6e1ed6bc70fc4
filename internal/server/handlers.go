package server

import (
	"errors"
	"html"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nhle/inbox-triage/internal/mail"
	"github.com/nhle/inbox-triage/internal/model"
)

type replyRequest struct {
	EmailID   string `json:"email_id"`
	ReplyText string `json:"reply_text"`
}

type nextBatchRequest struct {
	Skip  int `json:"skip"`
	Quota int `json:"quota"`
}

type sendRequest struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc"`
	Bcc     []string `json:"bcc"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

type limitRequest struct {
	Limit int `json:"limit"`
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// plainText strips markup and decodes entities so text is safe to send
// as a text/plain body.
func (s *Server) plainText(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func sentMessage(ok bool) string {
	if ok {
		return "Reply sent successfully"
	}
	return "Failed to send reply"
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"scheduler": s.sched.Status().State,
	})
}

func (s *Server) handleProcess(c *fiber.Ctx) error {
	summary, err := s.proc.ProcessInbox(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

func (s *Server) handleProcessNext(c *fiber.Ctx) error {
	var req nextBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Skip < 0 {
		return badRequest(c, "skip must not be negative")
	}
	if req.Quota == 0 {
		req.Quota = s.proc.Quota()
	}

	summary, err := s.proc.ProcessNextBatch(c.UserContext(), req.Skip, req.Quota)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

func (s *Server) handleSendReply(c *fiber.Ctx) error {
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	text := s.plainText(req.ReplyText)
	if req.EmailID == "" || text == "" {
		return badRequest(c, "Missing email_id or reply_text")
	}

	ok := s.proc.SendManualReply(c.UserContext(), req.EmailID, text)
	return c.JSON(fiber.Map{"success": ok, "message": sentMessage(ok)})
}

func (s *Server) handleApproveReply(c *fiber.Ctx) error {
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.EmailID == "" {
		return badRequest(c, "Missing email_id")
	}

	ok := s.proc.ApproveSuggestedReply(c.UserContext(), req.EmailID)
	return c.JSON(fiber.Map{"success": ok, "message": sentMessage(ok)})
}

func (s *Server) handleSend(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.To) == 0 || strings.TrimSpace(req.Subject) == "" {
		return badRequest(c, "Missing to or subject")
	}

	ok := s.proc.SendMessage(c.UserContext(), mail.Outgoing{
		To:      req.To,
		Cc:      req.Cc,
		Bcc:     req.Bcc,
		Subject: s.plainText(req.Subject),
		Body:    s.plainText(req.Body),
	})
	msg := "Message sent successfully"
	if !ok {
		msg = "Failed to send message"
	}
	return c.JSON(fiber.Map{"success": ok, "message": msg})
}

func (s *Server) handleGetPreferences(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "preferences": s.prefs.Get()})
}

func (s *Server) handleUpdatePreferences(c *fiber.Ctx) error {
	var patch model.PreferencesPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Invalid preferences")
	}
	if err := validatePatch(patch); err != nil {
		return badRequest(c, err.Error())
	}
	if patch.Signature != nil {
		sig := s.plainText(*patch.Signature)
		patch.Signature = &sig
	}

	updated := s.prefs.Update(patch)
	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Preferences updated successfully",
		"preferences": updated,
	})
}

func validatePatch(p model.PreferencesPatch) error {
	if wh := p.WorkingHours; wh != nil {
		if wh.Start < 0 || wh.Start > 23 || wh.End < 0 || wh.End > 24 {
			return errors.New("working_hours must be within 0-24")
		}
	}
	for _, c := range p.AutoCategories {
		if model.ParseCategory(string(c)) == model.CategoryUnknown {
			return errors.New("unknown category in auto_categories: " + string(c))
		}
	}
	return nil
}

func (s *Server) handleLimit(c *fiber.Ctx) error {
	var req limitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	applied := s.proc.SetProcessingLimit(req.Limit)
	return c.JSON(fiber.Map{"success": true, "limit": applied})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "stats": s.proc.Stats(c.UserContext())})
}

func (s *Server) handleStartAuto(c *fiber.Ctx) error {
	started := s.sched.Start(s.baseCtx)
	msg := "Autonomous processing started"
	if !started {
		msg = "Autonomous processing already running"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"started": started,
		"message": msg,
		"status":  s.sched.Status(),
	})
}

func (s *Server) handleAutoStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "status": s.sched.Status()})
}

func (s *Server) handleStopAuto(c *fiber.Ctx) error {
	s.sched.Stop()
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Autonomous processing stopped",
		"status":  s.sched.Status(),
	})
}
