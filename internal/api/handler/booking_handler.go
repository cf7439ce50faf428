package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/tolkbooking/internal/api/dto"
	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/lifecycle"
	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
	workerdomain "github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

type actorOperation func(ctx context.Context, jobID int64, actor *domain.User) (*orchestrator.Result, error)

// CreateJob handles POST /api/v1/bookings
func (h *BookingHandler) CreateJob(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("operation", "create"), slog.Any("error", err))
		badRequest(c, "Invalid request body")
		return
	}

	actor, ok := h.actor(c, req.UserID)
	if !ok {
		return
	}

	result, err := h.bookings.CreateJob(c.Request.Context(), actor, orchestrator.CreateRequest{
		FromLanguageID: req.FromLanguageID,
		Immediate:      req.Immediate,
		DueDate:        req.DueDate,
		DueTime:        req.DueTime,
		Duration:       req.Duration,
		PhoneType:      req.CustomerPhoneType,
		PhysicalType:   req.CustomerPhysicalType,
		JobFor:         req.JobFor,
		Town:           req.Town,
		UserEmail:      req.UserEmail,
		Reference:      req.Reference,
		ByAdmin:        req.ByAdmin,
	})
	h.respond(c, "create", result, err)
}

// AcceptJob handles POST /api/v1/bookings/accept
func (h *BookingHandler) AcceptJob(c *gin.Context) {
	var req dto.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.Any("error", err))
		badRequest(c, "Invalid request body")
		return
	}

	actor, ok := h.actor(c, req.UserID)
	if !ok {
		return
	}

	result, err := h.bookings.AcceptJob(c.Request.Context(), req.JobID, actor)
	h.respond(c, "accept", result, err)
}

// AcceptJobByID handles POST /api/v1/bookings/:job_id/accept
func (h *BookingHandler) AcceptJobByID(c *gin.Context) {
	h.withActor(c, "accept_by_id", h.bookings.AcceptJobByID)
}

// CancelJob handles POST /api/v1/bookings/:job_id/cancel
func (h *BookingHandler) CancelJob(c *gin.Context) {
	h.withActor(c, "cancel", h.bookings.CancelJob)
}

// EndJob handles POST /api/v1/bookings/:job_id/end
func (h *BookingHandler) EndJob(c *gin.Context) {
	h.withActor(c, "end", h.bookings.EndJob)
}

// CustomerNotCall handles POST /api/v1/bookings/:job_id/customer-not-call
func (h *BookingHandler) CustomerNotCall(c *gin.Context) {
	h.withActor(c, "customer_not_call", h.bookings.CustomerNotCall)
}

// Reopen handles POST /api/v1/bookings/:job_id/reopen
func (h *BookingHandler) Reopen(c *gin.Context) {
	h.withActor(c, "reopen", h.bookings.Reopen)
}

// UpdateJob handles PUT /api/v1/bookings/:job_id
func (h *BookingHandler) UpdateJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.Any("error", err))
		badRequest(c, "Invalid request body")
		return
	}

	status := domain.JobStatus(req.Status)
	if status != "" && !status.Valid() {
		badRequest(c, "unknown status "+req.Status)
		return
	}

	actor, ok := h.actor(c, req.UserID)
	if !ok {
		return
	}

	result, err := h.bookings.UpdateJob(c.Request.Context(), jobID, actor, lifecycle.UpdateRequest{
		Status:          status,
		AdminComment:    req.AdminComment,
		SessionTime:     req.SessionTime,
		Due:             req.Due,
		FromLanguageID:  req.FromLanguageID,
		TranslatorID:    req.TranslatorID,
		TranslatorEmail: req.TranslatorEmail,
		Reference:       req.Reference,
	})
	h.respond(c, "update", result, err)
}

// ResendPush handles POST /api/v1/bookings/:job_id/resend-push.
// With ?async=true the broadcast is queued for the worker service.
func (h *BookingHandler) ResendPush(c *gin.Context) {
	h.resend(c, workerdomain.CommandResendPush, h.bookings.ResendPush)
}

// ResendSMS handles POST /api/v1/bookings/:job_id/resend-sms
func (h *BookingHandler) ResendSMS(c *gin.Context) {
	h.resend(c, workerdomain.CommandResendSMS, h.bookings.ResendSMS)
}

// AvailableJobs handles GET /api/v1/bookings/available?user_id=
func (h *BookingHandler) AvailableJobs(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		badRequest(c, "user_id must be a positive integer")
		return
	}

	translator, ok := h.actor(c, userID)
	if !ok {
		return
	}
	if translator.Type != domain.UserTranslator {
		badRequest(c, "user is not a translator")
		return
	}

	jobs, err := h.jobs.JobsForTranslator(c.Request.Context(), translator, h.clock())
	if err != nil {
		h.respondError(c, "available", err)
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}

	c.JSON(http.StatusOK, dto.AvailableJobsResponse{Jobs: jobs, Total: len(jobs)})
}

func (h *BookingHandler) withActor(c *gin.Context, op string, fn actorOperation) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req dto.ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("operation", op), slog.Any("error", err))
		badRequest(c, "Invalid request body")
		return
	}

	actor, ok := h.actor(c, req.UserID)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), jobID, actor)
	h.respond(c, op, result, err)
}

func (h *BookingHandler) resend(c *gin.Context, cmd workerdomain.CommandType, fn func(context.Context, int64) (*orchestrator.Result, error)) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	if c.Query("async") != "true" || h.commands == nil {
		result, err := fn(c.Request.Context(), jobID)
		h.respond(c, string(cmd), result, err)
		return
	}

	queued, err := h.commands.Enqueue(c.Request.Context(), cmd, jobID)
	if err != nil {
		h.respondError(c, string(cmd), err)
		return
	}

	c.JSON(http.StatusAccepted, dto.CommandResponse{
		CommandID: queued.CommandID,
		Command:   string(queued.Command),
		JobID:     queued.JobID,
	})
}

// actor loads the acting user. It writes the error response and returns false
// when the user is unknown or disabled.
func (h *BookingHandler) actor(c *gin.Context, userID int64) (*domain.User, bool) {
	user, err := h.users.FindUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "find_user", err)
		return nil, false
	}
	if !user.Enabled {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "user is disabled"})
		return nil, false
	}
	return user, true
}

func jobIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "job_id must be a positive integer")
		return 0, false
	}
	return id, true
}
