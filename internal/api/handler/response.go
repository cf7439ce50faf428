package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/tolkbooking/internal/api/dto"
	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
)

// respond writes an operation outcome. Fail results are still 200: the message is
// meant for the user.
func (h *BookingHandler) respond(c *gin.Context, op string, result *orchestrator.Result, err error) {
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingResponse{
		Status:  string(result.Status),
		Message: result.Message,
		Field:   result.Field,
		Count:   result.Count,
		Job:     result.Job,
	})
}

func (h *BookingHandler) respondError(c *gin.Context, op string, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Booking operation failed",
			slog.String("operation", op),
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		_ = c.Error(err)
	}
	c.JSON(status, dto.ErrorResponse{Error: message})
}

func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	var terr *domain.TransportError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &terr):
		return http.StatusBadGateway, "notification delivery failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: message})
}
