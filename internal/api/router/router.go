package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/tolkbooking/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", healthHandler(deps))

	bookingHandler := handler.NewBookingHandler(deps)

	v1 := r.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", bookingHandler.CreateJob)
			bookings.POST("/accept", bookingHandler.AcceptJob)
			bookings.GET("/available", bookingHandler.AvailableJobs)

			bookings.PUT("/:job_id", bookingHandler.UpdateJob)
			bookings.POST("/:job_id/accept", bookingHandler.AcceptJobByID)
			bookings.POST("/:job_id/cancel", bookingHandler.CancelJob)
			bookings.POST("/:job_id/end", bookingHandler.EndJob)
			bookings.POST("/:job_id/customer-not-call", bookingHandler.CustomerNotCall)
			bookings.POST("/:job_id/reopen", bookingHandler.Reopen)
			bookings.POST("/:job_id/resend-push", bookingHandler.ResendPush)
			bookings.POST("/:job_id/resend-sms", bookingHandler.ResendSMS)
		}
	}

	return r
}

// healthHandler runs every registered check with a short timeout
func healthHandler(deps *handler.Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps.HealthChecks))
		for name, check := range deps.HealthChecks {
			if err := check(ctx); err != nil {
				deps.Logger.Warn("Health check failed", slog.String("check", name), slog.Any("error", err))
				checks[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "healthy"
		}

		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		c.JSON(status, gin.H{
			"status":  overall,
			"service": "booking-api-service",
			"checks":  checks,
		})
	}
}
