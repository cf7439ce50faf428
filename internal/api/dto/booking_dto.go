package dto

import (
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// ActorRequest identifies the user performing the operation
type ActorRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// CreateBookingRequest is the body of POST /bookings. due_date is MM/DD/YYYY and due_time
// HH:MM; both are ignored for immediate bookings.
type CreateBookingRequest struct {
	UserID               int64    `json:"user_id" binding:"required,gt=0"`
	FromLanguageID       int64    `json:"from_language_id"`
	Immediate            bool     `json:"immediate"`
	DueDate              string   `json:"due_date"`
	DueTime              string   `json:"due_time"`
	Duration             int      `json:"duration"`
	CustomerPhoneType    bool     `json:"customer_phone_type"`
	CustomerPhysicalType bool     `json:"customer_physical_type"`
	JobFor               []string `json:"job_for"`
	Town                 string   `json:"town"`
	UserEmail            string   `json:"user_email" binding:"omitempty,email"`
	Reference            string   `json:"reference"`
	ByAdmin              bool     `json:"by_admin"`
}

// AcceptRequest is the body of POST /bookings/accept
type AcceptRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
	JobID  int64 `json:"job_id" binding:"required,gt=0"`
}

// UpdateBookingRequest is the body of PUT /bookings/:id. Absent fields are left unchanged.
type UpdateBookingRequest struct {
	UserID          int64      `json:"user_id" binding:"required,gt=0"`
	Status          string     `json:"status"`
	AdminComment    string     `json:"admin_comments"`
	SessionTime     string     `json:"session_time"`
	Due             *time.Time `json:"due"`
	FromLanguageID  int64      `json:"from_language_id"`
	TranslatorID    int64      `json:"translator_id"`
	TranslatorEmail string     `json:"translator_email"`
	Reference       *string    `json:"reference"`
}

// BookingResponse mirrors an operation result
type BookingResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Field   string      `json:"field_name,omitempty"`
	Count   int         `json:"count,omitempty"`
	Job     *domain.Job `json:"job,omitempty"`
}

// CommandResponse is returned when an operation is queued for the worker service
type CommandResponse struct {
	CommandID string `json:"command_id"`
	Command   string `json:"command"`
	JobID     int64  `json:"job_id"`
}

// AvailableJobsResponse lists the jobs a translator can accept
type AvailableJobsResponse struct {
	Jobs  []*domain.Job `json:"jobs"`
	Total int           `json:"total"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}
