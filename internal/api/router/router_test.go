package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/tolkbooking/internal/api/dto"
	"github.com/cuongbtq/tolkbooking/internal/api/handler"
	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
	"github.com/cuongbtq/tolkbooking/internal/booking/lifecycle"
	"github.com/cuongbtq/tolkbooking/internal/booking/orchestrator"
	"github.com/cuongbtq/tolkbooking/internal/booking/store"
	workerdomain "github.com/cuongbtq/tolkbooking/internal/worker/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type call struct {
	op      string
	jobID   int64
	actorID int64
	update  lifecycle.UpdateRequest
	create  orchestrator.CreateRequest
}

// fakeBookings records calls and returns a canned outcome
type fakeBookings struct {
	calls  []call
	result *orchestrator.Result
	err    error
}

func (f *fakeBookings) record(op string, jobID int64, actor *domain.User) (*orchestrator.Result, error) {
	c := call{op: op, jobID: jobID}
	if actor != nil {
		c.actorID = actor.ID
	}
	f.calls = append(f.calls, c)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &orchestrator.Result{Status: orchestrator.StatusSuccess, Job: &domain.Job{ID: jobID}}, nil
}

func (f *fakeBookings) CreateJob(ctx context.Context, u *domain.User, req orchestrator.CreateRequest) (*orchestrator.Result, error) {
	res, err := f.record("create", 0, u)
	f.calls[len(f.calls)-1].create = req
	return res, err
}

func (f *fakeBookings) AcceptJob(ctx context.Context, jobID int64, u *domain.User) (*orchestrator.Result, error) {
	return f.record("accept", jobID, u)
}

func (f *fakeBookings) AcceptJobByID(ctx context.Context, jobID int64, u *domain.User) (*orchestrator.Result, error) {
	return f.record("accept_by_id", jobID, u)
}

func (f *fakeBookings) CancelJob(ctx context.Context, jobID int64, u *domain.User) (*orchestrator.Result, error) {
	return f.record("cancel", jobID, u)
}

func (f *fakeBookings) EndJob(ctx context.Context, jobID int64, u *domain.User) (*orchestrator.Result, error) {
	return f.record("end", jobID, u)
}

func (f *fakeBookings) CustomerNotCall(ctx context.Context, jobID int64, u *domain.User) (*orchestrator.Result, error) {
	return f.record("customer_not_call", jobID, u)
}

func (f *fakeBookings) UpdateJob(ctx context.Context, jobID int64, u *domain.User, req lifecycle.UpdateRequest) (*orchestrator.Result, error) {
	res, err := f.record("update", jobID, u)
	f.calls[len(f.calls)-1].update = req
	return res, err
}

func (f *fakeBookings) Reopen(ctx context.Context, jobID int64, u *domain.User) (*orchestrator.Result, error) {
	return f.record("reopen", jobID, u)
}

func (f *fakeBookings) ResendPush(ctx context.Context, jobID int64) (*orchestrator.Result, error) {
	return f.record("resend_push", jobID, nil)
}

func (f *fakeBookings) ResendSMS(ctx context.Context, jobID int64) (*orchestrator.Result, error) {
	return f.record("resend_sms", jobID, nil)
}

type fakeJobs struct {
	jobs []*domain.Job
}

func (f *fakeJobs) JobsForTranslator(ctx context.Context, translator *domain.User, now time.Time) ([]*domain.Job, error) {
	return f.jobs, nil
}

type fakeCommands struct {
	queued []workerdomain.Command
}

func (f *fakeCommands) Enqueue(ctx context.Context, t workerdomain.CommandType, jobID int64) (*workerdomain.Command, error) {
	cmd := workerdomain.NewCommand(t, jobID)
	f.queued = append(f.queued, *cmd)
	return cmd, nil
}

type testEnv struct {
	router   *gin.Engine
	bookings *fakeBookings
	commands *fakeCommands
}

func newTestEnv(t *testing.T, checks map[string]handler.HealthCheck) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	mem.PutUser(&domain.User{ID: 1, Type: domain.UserCustomer, Enabled: true, Email: "kund@example.com"})
	mem.PutUser(&domain.User{ID: 2, Type: domain.UserTranslator, Enabled: true, Email: "tolk@example.com"})
	mem.PutUser(&domain.User{ID: 3, Type: domain.UserTranslator, Enabled: false})

	env := &testEnv{bookings: &fakeBookings{}, commands: &fakeCommands{}}
	env.router = SetupRouter(&handler.Dependencies{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Bookings:     env.bookings,
		Users:        mem,
		Jobs:         &fakeJobs{jobs: []*domain.Job{{ID: 11}, {ID: 12}}},
		Commands:     env.commands,
		HealthChecks: checks,
	})
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRoutes_ActorOperations(t *testing.T) {
	tests := []struct {
		path string
		op   string
	}{
		{path: "/api/v1/bookings/5/accept", op: "accept_by_id"},
		{path: "/api/v1/bookings/5/cancel", op: "cancel"},
		{path: "/api/v1/bookings/5/end", op: "end"},
		{path: "/api/v1/bookings/5/customer-not-call", op: "customer_not_call"},
		{path: "/api/v1/bookings/5/reopen", op: "reopen"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(http.MethodPost, tt.path, dto.ActorRequest{UserID: 2})

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			require.Len(t, env.bookings.calls, 1)
			assert.Equal(t, call{op: tt.op, jobID: 5, actorID: 2}, env.bookings.calls[0])

			var resp dto.BookingResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "success", resp.Status)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestRoutes_Create(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/v1/bookings", dto.CreateBookingRequest{
		UserID:               1,
		FromLanguageID:       5,
		DueDate:              "03/06/2026",
		DueTime:              "14:30",
		Duration:             60,
		CustomerPhysicalType: true,
		JobFor:               []string{"female", "certified"},
		UserEmail:            "bokning@foretag.se",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, env.bookings.calls, 1)
	got := env.bookings.calls[0]
	assert.Equal(t, "create", got.op)
	assert.Equal(t, int64(1), got.actorID)
	assert.Equal(t, orchestrator.CreateRequest{
		FromLanguageID: 5,
		DueDate:        "03/06/2026",
		DueTime:        "14:30",
		Duration:       60,
		PhysicalType:   true,
		JobFor:         []string{"female", "certified"},
		UserEmail:      "bokning@foretag.se",
	}, got.create)
}

func TestRoutes_CreateRejectsInvalidContactEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/v1/bookings", dto.CreateBookingRequest{UserID: 1, UserEmail: "not-an-address"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.bookings.calls)
}

func TestRoutes_Accept(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/v1/bookings/accept", dto.AcceptRequest{UserID: 2, JobID: 9})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, call{op: "accept", jobID: 9, actorID: 2}, env.bookings.calls[0])
}

func TestRoutes_FailResultIsOK(t *testing.T) {
	env := newTestEnv(t, nil)
	env.bookings.result = &orchestrator.Result{Status: orchestrator.StatusFail, Message: "Bokningen kan inte längre avbokas."}

	w := env.do(http.MethodPost, "/api/v1/bookings/5/cancel", dto.ActorRequest{UserID: 1})

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "fail", resp.Status)
	assert.Equal(t, "Bokningen kan inte längre avbokas.", resp.Message)
}

func TestRoutes_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     any
		opErr    error
		wantCode int
	}{
		{name: "bad job id", path: "/api/v1/bookings/abc/cancel", body: dto.ActorRequest{UserID: 1}, wantCode: http.StatusBadRequest},
		{name: "missing user", path: "/api/v1/bookings/5/cancel", body: map[string]any{}, wantCode: http.StatusBadRequest},
		{name: "unknown user", path: "/api/v1/bookings/5/cancel", body: dto.ActorRequest{UserID: 99}, wantCode: http.StatusNotFound},
		{name: "disabled user", path: "/api/v1/bookings/5/accept", body: dto.ActorRequest{UserID: 3}, wantCode: http.StatusForbidden},
		{name: "unknown job", path: "/api/v1/bookings/5/end", body: dto.ActorRequest{UserID: 2},
			opErr: fmt.Errorf("job 5: %w", domain.ErrNotFound), wantCode: http.StatusNotFound},
		{name: "transport failure", path: "/api/v1/bookings/5/resend-push",
			opErr: domain.NewTransportError("push", errors.New("503")), wantCode: http.StatusBadGateway},
		{name: "unexpected", path: "/api/v1/bookings/5/reopen", body: dto.ActorRequest{UserID: 2},
			opErr: errors.New("connection reset"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.bookings.err = tt.opErr

			w := env.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestRoutes_Update(t *testing.T) {
	env := newTestEnv(t, nil)
	due := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ref := "PO-1"

	w := env.do(http.MethodPut, "/api/v1/bookings/5", dto.UpdateBookingRequest{
		UserID:       1,
		Status:       "completed",
		AdminComment: "ok",
		SessionTime:  "1:30",
		Due:          &due,
		Reference:    &ref,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req := env.bookings.calls[0].update
	assert.Equal(t, domain.StatusCompleted, req.Status)
	assert.Equal(t, "1:30", req.SessionTime)
	assert.True(t, due.Equal(*req.Due))
	assert.Equal(t, "PO-1", *req.Reference)

	w = env.do(http.MethodPut, "/api/v1/bookings/5", dto.UpdateBookingRequest{UserID: 1, Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, env.bookings.calls, 1)
}

func TestRoutes_Resend(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/bookings/5/resend-sms", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resend_sms", env.bookings.calls[0].op)

	w = env.do(http.MethodPost, "/api/v1/bookings/5/resend-push?async=true", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, env.commands.queued, 1)
	assert.Equal(t, workerdomain.CommandResendPush, env.commands.queued[0].Command)
	assert.Len(t, env.bookings.calls, 1)

	var resp dto.CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, env.commands.queued[0].CommandID, resp.CommandID)
	assert.Equal(t, int64(5), resp.JobID)
}

func TestRoutes_AvailableJobs(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/api/v1/bookings/available?user_id=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.AvailableJobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	w = env.do(http.MethodGet, "/api/v1/bookings/available?user_id=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/bookings/available", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("dial tcp: refused") }

	env := newTestEnv(t, map[string]handler.HealthCheck{"postgres": ok})
	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env = newTestEnv(t, map[string]handler.HealthCheck{"postgres": ok, "rabbitmq": down})
	w = env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["rabbitmq"])
	assert.Equal(t, "healthy", body.Checks["postgres"])
}

func TestRequestIDMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)
	id := "3f1d2a8e-7c4b-4e9a-9d2f-1b6c8e0a5f47"

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/bookings/accept", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}
