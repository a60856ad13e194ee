package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/internal/identity"
	"github.com/wolfman30/doctor-booking-platform/internal/scheduler"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

const recentLimit = 5

// AppointmentLister lists appointment views across patients.
type AppointmentLister interface {
	ListAll(ctx context.Context, filter appointments.ListFilter) ([]*appointments.View, error)
}

// JobRunner runs one scheduler task synchronously.
type JobRunner interface {
	RunOnce(ctx context.Context, job scheduler.Job) (scheduler.Result, error)
}

// Handler serves /api/admin endpoints other than doctor management.
type Handler struct {
	counts       CountSource
	appointments AppointmentLister
	jobs         JobRunner
	logger       *logging.Logger
}

// NewHandler wires the dashboard. jobs may be nil when the scheduler is disabled.
func NewHandler(counts CountSource, appts AppointmentLister, jobs JobRunner, logger *logging.Logger) *Handler {
	return &Handler{counts: counts, appointments: appts, jobs: jobs, logger: logging.OrDefault(logger)}
}

// DashboardData is the GET /api/admin/dashboard payload.
type DashboardData struct {
	*Counts
	LatestAppointments []*appointments.View `json:"latestAppointments"`
}

// Dashboard handles GET /api/admin/dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.counts.Counts(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	latest, err := h.appointments.ListAll(r.Context(), appointments.ListFilter{Limit: recentLimit})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if latest == nil {
		latest = []*appointments.View{}
	}
	respond.OK(w, http.StatusOK, map[string]any{
		"dashData": DashboardData{Counts: counts, LatestAppointments: latest},
	})
}

// RunJob handles POST /api/admin/jobs/{job}/run.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respond.Fail(w, http.StatusServiceUnavailable, "scheduler is disabled")
		return
	}
	job, err := scheduler.ParseJob(chi.URLParam(r, "job"))
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Wrap(apperr.KindValidation, "unknown job", err))
		return
	}
	caller, _ := identity.FromContext(r.Context())
	h.logger.Info("manual job run", "job", job, "user_id", caller.UserID)

	res, err := h.jobs.RunOnce(r.Context(), job)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.OK(w, http.StatusOK, map[string]any{"result": res})
}
