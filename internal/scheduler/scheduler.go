// Package scheduler runs the periodic appointment maintenance tasks: reminders,
// release of abandoned unpaid bookings and completion of past appointments.
//
// Tasks run on a cron in the clinic time zone. Failures are logged and
// counted, never propagated; the next tick retries. Every write is conditionally
// guarded in the store, so overlapping runs (two replicas, or a manual run during a
// tick) do not double-apply.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/events"
	"github.com/wolfman30/doctor-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

var schedulerTracer = otel.Tracer("doctor-booking.internal.scheduler")

// Store is the slice of the appointment store the tasks need.
type Store interface {
	ListReminderDue(ctx context.Context, from, to time.Time) ([]*appointments.Appointment, error)
	ClaimReminder(ctx context.Context, id string) (bool, error)
	CancelUnpaidBefore(ctx context.Context, cutoff time.Time, reason string) ([]*appointments.Appointment, error)
	CompletePastBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Viewer joins rows with doctor and patient details.
type Viewer interface {
	Views(ctx context.Context, list []*appointments.Appointment) []*appointments.View
}

// ReminderSender delivers one reminder.
type ReminderSender interface {
	SendReminder(ctx context.Context, view *appointments.View) error
}

// Config holds the schedules and windows.
type Config struct {
	Location         *time.Location
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	UnpaidTimeout    time.Duration
	CleanupAt        time.Duration
	CompletionAt     time.Duration
}

// DefaultConfig is hourly reminders for the next 24h, cleanup at 00:00 of bookings
// older than 24h and completion at 01:00.
func DefaultConfig() Config {
	return Config{
		Location:         time.UTC,
		ReminderInterval: time.Hour,
		ReminderWindow:   24 * time.Hour,
		UnpaidTimeout:    24 * time.Hour,
		CleanupAt:        0,
		CompletionAt:     time.Hour,
	}
}

// Result summarizes one task run.
type Result struct {
	Job      Job `json:"job"`
	Affected int `json:"affected"`
	Failed   int `json:"failed"`
}

// Scheduler owns the three task loops.
type Scheduler struct {
	store     Store
	viewer    Viewer
	reminders ReminderSender
	publisher appointments.Publisher
	metrics   *metrics.BookingMetrics
	cfg       Config
	now       func() time.Time
	logger    *logging.Logger
}

// New builds a scheduler. viewer and publisher may be nil.
func New(store Store, viewer Viewer, reminders ReminderSender, publisher appointments.Publisher, cfg Config, logger *logging.Logger) *Scheduler {
	if store == nil {
		panic("scheduler: store required")
	}
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = def.ReminderInterval
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = def.ReminderWindow
	}
	if cfg.UnpaidTimeout <= 0 {
		cfg.UnpaidTimeout = def.UnpaidTimeout
	}
	return &Scheduler{
		store:     store,
		viewer:    viewer,
		reminders: reminders,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		logger:    logging.OrDefault(logger),
	}
}

// SetMetrics wires run counters.
func (s *Scheduler) SetMetrics(m *metrics.BookingMetrics) { s.metrics = m }

// Start registers the three tasks on a cron in the clinic time zone and starts it. A
// task still running when its next tick arrives skips that tick. The returned channel
// closes once ctx is cancelled and every running task has returned.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	clog := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	for _, job := range Jobs {
		job := job
		spec := Spec(job, s.cfg)
		if _, err := c.AddFunc(spec, func() { s.runScheduled(ctx, job) }); err != nil {
			s.logger.Error("scheduler job not registered", "error", err, "job", job, "spec", spec)
			continue
		}
		s.logger.Info("scheduler job registered", "job", job, "spec", spec)
	}
	c.Start()
	s.logger.Info("scheduler started", "timezone", s.cfg.Location.String())

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		close(done)
	}()
	return done
}

func (s *Scheduler) runScheduled(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx, job); err != nil {
		s.logger.Error("scheduled job failed", "error", err, "job", job)
	}
}

// RunOnce runs a task synchronously.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) (Result, error) {
	ctx, span := schedulerTracer.Start(ctx, "scheduler."+string(job))
	defer span.End()

	started := s.now()
	var (
		res Result
		err error
	)
	switch job {
	case JobReminders:
		res, err = s.sendReminders(ctx)
	case JobCleanup:
		res, err = s.releaseUnpaid(ctx)
	case JobComplete:
		res, err = s.completePast(ctx)
	default:
		return Result{Job: job}, fmt.Errorf("scheduler: unknown job %q", job)
	}
	res.Job = job
	span.SetAttributes(attribute.Int("scheduler.affected", res.Affected), attribute.Int("scheduler.failed", res.Failed))
	if err != nil {
		span.RecordError(err)
	}
	s.metrics.ObserveSchedulerRun(string(job), err != nil || res.Failed > 0, res.Affected)
	s.logger.Info("scheduler job finished",
		"job", job,
		"affected", res.Affected,
		"failed", res.Failed,
		"duration_ms", s.now().Sub(started).Milliseconds(),
	)
	return res, err
}

// sendReminders claims each due appointment before sending, so a reminder is sent at
// most once even when runs overlap. A failed send is not retried.
func (s *Scheduler) sendReminders(ctx context.Context) (Result, error) {
	if s.reminders == nil {
		return Result{}, errors.New("scheduler: reminder sender not configured")
	}
	now := s.now()
	due, err := s.store.ListReminderDue(ctx, now, now.Add(s.cfg.ReminderWindow))
	if err != nil {
		return Result{}, fmt.Errorf("scheduler: list reminders: %w", err)
	}
	var res Result
	for _, view := range s.views(ctx, due) {
		won, err := s.store.ClaimReminder(ctx, view.ID)
		if err != nil {
			res.Failed++
			s.logger.Error("reminder claim failed", "error", err, "appointment_id", view.ID)
			continue
		}
		if !won {
			continue
		}
		if err := s.reminders.SendReminder(ctx, view); err != nil {
			res.Failed++
			s.logger.Error("reminder send failed", "error", err, "appointment_id", view.ID)
			continue
		}
		res.Affected++
	}
	return res, nil
}

func (s *Scheduler) releaseUnpaid(ctx context.Context) (Result, error) {
	cutoff := s.now().Add(-s.cfg.UnpaidTimeout)
	released, err := s.store.CancelUnpaidBefore(ctx, cutoff, appointments.ReasonPaymentTimeout)
	if err != nil {
		return Result{}, fmt.Errorf("scheduler: cancel unpaid: %w", err)
	}
	if s.publisher != nil {
		for _, view := range s.views(ctx, released) {
			s.publisher.AppointmentEvent(ctx, events.TopicAppointmentCancelled, view)
		}
	}
	for _, a := range released {
		s.logger.Info("unpaid appointment released", "appointment_id", a.ID, "doctor_id", a.DoctorID, "slot_date", a.SlotDate, "slot_time", a.SlotTime)
	}
	return Result{Affected: len(released)}, nil
}

// completePast marks everything scheduled before local midnight as completed, whether
// or not it was paid or cancelled.
func (s *Scheduler) completePast(ctx context.Context) (Result, error) {
	n, err := s.store.CompletePastBefore(ctx, StartOfDay(s.now(), s.cfg.Location))
	if err != nil {
		return Result{}, fmt.Errorf("scheduler: complete past: %w", err)
	}
	return Result{Affected: int(n)}, nil
}

func (s *Scheduler) views(ctx context.Context, list []*appointments.Appointment) []*appointments.View {
	if s.viewer != nil {
		return s.viewer.Views(ctx, list)
	}
	out := make([]*appointments.View, 0, len(list))
	for _, a := range list {
		out = append(out, &appointments.View{Appointment: *a})
	}
	return out
}
