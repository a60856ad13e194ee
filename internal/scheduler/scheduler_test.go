package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/events"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

func TestSpecFiresOnClinicWallClock(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	cfg := DefaultConfig()
	tests := []struct {
		name string
		spec string
		now  time.Time
		loc  *time.Location
		want time.Time
	}{
		{"hourly mid hour", Spec(JobReminders, cfg), time.Date(2025, 1, 5, 10, 15, 0, 0, time.UTC), time.UTC, time.Date(2025, 1, 5, 11, 0, 0, 0, time.UTC)},
		{"hourly on the hour is strictly after", Spec(JobReminders, cfg), time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), time.UTC, time.Date(2025, 1, 5, 11, 0, 0, 0, time.UTC)},
		{"hourly uses local wall clock", Spec(JobReminders, cfg), time.Date(2025, 1, 5, 10, 15, 0, 0, time.UTC), ist, time.Date(2025, 1, 5, 16, 0, 0, 0, ist)},
		{"hourly rolls to midnight", Spec(JobReminders, cfg), time.Date(2025, 1, 5, 23, 30, 0, 0, time.UTC), time.UTC, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"completion later today", Spec(JobComplete, cfg), time.Date(2025, 1, 5, 0, 30, 0, 0, time.UTC), time.UTC, time.Date(2025, 1, 5, 1, 0, 0, 0, time.UTC)},
		{"cleanup tomorrow", Spec(JobCleanup, cfg), time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), time.UTC, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"cleanup month end", Spec(JobCleanup, cfg), time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC), time.UTC, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"cleanup in clinic zone", Spec(JobCleanup, cfg), time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC), ist, time.Date(2025, 1, 6, 0, 0, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := cron.ParseStandard(tt.spec)
			require.NoError(t, err)
			got := sched.Next(tt.now.In(tt.loc))
			assert.True(t, got.Equal(tt.want), "want %s got %s", tt.want, got)
		})
	}
}

func TestSpecs(t *testing.T) {
	assert.Equal(t, "0 * * * *", IntervalSpec(time.Hour))
	assert.Equal(t, "0 * * * *", IntervalSpec(0))
	assert.Equal(t, "@every 15m0s", IntervalSpec(15*time.Minute))
	assert.Equal(t, "0 0 * * *", DailySpec(0))
	assert.Equal(t, "30 1 * * *", DailySpec(90*time.Minute))
	for _, job := range Jobs {
		_, err := cron.ParseStandard(Spec(job, Config{ReminderInterval: 20 * time.Minute, CleanupAt: 23*time.Hour + 45*time.Minute}))
		assert.NoError(t, err, job)
	}
}

func TestParseJob(t *testing.T) {
	job, err := ParseJob(" Cleanup ")
	require.NoError(t, err)
	assert.Equal(t, JobCleanup, job)
	_, err = ParseJob("vacuum")
	assert.Error(t, err)
}

type recordingReminders struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (r *recordingReminders) SendReminder(ctx context.Context, view *appointments.View) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, view.ID)
	if r.fail[view.ID] {
		return errors.New("delivery failed")
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []events.Topic
	ids    []string
}

func (p *recordingPublisher) AppointmentEvent(ctx context.Context, topic events.Topic, view *appointments.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.ids = append(p.ids, view.ID)
}

var baseNow = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *appointments.MemoryStore, a appointments.Appointment) *appointments.Appointment {
	t.Helper()
	if a.Status == "" {
		a.Status = appointments.StatusPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = baseNow.Add(-time.Hour)
	}
	require.NoError(t, store.Insert(context.Background(), &a))
	return &a
}

func newTestScheduler(store *appointments.MemoryStore, rem ReminderSender, pub appointments.Publisher) *Scheduler {
	s := New(store, nil, rem, pub, DefaultConfig(), logging.Discard())
	s.now = func() time.Time { return baseNow }
	return s
}

func TestRemindersSendOncePerAppointment(t *testing.T) {
	ctx := context.Background()
	store := appointments.NewMemoryStore()
	due := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "11_1_2025", SlotTime: "10:00",
		SlotAt: baseNow.Add(25 * time.Hour), Payment: true, Status: appointments.StatusConfirmed})
	soon := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "10_1_2025", SlotTime: "15:00",
		SlotAt: baseNow.Add(6 * time.Hour), Payment: true, Status: appointments.StatusConfirmed})
	seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "10_1_2025", SlotTime: "16:00",
		SlotAt: baseNow.Add(7 * time.Hour)})
	seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "10_1_2025", SlotTime: "17:00",
		SlotAt: baseNow.Add(8 * time.Hour), Payment: true, Cancelled: true})

	rem := &recordingReminders{}
	s := newTestScheduler(store, rem, nil)

	res, err := s.RunOnce(ctx, JobReminders)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, []string{soon.ID}, rem.sent)

	res, err = s.RunOnce(ctx, JobReminders)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected)
	assert.Len(t, rem.sent, 1)

	// Moving the clock brings the later appointment into the window.
	s.now = func() time.Time { return baseNow.Add(2 * time.Hour) }
	_, err = s.RunOnce(ctx, JobReminders)
	require.NoError(t, err)
	assert.Equal(t, []string{soon.ID, due.ID}, rem.sent)
}

func TestReminderFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := appointments.NewMemoryStore()
	a := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "10_1_2025", SlotTime: "15:00",
		SlotAt: baseNow.Add(6 * time.Hour), Payment: true, Status: appointments.StatusConfirmed})
	rem := &recordingReminders{fail: map[string]bool{a.ID: true}}
	s := newTestScheduler(store, rem, nil)

	res, err := s.RunOnce(ctx, JobReminders)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	_, err = s.RunOnce(ctx, JobReminders)
	require.NoError(t, err)
	assert.Len(t, rem.sent, 1)
	stored, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSent)
}

func TestConcurrentReminderRunsDoNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store := appointments.NewMemoryStore()
	for i, tm := range []string{"12:00", "12:30", "13:00", "13:30"} {
		seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "10_1_2025", SlotTime: tm,
			SlotAt: baseNow.Add(time.Duration(3+i) * time.Hour), Payment: true, Status: appointments.StatusConfirmed})
	}
	rem := &recordingReminders{}
	s := newTestScheduler(store, rem, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.RunOnce(ctx, JobReminders)
		}()
	}
	wg.Wait()
	assert.Len(t, rem.sent, 4)
}

func TestCleanupReleasesStaleUnpaid(t *testing.T) {
	ctx := context.Background()
	store := appointments.NewMemoryStore()
	stale := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "12_1_2025", SlotTime: "10:00",
		SlotAt: baseNow.Add(49 * time.Hour), CreatedAt: baseNow.Add(-25 * time.Hour)})
	fresh := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "12_1_2025", SlotTime: "10:30",
		SlotAt: baseNow.Add(50 * time.Hour), CreatedAt: baseNow.Add(-2 * time.Hour)})
	paid := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "12_1_2025", SlotTime: "11:00",
		SlotAt: baseNow.Add(51 * time.Hour), CreatedAt: baseNow.Add(-30 * time.Hour), Payment: true, Status: appointments.StatusConfirmed})

	pub := &recordingPublisher{}
	s := newTestScheduler(store, nil, pub)

	res, err := s.RunOnce(ctx, JobCleanup)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, []events.Topic{events.TopicAppointmentCancelled}, pub.topics)
	assert.Equal(t, []string{stale.ID}, pub.ids)

	got, err := store.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
	assert.Equal(t, appointments.ReasonPaymentTimeout, got.CancellationReason)
	assert.Equal(t, appointments.StatusPending, got.Status)

	for _, id := range []string{fresh.ID, paid.ID} {
		got, err := store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.Cancelled)
	}

	// The slot is free again.
	booked, err := store.BookedSlots(ctx, "d1", []string{"12_1_2025"})
	require.NoError(t, err)
	assert.False(t, booked.Has("12_1_2025", "10:00"))

	res, err = s.RunOnce(ctx, JobCleanup)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected)
}

func TestCompleteMarksPastDays(t *testing.T) {
	ctx := context.Background()
	store := appointments.NewMemoryStore()
	past := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "9_1_2025", SlotTime: "18:00",
		SlotAt: time.Date(2025, 1, 9, 18, 0, 0, 0, time.UTC), Payment: true, Status: appointments.StatusConfirmed})
	cancelled := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "8_1_2025", SlotTime: "18:00",
		SlotAt: time.Date(2025, 1, 8, 18, 0, 0, 0, time.UTC), Cancelled: true, Status: appointments.StatusCancelled})
	today := seed(t, store, appointments.Appointment{DoctorID: "d1", SlotDate: "10_1_2025", SlotTime: "08:00",
		SlotAt: time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC), Payment: true, Status: appointments.StatusConfirmed})

	s := newTestScheduler(store, nil, nil)
	res, err := s.RunOnce(ctx, JobComplete)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)

	for id, want := range map[string]appointments.Status{
		past.ID:      appointments.StatusCompleted,
		cancelled.ID: appointments.StatusCompleted,
		today.ID:     appointments.StatusConfirmed,
	} {
		got, err := store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}
}

func TestRunOnceUnknownJob(t *testing.T) {
	s := newTestScheduler(appointments.NewMemoryStore(), nil, nil)
	_, err := s.RunOnce(context.Background(), Job("nope"))
	assert.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	s := newTestScheduler(appointments.NewMemoryStore(), &recordingReminders{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
