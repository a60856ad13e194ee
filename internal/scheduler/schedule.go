package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// Job names one periodic task.
type Job string

const (
	JobReminders Job = "reminders"
	JobCleanup   Job = "cleanup"
	JobComplete  Job = "complete"
)

// Jobs lists every task in run order.
var Jobs = []Job{JobReminders, JobCleanup, JobComplete}

// ParseJob resolves a job name.
func ParseJob(name string) (Job, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, j := range Jobs {
		if string(j) == name {
			return j, nil
		}
	}
	return "", fmt.Errorf("scheduler: unknown job %q", name)
}

// HourlySpec fires at the top of every hour.
const HourlySpec = "0 * * * *"

// IntervalSpec returns the cron spec for a repeating task. An hour maps to the top of the
// hour; anything else runs at a constant delay.
func IntervalSpec(every time.Duration) string {
	if every <= 0 || every == time.Hour {
		return HourlySpec
	}
	return "@every " + every.String()
}

// DailySpec returns the cron spec firing once a day at the offset from local midnight.
func DailySpec(at time.Duration) string {
	at = at % (24 * time.Hour)
	if at < 0 {
		at += 24 * time.Hour
	}
	return fmt.Sprintf("%d %d * * *", int(at/time.Minute)%60, int(at/time.Hour))
}

// Spec returns the cron spec for job under cfg.
func Spec(job Job, cfg Config) string {
	switch job {
	case JobCleanup:
		return DailySpec(cfg.CleanupAt)
	case JobComplete:
		return DailySpec(cfg.CompletionAt)
	default:
		return IntervalSpec(cfg.ReminderInterval)
	}
}

// StartOfDay returns local midnight of now's day in loc.
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
