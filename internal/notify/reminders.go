package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/events"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// Reminders delivers upcoming-appointment reminders over every configured channel.
type Reminders struct {
	sms    SMSSender
	email  EmailSender
	hub    Pusher
	loc    *time.Location
	logger *logging.Logger
}

// NewReminders builds a reminder sender. Any channel may be nil.
func NewReminders(sms SMSSender, email EmailSender, hub Pusher, loc *time.Location, logger *logging.Logger) *Reminders {
	if loc == nil {
		loc = time.UTC
	}
	return &Reminders{sms: sms, email: email, hub: hub, loc: loc, logger: logging.OrDefault(logger)}
}

// SendReminder tries every channel and joins the failures.
func (r *Reminders) SendReminder(ctx context.Context, view *appointments.View) error {
	if view == nil {
		return errors.New("notify: nil appointment")
	}
	doctorName := "your doctor"
	if view.Doctor != nil && view.Doctor.Name != "" {
		doctorName = view.Doctor.Name
	}
	when := view.SlotAt.In(r.loc).Format("Mon, 2 Jan 2006 at 15:04")
	text := fmt.Sprintf("Reminder: your appointment with %s is on %s.", doctorName, when)

	var errs []error
	if p := view.Patient; p != nil {
		if r.sms != nil && p.Phone != "" {
			if err := r.sms.SendSMS(ctx, p.Phone, text); err != nil {
				errs = append(errs, err)
			}
		}
		if r.email != nil && p.Email != "" {
			msg := EmailMessage{
				To:      p.Email,
				ToName:  p.Name,
				Subject: "Appointment reminder",
				Body:    fmt.Sprintf("Hi %s,\n\n%s\n\nPlease arrive 10 minutes early.", p.Name, text),
			}
			if err := r.email.Send(ctx, msg); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if r.hub != nil {
		r.hub.SendToUser(ctx, view.PatientID, events.TopicAppointmentReminder, view)
	}

	if err := errors.Join(errs...); err != nil {
		r.logger.Warn("reminder partially delivered", "error", err, "appointment_id", view.ID)
		return err
	}
	r.logger.Info("reminder sent", "appointment_id", view.ID, "patient_id", view.PatientID)
	return nil
}
