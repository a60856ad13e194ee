package notify

import (
	"context"

	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/events"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// Pusher is the live delivery surface of the realtime hub.
type Pusher interface {
	Publish(ctx context.Context, topic events.Topic, data any)
	SendToUser(ctx context.Context, userID string, topic events.Topic, data any)
}

// Publisher fans appointment events out to topic subscribers and the patient's room.
type Publisher struct {
	hub    Pusher
	logger *logging.Logger
}

func NewPublisher(hub Pusher, logger *logging.Logger) *Publisher {
	return &Publisher{hub: hub, logger: logging.OrDefault(logger)}
}

// AppointmentEvent never fails the caller; delivery problems are only logged.
func (p *Publisher) AppointmentEvent(ctx context.Context, topic events.Topic, view *appointments.View) {
	if p == nil || p.hub == nil || view == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("appointment event fan-out panicked", "panic", r, "topic", topic, "appointment_id", view.ID)
		}
	}()
	p.hub.Publish(ctx, topic, view)
	if view.PatientID != "" {
		p.hub.SendToUser(ctx, view.PatientID, topic, view)
	}
	p.logger.Debug("appointment event published", "topic", topic, "appointment_id", view.ID)
}

var _ appointments.Publisher = (*Publisher)(nil)
