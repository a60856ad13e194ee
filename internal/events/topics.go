package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Topic names a live notification stream.
type Topic string

const (
	TopicAppointmentBooked    Topic = "APPOINTMENT_BOOKED"
	TopicAppointmentCancelled Topic = "APPOINTMENT_CANCELLED"
	TopicPaymentComplete      Topic = "PAYMENT_COMPLETE"
	// TopicAppointmentReminder is delivered to the patient's room only.
	TopicAppointmentReminder Topic = "APPOINTMENT_REMINDER"
)

// SubscribableTopics lists the topics clients may subscribe to explicitly.
var SubscribableTopics = []Topic{
	TopicAppointmentBooked,
	TopicAppointmentCancelled,
	TopicPaymentComplete,
}

// ParseTopic resolves a client-supplied topic name.
func ParseTopic(name string) (Topic, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, t := range SubscribableTopics {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// EventType is the camel-case event name clients switch on, e.g. "appointmentBooked".
func (t Topic) EventType() string {
	parts := strings.Split(strings.ToLower(string(t)), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// Envelope is the wire shape of every pushed notification.
type Envelope struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Topic     Topic     `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEnvelope stamps data with a fresh id and the current time.
func NewEnvelope(topic Topic, data any) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      topic.EventType(),
		Topic:     topic,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
