package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/wolfman30/doctor-booking-platform/internal/appointments"
	"github.com/wolfman30/doctor-booking-platform/internal/events"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

type fakeSendGrid struct {
	status int
	err    error
	last   *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.last = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestNewSendGridSender(t *testing.T) {
	if NewSendGridSender(SendGridConfig{FromEmail: "care@clinic.test"}, nil) != nil {
		t.Fatal("expected nil sender without API key")
	}
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "care@clinic.test"}, nil)
	if sender == nil || sender.fromName != "Prescripto" {
		t.Fatalf("expected default from name, got %+v", sender)
	}
}

func TestSendGridSenderSend(t *testing.T) {
	client := &fakeSendGrid{status: 202}
	sender := newSendGridSender(client, SendGridConfig{FromEmail: "care@clinic.test"}, logging.Discard())

	if err := sender.Send(context.Background(), EmailMessage{To: "asha@example.test", Subject: "Hi", Body: "text"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if client.last == nil || client.last.Subject != "Hi" {
		t.Fatalf("unexpected message %+v", client.last)
	}

	client.status = 401
	if err := sender.Send(context.Background(), EmailMessage{To: "asha@example.test"}); err == nil {
		t.Fatal("expected error for 4xx status")
	}
	client.err = errors.New("network")
	if err := sender.Send(context.Background(), EmailMessage{To: "asha@example.test"}); err == nil {
		t.Fatal("expected transport error")
	}
	var nilSender *SendGridSender
	if err := nilSender.Send(context.Background(), EmailMessage{}); err == nil {
		t.Fatal("expected error from nil sender")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderSend(t *testing.T) {
	if NewSESSender(&fakeSES{}, SESConfig{}, nil) != nil {
		t.Fatal("expected nil sender without from address")
	}
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "care@clinic.test"}, logging.Discard())
	err := sender.Send(context.Background(), EmailMessage{To: "asha@example.test", Subject: "Reminder", Body: "text", HTML: "<p>text</p>"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := aws.ToString(client.input.FromEmailAddress); got != "Prescripto <care@clinic.test>" {
		t.Fatalf("unexpected from %q", got)
	}
	body := client.input.Content.Simple.Body
	if body.Text == nil || body.Html == nil {
		t.Fatal("expected text and html parts")
	}

	client.err = errors.New("throttled")
	if err := sender.Send(context.Background(), EmailMessage{To: "x@example.test"}); err == nil {
		t.Fatal("expected SES error")
	}
}

type fakeTwilio struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender(t *testing.T) {
	if NewTwilioSender(TwilioConfig{AccountSID: "AC1"}, nil) != nil {
		t.Fatal("expected nil sender without full credentials")
	}
	msgs := &fakeTwilio{}
	sender := &TwilioSender{messages: msgs, from: "+15550001111", logger: logging.Discard()}

	if err := sender.SendSMS(context.Background(), "+919800000001", "hello"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
	if *msgs.params.To != "+919800000001" || *msgs.params.From != "+15550001111" || *msgs.params.Body != "hello" {
		t.Fatalf("unexpected params %+v", msgs.params)
	}

	msgs.err = errors.New("invalid number")
	if err := sender.SendSMS(context.Background(), "+1", "x"); err == nil {
		t.Fatal("expected twilio error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.SendSMS(ctx, "+919800000001", "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

type pushed struct {
	userID string
	topic  events.Topic
}

type fakePusher struct {
	mu     sync.Mutex
	topics []events.Topic
	rooms  []pushed
}

func (f *fakePusher) Publish(ctx context.Context, topic events.Topic, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
}

func (f *fakePusher) SendToUser(ctx context.Context, userID string, topic events.Topic, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, pushed{userID: userID, topic: topic})
}

func testView() *appointments.View {
	return &appointments.View{
		Appointment: appointments.Appointment{
			ID:        "appt-1",
			PatientID: "pat-1",
			SlotAt:    time.Date(2025, 1, 6, 5, 0, 0, 0, time.UTC),
		},
		Doctor:  &appointments.DoctorSummary{Name: "Dr Mehta"},
		Patient: &appointments.PatientSummary{ID: "pat-1", Name: "Asha", Email: "asha@example.test", Phone: "+919800000001"},
	}
}

func TestPublisherFansOutToTopicAndRoom(t *testing.T) {
	hub := &fakePusher{}
	pub := NewPublisher(hub, logging.Discard())

	pub.AppointmentEvent(context.Background(), events.TopicAppointmentBooked, testView())
	pub.AppointmentEvent(context.Background(), events.TopicAppointmentBooked, nil)

	if len(hub.topics) != 1 || hub.topics[0] != events.TopicAppointmentBooked {
		t.Fatalf("unexpected topic publishes %v", hub.topics)
	}
	if len(hub.rooms) != 1 || hub.rooms[0].userID != "pat-1" {
		t.Fatalf("unexpected room sends %v", hub.rooms)
	}
}

func TestRemindersUseEveryChannel(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	sms := NewStubSMSSender(logging.Discard())
	email := NewStubEmailSender(logging.Discard())
	hub := &fakePusher{}
	rem := NewReminders(sms, email, hub, loc, logging.Discard())

	if err := rem.SendReminder(context.Background(), testView()); err != nil {
		t.Fatalf("SendReminder: %v", err)
	}
	texts := sms.Sent()
	if len(texts) != 1 || !strings.Contains(texts[0].Body, "Dr Mehta") || !strings.Contains(texts[0].Body, "10:30") {
		t.Fatalf("unexpected sms %+v", texts)
	}
	if mails := email.Sent(); len(mails) != 1 || mails[0].To != "asha@example.test" {
		t.Fatalf("unexpected email %+v", mails)
	}
	if len(hub.rooms) != 1 || hub.rooms[0].topic != events.TopicAppointmentReminder {
		t.Fatalf("unexpected push %+v", hub.rooms)
	}
}

type failingSMS struct{}

func (failingSMS) SendSMS(ctx context.Context, to, body string) error { return errors.New("sms down") }

func TestRemindersReportChannelFailure(t *testing.T) {
	email := NewStubEmailSender(logging.Discard())
	rem := NewReminders(failingSMS{}, email, nil, nil, logging.Discard())
	if err := rem.SendReminder(context.Background(), testView()); err == nil {
		t.Fatal("expected joined error")
	}
	if len(email.Sent()) != 1 {
		t.Fatal("email should still be attempted when sms fails")
	}
}
