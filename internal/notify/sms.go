package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type twilioMessages interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioConfig holds the account credentials and sender number.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	messages twilioMessages
	from     string
	logger   *logging.Logger
}

// NewTwilioSender returns nil unless credentials and a sender number are set.
func NewTwilioSender(cfg TwilioConfig, logger *logging.Logger) *TwilioSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{messages: client.Api, from: cfg.FromNumber, logger: logging.OrDefault(logger)}
}

// SendSMS sends body to the E.164 number to. The Twilio SDK call is not
// context-aware, so ctx is only checked before sending.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.messages.CreateMessage(params)
	if err != nil {
		s.logger.Error("twilio send failed", "error", err, "to", to)
		return fmt.Errorf("notify: twilio send failed: %w", err)
	}
	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	s.logger.Info("sms sent via twilio", "to", to, "sid", sid)
	return nil
}

// StubSMSSender logs instead of sending and keeps the messages for inspection.
type StubSMSSender struct {
	mu     sync.Mutex
	sent   []SMS
	logger *logging.Logger
}

// SMS is a recorded stub message.
type SMS struct {
	To   string
	Body string
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	return &StubSMSSender{logger: logging.OrDefault(logger)}
}

func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.mu.Lock()
	s.sent = append(s.sent, SMS{To: to, Body: body})
	s.mu.Unlock()
	s.logger.Info("stub sms sender: would send sms", "to", to)
	return nil
}

// Sent returns a copy of the recorded messages.
func (s *StubSMSSender) Sent() []SMS {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SMS(nil), s.sent...)
}

var (
	_ SMSSender = (*TwilioSender)(nil)
	_ SMSSender = (*StubSMSSender)(nil)
)
