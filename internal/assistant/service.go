package assistant

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

var assistantTracer = otel.Tracer("doctor-booking.internal.assistant")

const (
	maxMessageRunes = 2000
	maxHistory      = 20
	maxSessions     = 5000
)

const chatSystemPrompt = `You are the assistant for Prescripto, an online doctor appointment service.
Answer briefly and in plain language. Help patients pick a speciality, explain how booking,
payment and cancellation work, and share general health information. Never diagnose or
prescribe. For anything urgent tell the user to contact emergency services.`

const medicationSystemPrompt = `You suggest common over-the-counter options for mild symptoms.
Reply with JSON only, shaped as {"medications":[{"name":"","dosage":"","frequency":"","notes":""}],
"precautions":[""],"seeDoctorIf":[""]}. Respect the listed allergies and the patient's age.`

// ChatReply is the assistant's answer in a session.
type ChatReply struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// MedicationRequest asks for over-the-counter suggestions.
type MedicationRequest struct {
	Symptoms  string `json:"symptoms"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Allergies string `json:"allergies,omitempty"`
}

func (r *MedicationRequest) normalize() error {
	r.Symptoms = strings.TrimSpace(r.Symptoms)
	r.Gender = strings.TrimSpace(r.Gender)
	r.Allergies = strings.TrimSpace(r.Allergies)
	if r.Symptoms == "" || r.Gender == "" || r.Age == 0 {
		return apperr.Validation("symptoms, age and gender are required")
	}
	if r.Age < 0 || r.Age > 120 {
		return apperr.Validation("age must be between 1 and 120")
	}
	if utf8.RuneCountInString(r.Symptoms) > maxMessageRunes {
		return apperr.Validation("symptoms are too long")
	}
	return nil
}

// Service answers assistant requests. A nil model client serves canned answers.
type Service struct {
	client Client
	now    func() time.Time
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string][]Message
}

// NewService creates the assistant service.
func NewService(client Client, logger *logging.Logger) *Service {
	return &Service{
		client:   client,
		now:      time.Now,
		logger:   logging.OrDefault(logger),
		sessions: make(map[string][]Message),
	}
}

// Chat answers message in a per-user session. sessionID defaults to the user's id.
func (s *Service) Chat(ctx context.Context, userID, sessionID, message string) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(message) > maxMessageRunes {
		return nil, apperr.Validation("message is too long")
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = userID
	}

	ctx, span := assistantTracer.Start(ctx, "assistant.chat")
	defer span.End()
	span.SetAttributes(attribute.Bool("assistant.model", s.client != nil))

	key := sessionKey(userID, sessionID)
	history := append(s.history(key), Message{Role: RoleUser, Content: message})

	answer := ""
	if s.client != nil {
		resp, err := s.client.Complete(ctx, Request{System: chatSystemPrompt, Messages: history, MaxTokens: 512, Temperature: 0.4})
		if err != nil {
			s.logger.Warn("assistant chat model failed, using canned reply", "error", err)
		} else {
			answer = strings.TrimSpace(resp.Text)
		}
	}
	if answer == "" {
		answer = cannedChatReply(message)
	}

	s.remember(key, append(history, Message{Role: RoleAssistant, Content: answer}))
	return &ChatReply{Message: answer, SessionID: sessionID}, nil
}

// ClearHistory forgets a session.
func (s *Service) ClearHistory(userID, sessionID string) {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = userID
	}
	s.mu.Lock()
	delete(s.sessions, sessionKey(userID, sessionID))
	s.mu.Unlock()
}

// Medications suggests over-the-counter options. Model output that does not parse falls
// back to the canned table.
func (s *Service) Medications(ctx context.Context, req MedicationRequest) (*MedicationAdvice, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	ctx, span := assistantTracer.Start(ctx, "assistant.medications")
	defer span.End()

	if s.client != nil {
		prompt := "Symptoms: " + req.Symptoms +
			"\nAge: " + strconv.Itoa(req.Age) +
			"\nGender: " + req.Gender +
			"\nAllergies: " + orNone(req.Allergies)
		resp, err := s.client.Complete(ctx, Request{
			System:      medicationSystemPrompt,
			Messages:    []Message{{Role: RoleUser, Content: prompt}},
			MaxTokens:   700,
			Temperature: 0.2,
		})
		if err != nil {
			s.logger.Warn("assistant medication model failed, using canned advice", "error", err)
			return cannedMedications(req), nil
		}
		advice, err := parseAdvice(resp.Text)
		if err == nil {
			return advice, nil
		}
		s.logger.Warn("assistant medication reply did not parse", "error", err)
	}
	return cannedMedications(req), nil
}

// HealthTips returns today's tips.
func (s *Service) HealthTips(n int) []Tip {
	return dailyTips(s.now(), n)
}

func (s *Service) history(key string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sessions[key]...)
}

func (s *Service) remember(key string, msgs []Message) {
	if len(msgs) > maxHistory {
		msgs = msgs[len(msgs)-maxHistory:]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok && len(s.sessions) >= maxSessions {
		// drop an arbitrary session to stay bounded
		for k := range s.sessions {
			delete(s.sessions, k)
			break
		}
	}
	s.sessions[key] = msgs
}

func sessionKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

func parseAdvice(text string) (*MedicationAdvice, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if i := strings.Index(text, "{"); i > 0 {
		text = text[i:]
	}
	var advice MedicationAdvice
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &advice); err != nil {
		return nil, err
	}
	if len(advice.Medications) == 0 {
		return nil, apperr.Validation("model returned no medications")
	}
	if advice.Precautions == nil {
		advice.Precautions = []string{}
	}
	if len(advice.SeeDoctorIf) == 0 {
		advice.SeeDoctorIf = append([]string(nil), defaultSeeDoctor...)
	}
	advice.Disclaimer = disclaimer
	advice.Source = "model"
	return &advice, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
