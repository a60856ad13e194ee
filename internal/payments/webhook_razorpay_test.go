package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

type stubConfirmer struct {
	calls   int
	orderID string
	already bool
	err     error
}

func (s *stubConfirmer) ConfirmFromGateway(ctx context.Context, orderID, paymentID string) (bool, error) {
	s.calls++
	s.orderID = orderID
	return s.already, s.err
}

func buildRazorpayPayload(t *testing.T, event, orderID, paymentID string) []byte {
	t.Helper()
	body := map[string]any{
		"entity": "event",
		"event":  event,
		"payload": map[string]any{
			"payment": map[string]any{"entity": map[string]any{"id": paymentID, "order_id": orderID, "status": "captured"}},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func newWebhookRequest(body []byte, secret, eventID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/razorpay", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", SignWebhook(secret, body))
	if eventID != "" {
		req.Header.Set("X-Razorpay-Event-Id", eventID)
	}
	return req
}

func TestRazorpayWebhook_AppliesCapturedPayment(t *testing.T) {
	confirmer := &stubConfirmer{}
	processed := NewMemoryProcessedStore()
	handler := NewRazorpayWebhookHandler("whsec", confirmer, processed, logging.Discard())

	body := buildRazorpayPayload(t, "payment.captured", "order_1", "pay_1")
	rr := httptest.NewRecorder()
	handler.Handle(rr, newWebhookRequest(body, "whsec", "evt_1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if confirmer.calls != 1 || confirmer.orderID != "order_1" {
		t.Fatalf("expected confirm for order_1, got %+v", confirmer)
	}
	if seen, _ := processed.AlreadyProcessed(context.Background(), "razorpay", "evt_1"); !seen {
		t.Fatal("expected event to be marked processed")
	}

	// Redelivery is acknowledged without re-applying.
	rr = httptest.NewRecorder()
	handler.Handle(rr, newWebhookRequest(body, "whsec", "evt_1"))
	if rr.Code != http.StatusOK || confirmer.calls != 1 {
		t.Fatalf("expected duplicate to be skipped, code=%d calls=%d", rr.Code, confirmer.calls)
	}
}

func TestRazorpayWebhook_RejectsBadSignature(t *testing.T) {
	confirmer := &stubConfirmer{}
	handler := NewRazorpayWebhookHandler("whsec", confirmer, nil, logging.Discard())

	body := buildRazorpayPayload(t, "payment.captured", "order_1", "pay_1")
	rr := httptest.NewRecorder()
	handler.Handle(rr, newWebhookRequest(body, "other", ""))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if confirmer.calls != 0 {
		t.Fatal("confirm must not run for an unsigned webhook")
	}
}

func TestRazorpayWebhook_IgnoresOtherEvents(t *testing.T) {
	confirmer := &stubConfirmer{}
	handler := NewRazorpayWebhookHandler("whsec", confirmer, nil, logging.Discard())

	body := buildRazorpayPayload(t, "payment.failed", "order_1", "pay_1")
	rr := httptest.NewRecorder()
	handler.Handle(rr, newWebhookRequest(body, "whsec", "evt_2"))

	if rr.Code != http.StatusOK || confirmer.calls != 0 {
		t.Fatalf("expected ignored event, code=%d calls=%d", rr.Code, confirmer.calls)
	}
}

func TestRazorpayWebhook_ConfirmErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown order acknowledged", apperr.NotFound("appointment not found"), http.StatusOK},
		{"cancelled appointment acknowledged", apperr.New(apperr.KindConflict, "appointment cancelled"), http.StatusOK},
		{"store failure retried", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processed := NewMemoryProcessedStore()
			handler := NewRazorpayWebhookHandler("whsec", &stubConfirmer{err: tt.err}, processed, logging.Discard())
			body := buildRazorpayPayload(t, "order.paid", "order_9", "pay_9")
			rr := httptest.NewRecorder()
			handler.Handle(rr, newWebhookRequest(body, "whsec", "evt_9"))
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
			if seen, _ := processed.AlreadyProcessed(context.Background(), "razorpay", "evt_9"); seen {
				t.Fatal("failed deliveries must not be marked processed")
			}
		})
	}
}
