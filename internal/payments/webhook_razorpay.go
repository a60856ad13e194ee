package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/wolfman30/doctor-booking-platform/internal/apperr"
	"github.com/wolfman30/doctor-booking-platform/internal/http/respond"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

const providerRazorpay = "razorpay"

// PaymentConfirmer applies a gateway-verified payment to its appointment.
type PaymentConfirmer interface {
	ConfirmFromGateway(ctx context.Context, orderID, paymentID string) (alreadyConfirmed bool, err error)
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// RazorpayWebhookHandler confirms payments reported by Razorpay webhooks. The body
// signature stands in for caller authorization.
type RazorpayWebhookHandler struct {
	secret    string
	confirmer PaymentConfirmer
	processed ProcessedTracker
	logger    *logging.Logger
}

func NewRazorpayWebhookHandler(secret string, confirmer PaymentConfirmer, processed ProcessedTracker, logger *logging.Logger) *RazorpayWebhookHandler {
	if processed == nil {
		processed = NewMemoryProcessedStore()
	}
	return &RazorpayWebhookHandler{
		secret:    secret,
		confirmer: confirmer,
		processed: processed,
		logger:    logging.OrDefault(logger),
	}
}

func (h *RazorpayWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respond.Fail(w, http.StatusBadRequest, "invalid body")
		return
	}

	if !VerifyWebhookSignature(h.secret, payload, r.Header.Get("X-Razorpay-Signature")) {
		respond.Fail(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var evt razorpayEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode razorpay event", "error", err)
		respond.Fail(w, http.StatusBadRequest, "bad request")
		return
	}

	eventID := r.Header.Get("X-Razorpay-Event-Id")
	if eventID != "" {
		if seen, err := h.processed.AlreadyProcessed(r.Context(), providerRazorpay, eventID); err != nil {
			h.logger.Error("processed lookup failed", "error", err)
			respond.Fail(w, http.StatusInternalServerError, "server error")
			return
		} else if seen {
			respond.OK(w, http.StatusOK, map[string]any{"duplicate": true})
			return
		}
	}

	orderID := evt.Payload.Payment.Entity.OrderID
	if orderID == "" {
		orderID = evt.Payload.Order.Entity.ID
	}
	paymentID := evt.Payload.Payment.Entity.ID

	switch evt.Event {
	case "payment.captured", "order.paid":
	default:
		// Acknowledge events we do not act on so Razorpay stops retrying.
		respond.OK(w, http.StatusOK, map[string]any{"ignored": evt.Event})
		return
	}
	if orderID == "" || paymentID == "" {
		h.logger.Warn("razorpay webhook missing identifiers", "event", evt.Event, "event_id", eventID)
		respond.OK(w, http.StatusOK, map[string]any{"ignored": evt.Event})
		return
	}

	already, err := h.confirmer.ConfirmFromGateway(r.Context(), orderID, paymentID)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindNotFound, apperr.KindConflict:
			// Unknown or cancelled appointment: retries cannot change the outcome.
			h.logger.Warn("razorpay webhook not applied", "error", err, "order_id", orderID)
			respond.OK(w, http.StatusOK, map[string]any{"applied": false})
			return
		}
		h.logger.Error("razorpay webhook confirm failed", "error", err, "order_id", orderID)
		respond.Fail(w, http.StatusInternalServerError, "server error")
		return
	}

	if eventID != "" {
		if _, err := h.processed.MarkProcessed(r.Context(), providerRazorpay, eventID); err != nil {
			h.logger.Warn("failed to mark razorpay event processed", "error", err, "event_id", eventID)
		}
	}
	h.logger.Info("razorpay payment applied", "order_id", orderID, "payment_id", paymentID, "already_confirmed", already)
	respond.OK(w, http.StatusOK, map[string]any{"applied": !already})
}
