package payments

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
)

var paymentsTracer = otel.Tracer("doctor-booking.internal.payments")

// ErrGatewayUnavailable wraps any failure talking to the payment gateway.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// OrderRequest describes an order to open at the gateway. Amount is in minor units.
type OrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway's view of an order.
type Order struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Receipt   string    `json:"receipt"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Gateway opens and inspects orders at an external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	// KeyID is the public key the client checkout widget needs.
	KeyID() string
}
