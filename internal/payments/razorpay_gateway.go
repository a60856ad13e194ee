package payments

import (
	"context"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// razorpayOrders is the slice of the razorpay SDK used here.
type razorpayOrders interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway creates orders through the Razorpay Orders API.
type RazorpayGateway struct {
	keyID  string
	orders razorpayOrders
	logger *logging.Logger
}

// NewRazorpayGateway builds a gateway from API credentials.
func NewRazorpayGateway(keyID, keySecret string, logger *logging.Logger) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpayGatewayWithOrders(keyID, client.Order, logger)
}

func newRazorpayGatewayWithOrders(keyID string, orders razorpayOrders, logger *logging.Logger) *RazorpayGateway {
	return &RazorpayGateway{keyID: keyID, orders: orders, logger: logging.OrDefault(logger)}
}

func (g *RazorpayGateway) KeyID() string { return g.keyID }

// CreateOrder opens an order. The SDK has no context support, so the call runs in a
// goroutine and the result is abandoned when ctx ends first.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	ctx, span := paymentsTracer.Start(ctx, "razorpay.create_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("payments.receipt", req.Receipt),
		attribute.Int64("payments.amount", req.Amount),
	)

	if req.Amount <= 0 {
		return nil, fmt.Errorf("payments: order amount must be positive, got %d", req.Amount)
	}
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := withContext(ctx, func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		span.RecordError(err)
		g.logger.Error("razorpay create order failed", "error", err, "receipt", req.Receipt)
		return nil, fmt.Errorf("%w: create order: %v", ErrGatewayUnavailable, err)
	}
	order, err := decodeRazorpayOrder(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	span.SetAttributes(attribute.String("payments.order_id", order.ID))
	return order, nil
}

// FetchOrder reads an order's current state.
func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := paymentsTracer.Start(ctx, "razorpay.fetch_order")
	defer span.End()
	span.SetAttributes(attribute.String("payments.order_id", orderID))

	body, err := withContext(ctx, func() (map[string]interface{}, error) {
		return g.orders.Fetch(orderID, nil, nil)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: fetch order: %v", ErrGatewayUnavailable, err)
	}
	order, err := decodeRazorpayOrder(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return order, nil
}

func withContext(ctx context.Context, call func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := call()
		done <- result{body: body, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

func decodeRazorpayOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay response missing order id")
	}
	order := &Order{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = int64(amount)
	case int64:
		order.Amount = amount
	case int:
		order.Amount = int64(amount)
	}
	if created, ok := body["created_at"].(float64); ok {
		order.CreatedAt = time.Unix(int64(created), 0).UTC()
	}
	return order, nil
}
