package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// FakeGateway is a dev/demo gateway that issues local order ids so bookings can be
// completed without Razorpay credentials. Confirm payments against it with signatures
// produced by Sign and the configured key secret.
//
// This MUST be gated by configuration (PAYMENT_PROVIDER=fake) and never enabled in
// production.
type FakeGateway struct {
	mu     sync.Mutex
	seq    int
	orders map[string]*Order
	delay  time.Duration
	fail   error
	logger *logging.Logger
}

// FakeKeySecret signs fake payments when no Razorpay secret is configured.
const FakeKeySecret = "fake_key_secret"

// NewFakeGateway creates an in-memory gateway.
func NewFakeGateway(logger *logging.Logger) *FakeGateway {
	return &FakeGateway{orders: make(map[string]*Order), logger: logging.OrDefault(logger)}
}

// FailWith makes subsequent calls return err. Passing nil restores normal behavior.
func (g *FakeGateway) FailWith(err error) {
	g.mu.Lock()
	g.fail = err
	g.mu.Unlock()
}

// SetDelay makes CreateOrder block for d or until ctx ends.
func (g *FakeGateway) SetDelay(d time.Duration) {
	g.mu.Lock()
	g.delay = d
	g.mu.Unlock()
}

func (g *FakeGateway) KeyID() string { return "rzp_test_fake" }

func (g *FakeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	g.mu.Lock()
	delay, fail := g.delay, g.fail
	g.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
	if fail != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, fail)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payments: order amount must be positive, got %d", req.Amount)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	order := &Order{
		ID:        fmt.Sprintf("order_fake_%06d", g.seq),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    "created",
		CreatedAt: time.Now().UTC(),
	}
	g.orders[order.ID] = order
	g.logger.Debug("fake order created", "order_id", order.ID, "receipt", req.Receipt)
	cp := *order
	return &cp, nil
}

func (g *FakeGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, g.fail)
	}
	order, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("payments: order %s not found", orderID)
	}
	cp := *order
	return &cp, nil
}

// Orders returns how many orders were created.
func (g *FakeGateway) Orders() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orders)
}
