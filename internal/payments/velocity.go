package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// OrderLimiter decides whether a patient may open another payment order.
type OrderLimiter interface {
	AllowOrder(ctx context.Context, patientID string) (*VelocityResult, error)
}

// VelocityChecker limits order creation per patient with a Redis counter.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	MaxOrdersPerPatient int
	Window              time.Duration
	Enabled             bool
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxOrdersPerPatient: 10,
		Window:              time.Hour,
		Enabled:             true,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewVelocityChecker creates a new velocity checker. A nil client disables the check.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	return &VelocityChecker{
		redis:  redisClient,
		logger: logging.OrDefault(logger),
		config: config,
	}
}

// AllowOrder counts an order attempt for the patient. Redis failures fail open.
func (v *VelocityChecker) AllowOrder(ctx context.Context, patientID string) (*VelocityResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "velocity.check_order")
	defer span.End()
	span.SetAttributes(attribute.String("booking.patient_id", patientID))

	if v == nil || v.redis == nil || !v.config.Enabled || v.config.MaxOrdersPerPatient <= 0 {
		return &VelocityResult{Allowed: true}, nil
	}

	key := orderVelocityKey(patientID)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.Window)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxOrdersPerPatient,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxOrdersPerPatient,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d payment orders in %s", v.config.MaxOrdersPerPatient, v.config.Window)
		v.logger.Warn("order velocity exceeded",
			"patient_id", patientID,
			"count", count,
			"max", v.config.MaxOrdersPerPatient,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// Reset clears the patient's counter (admin use).
func (v *VelocityChecker) Reset(ctx context.Context, patientID string) error {
	if v == nil || v.redis == nil {
		return nil
	}
	return v.redis.Del(ctx, orderVelocityKey(patientID)).Err()
}

func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}
	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}

func orderVelocityKey(patientID string) string {
	return "velocity:orders:" + patientID
}
