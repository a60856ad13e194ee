package bootstrap

import (
	"fmt"

	appconfig "github.com/wolfman30/doctor-booking-platform/internal/config"
	"github.com/wolfman30/doctor-booking-platform/internal/payments"
	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// BuildGateway picks the payment gateway. The fake gateway is only returned when
// explicitly allowed or when the provider is "fake".
func BuildGateway(cfg *appconfig.Config, logger *logging.Logger) (payments.Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger = logging.OrDefault(logger)

	switch cfg.PaymentProvider {
	case "fake":
		logger.Warn("using fake payment gateway")
		return payments.NewFakeGateway(logger), nil
	case "razorpay", "":
		if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
			logger.Info("razorpay gateway enabled", "key_id", cfg.RazorpayKeyID)
			return payments.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger), nil
		}
		if cfg.AllowFakePayments {
			logger.Warn("razorpay credentials missing; using fake payment gateway")
			return payments.NewFakeGateway(logger), nil
		}
		return nil, fmt.Errorf("bootstrap: RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	default:
		return nil, fmt.Errorf("bootstrap: unknown payment provider %q", cfg.PaymentProvider)
	}
}

// PaymentSecret is the key used to verify client-side payment signatures.
func PaymentSecret(cfg *appconfig.Config) string {
	if cfg.RazorpayKeySecret != "" {
		return cfg.RazorpayKeySecret
	}
	// fake gateway signs with a fixed development secret
	return payments.FakeKeySecret
}
