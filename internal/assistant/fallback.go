package assistant

import (
	"context"

	"github.com/wolfman30/doctor-booking-platform/pkg/logging"
)

// FallbackClient tries primary and then fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewFallbackClient wraps primary; a nil fallback means primary only.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	return &FallbackClient{primary: primary, fallback: fallback, logger: logging.OrDefault(logger)}
}

func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	c.logger.Warn("primary model failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return Response{}, err
	}
	resp, fbErr := c.fallback.Complete(ctx, req)
	if fbErr != nil {
		c.logger.Error("fallback model also failed",
			"primary_error", err.Error(),
			"fallback_error", fbErr.Error(),
		)
		return Response{}, fbErr
	}
	return resp, nil
}
