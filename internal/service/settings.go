package service

import (
	"context"
	"time"
)

// Settings are the policy values shared by the settlement services.
type Settings struct {
	Currency            string
	LowBalanceThreshold int64
	GatewayTimeout      time.Duration

	// TopUpWorkers bounds concurrent background top-ups; TopUpQueueDepth
	// bounds how many members may wait for one.
	TopUpWorkers    int
	TopUpQueueDepth int
}

func (s Settings) withDefaults() Settings {
	if s.Currency == "" {
		s.Currency = "GBP"
	}
	if s.GatewayTimeout <= 0 {
		s.GatewayTimeout = 10 * time.Second
	}
	if s.TopUpWorkers <= 0 {
		s.TopUpWorkers = 4
	}
	if s.TopUpQueueDepth <= 0 {
		s.TopUpQueueDepth = 64
	}
	return s
}

func (s Settings) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.GatewayTimeout)
}
