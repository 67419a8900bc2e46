package mqtt

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// ConnectWithRetry calls Connect with exponential backoff until it
// succeeds, ctx is done, cfg.Reconnect.ConnectTimeout elapses, or
// cfg.Reconnect.MaxAttempts attempts have failed. Zero values fall back to
// defaultConnectBudget and defaultConnectAttempts, so the call always
// returns in bounded time. An attempt already in flight when the budget
// runs out finishes first (at most defaultConnectTimeout).
//
// Returns:
//   - *Client: Connected client
//   - error: The last connection error, or ctx.Err() when cancelled
func ConnectWithRetry(ctx context.Context, cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	var settings connectSettings
	for _, opt := range opts {
		opt(&settings)
	}

	ctx, cancel := context.WithTimeout(ctx, connectBudget(cfg.Reconnect))
	defer cancel()

	var client *Client
	attempt := func() error {
		c, err := Connect(cfg, opts...)
		if err != nil {
			return err
		}
		client = c
		return nil
	}

	notify := func(err error, wait time.Duration) {
		if settings.logger != nil {
			settings.logger.Warn("MQTT connect failed, retrying",
				"broker", cfg.Broker.Host, "retry_in", wait, "error", err)
		}
	}

	if err := backoff.RetryNotify(attempt, backoff.WithContext(retryPolicy(cfg.Reconnect), ctx), notify); err != nil {
		return nil, err
	}
	return client, nil
}

// retryPolicy builds the backoff for initial connection attempts.
func retryPolicy(rc config.MQTTReconnectConfig) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if rc.InitialDelay > 0 {
		bo.InitialInterval = time.Duration(rc.InitialDelay) * time.Second
	}
	if rc.MaxDelay > 0 {
		bo.MaxInterval = time.Duration(rc.MaxDelay) * time.Second
	}
	bo.MaxElapsedTime = 0

	attempts := rc.MaxAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	return backoff.WithMaxRetries(bo, uint64(attempts-1)) // #nosec G115 -- checked positive
}

// connectBudget is the overall deadline for an initial connect.
func connectBudget(rc config.MQTTReconnectConfig) time.Duration {
	if rc.ConnectTimeout > 0 {
		return time.Duration(rc.ConnectTimeout) * time.Second
	}
	return defaultConnectBudget
}
