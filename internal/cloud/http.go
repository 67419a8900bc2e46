package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

const (
	defaultHTTPTimeout   = 10 * time.Second
	defaultRetryInterval = 250 * time.Millisecond
	maxRetryInterval     = 5 * time.Second

	// authHeader carries the account token.
	authHeader = "X-Auth-Token"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 512
)

// HTTPBridge posts telemetry to a REST endpoint. Each request goes
// through a circuit breaker; failed requests are retried with backoff
// while the breaker stays closed.
type HTTPBridge struct {
	cfg config.CloudConfig
	settings

	endpoint      string
	retryInterval time.Duration

	mu        sync.RWMutex
	connected bool
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
}

var _ hub.CloudBridge = (*HTTPBridge)(nil)

// NewHTTPBridge returns a disconnected REST bridge.
func NewHTTPBridge(cfg config.CloudConfig, opts ...Option) *HTTPBridge {
	b := &HTTPBridge{
		cfg:           cfg,
		settings:      newSettings(opts),
		retryInterval: defaultRetryInterval,
	}

	threshold := cfg.Breaker.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cloud-http",
		Timeout: time.Duration(cfg.Breaker.OpenSeconds) * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- checked positive
		},
		// Rejected requests prove the service is up.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return b
}

// Connect validates the endpoint and prepares the HTTP client. No request
// is made; the first send reveals whether the service is reachable.
func (b *HTTPBridge) Connect(_ context.Context) error {
	endpoint, err := deviceEndpoint(b.cfg.HTTP.URL, b.cfg.DeviceLabel)
	if err != nil {
		return err
	}

	client := b.httpClient
	if client == nil {
		timeout := time.Duration(b.cfg.HTTP.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoint = endpoint
	b.client = client
	b.connected = true
	return nil
}

// Disconnect releases idle connections.
func (b *HTTPBridge) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.CloseIdleConnections()
	}
	b.connected = false
	return nil
}

// SendSensorReading posts the reading as a single variable.
func (b *HTTPBridge) SendSensorReading(ctx context.Context, _ envelope.Resource, r *envelope.SensorReading) error {
	if r == nil {
		return fmt.Errorf("%w: nil sensor reading", envelope.ErrEncode)
	}
	return b.send(ctx, []envelope.Scalar{envelope.SensorScalar(r, b.now())})
}

// SendPerformanceSample posts CPU, memory and disk utilisation, one
// request per variable.
func (b *HTTPBridge) SendPerformanceSample(ctx context.Context, _ envelope.Resource, s *envelope.PerformanceSample) error {
	if s == nil {
		return fmt.Errorf("%w: nil performance sample", envelope.ErrEncode)
	}
	return b.send(ctx, envelope.PerformanceScalars(s, b.now()))
}

// SubscribeDownlink always fails: the REST API offers no push channel.
func (b *HTTPBridge) SubscribeDownlink(envelope.Resource) error {
	return ErrDownlinkUnsupported
}

// SetInboundHandler is a no-op; the REST bridge never receives messages.
func (b *HTTPBridge) SetInboundHandler(hub.InboundHandler) {}

// BreakerState reports the circuit breaker state.
func (b *HTTPBridge) BreakerState() gobreaker.State {
	return b.breaker.State()
}

func (b *HTTPBridge) send(ctx context.Context, scalars []envelope.Scalar) error {
	b.mu.RLock()
	connected, client, endpoint := b.connected, b.client, b.endpoint
	b.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	var errs []error
	for _, sc := range scalars {
		body, err := b.codec.EncodeScalar(sc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.sendOne(ctx, client, endpoint, body); err != nil {
			errs = append(errs, fmt.Errorf("sending %s: %w", sc.Name, err))
		}
	}
	return errors.Join(errs...)
}

// sendOne posts a single variable through the breaker, retrying transient
// failures.
func (b *HTTPBridge) sendOne(ctx context.Context, client *http.Client, endpoint string, body []byte) error {
	attempt := func() error {
		_, err := b.breaker.Execute(func() (interface{}, error) {
			return nil, b.post(ctx, client, endpoint, body)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || errors.Is(err, ErrRejected) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(attempt, backoff.WithContext(b.retryPolicy(), ctx))
}

func (b *HTTPBridge) retryPolicy() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.retryInterval
	bo.MaxInterval = maxRetryInterval
	bo.MaxElapsedTime = 0

	retries := b.cfg.HTTP.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(bo, uint64(retries)) // #nosec G115 -- checked non-negative
}

func (b *HTTPBridge) post(ctx context.Context, client *http.Client, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.HTTP.Token != "" {
		req.Header.Set(authHeader, b.cfg.HTTP.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to cloud: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: %s", ErrRejected, resp.Status, strings.TrimSpace(string(detail)))
	}
	return fmt.Errorf("cloud responded %s: %s", resp.Status, strings.TrimSpace(string(detail)))
}

// deviceEndpoint is {base}/api/v1.6/devices/{label}.
func deviceEndpoint(base, label string) (string, error) {
	if base == "" || label == "" {
		return "", fmt.Errorf("cloud http: url and device label are required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("cloud http: parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("cloud http: unsupported scheme %q", u.Scheme)
	}
	return u.JoinPath("api", "v1.6", "devices", label).String(), nil
}
