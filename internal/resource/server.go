package resource

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// gracefulShutdownTimeout bounds Stop when ctx carries no deadline.
const gracefulShutdownTimeout = 10 * time.Second

// Logger is the logging interface used by the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps holds the dependencies of the server.
type Deps struct {
	Config   config.ResourceServerConfig
	Security config.SecurityConfig

	// Logger defaults to a no-op logger.
	Logger Logger

	// Codec encodes dispatched actuator commands; defaults to JSON.
	Codec envelope.Codec

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	Version string
}

// Server exposes gateway resources over HTTP and WebSocket.
type Server struct {
	cfg       config.ResourceServerConfig
	secret    string
	logger    Logger
	codec     envelope.Codec
	metrics   http.Handler
	version   string
	cache     *cache
	observers *observers
	now       func() time.Time

	hookMu  sync.RWMutex
	inbound hub.InboundHandler
	command hub.CommandHandler
	health  func() map[string]error

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

var (
	_ hub.RequestResponse  = (*Server)(nil)
	_ hub.ActuatorListener = (*Server)(nil)
)

// New creates a server. It does not listen until Start.
//
// Parameters:
//   - deps: Configuration, logger, codec and optional metrics handler
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If the configured port is out of range
func New(deps Deps) (*Server, error) {
	if deps.Config.Port < 0 || deps.Config.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, deps.Config.Port)
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	codec := deps.Codec
	if codec == nil {
		codec = envelope.NewJSONCodec()
	}

	return &Server{
		cfg:       deps.Config,
		secret:    deps.Security.JWT.Secret,
		logger:    logger,
		codec:     codec,
		metrics:   deps.Metrics,
		version:   deps.Version,
		cache:     newCache(),
		observers: newObservers(deps.Config.WebSocket, logger),
		now:       time.Now,
	}, nil
}

// SetInboundHandler sets the callback receiving PUT and POST payloads.
// Until it is set those requests answer 503.
func (s *Server) SetInboundHandler(h hub.InboundHandler) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.inbound = h
}

// SetCommandHandler sets the callback receiving decoded actuator commands
// from PUT and POST on the command resource. Without it those requests
// fall back to the inbound handler.
func (s *Server) SetCommandHandler(h hub.CommandHandler) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.command = h
}

func (s *Server) commandHook() hub.CommandHandler {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	return s.command
}

// SetHealthSource sets the connector status reported by /api/v1/health.
func (s *Server) SetHealthSource(f func() map[string]error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.health = f
}

func (s *Server) hooks() (hub.InboundHandler, func() map[string]error) {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	return s.inbound, s.health
}

// Start binds the listening socket and serves in the background. Bind
// errors are returned. Calling Start while running is a no-op.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}
	s.server = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("resource server error", "error", err)
		}
	}()

	s.logger.Info("resource server listening", "address", ln.Addr().String(), "auth", s.secret != "")
	return nil
}

// Stop closes every OBSERVE stream and shuts the HTTP server down,
// waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.observers.closeAll()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gracefulShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("resource server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down resource server: %w", err)
	}
	return nil
}

// Addr returns the bound address, or nil when not started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// OnActuatorCommand caches a command dispatched by the hub and pushes it
// to observers of resource.
func (s *Server) OnActuatorCommand(resource envelope.Resource, cmd envelope.ActuatorCommand) error {
	payload, err := s.codec.Encode(&cmd)
	if err != nil {
		return err
	}
	s.update(resource, payload)
	return nil
}

// update caches payload and notifies observers.
func (s *Server) update(resource envelope.Resource, payload []byte) {
	now := s.now()
	s.cache.put(resource, payload, now)
	s.observers.broadcast(resource, payload, now)
}
