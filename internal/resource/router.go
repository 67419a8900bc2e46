package resource

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
)

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/resources", s.handleListResources)
		r.Get("/resources/*", s.handleGetResource)
		r.Get("/observe/*", s.handleObserve)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Put("/resources/*", s.handleUpdateResource)
			r.Post("/resources/*", s.handleUpdateResource)
			r.Delete("/resources/*", s.handleDeleteResource)
		})
	})

	return r
}

// resourceParam resolves the wildcard path segment to a known resource.
func resourceParam(r *http.Request) (envelope.Resource, bool) {
	return envelope.ParseResource(chi.URLParam(r, "*"))
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Observers  int               `json:"observers"`
	Connectors map[string]string `json:"connectors,omitempty"`
}

// handleHealth reports "degraded" when any connector failed to connect.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   s.version,
		Observers: s.observers.count(),
	}

	if _, health := s.hooks(); health != nil {
		resp.Connectors = make(map[string]string)
		for name, err := range health() {
			if err != nil {
				resp.Connectors[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Connectors[name] = "connected"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type resourceInfo struct {
	Resource string `json:"resource"`
	Kind     string `json:"kind,omitempty"`
	Cached   bool   `json:"cached"`
	Updated  string `json:"updated,omitempty"`
}

func (s *Server) handleListResources(w http.ResponseWriter, _ *http.Request) {
	list := make([]resourceInfo, 0, len(envelope.Resources()))
	for _, res := range envelope.Resources() {
		info := resourceInfo{Resource: res.String()}
		if kind, ok := res.Kind(); ok {
			info.Kind = string(kind)
		}
		if e, ok := s.cache.get(res); ok {
			info.Cached = true
			info.Updated = e.updated.UTC().Format(time.RFC3339Nano)
		}
		list = append(list, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": list})
}

// handleGetResource returns the cached payload verbatim.
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(r)
	if !ok {
		writeNotFound(w, "unknown resource")
		return
	}

	e, ok := s.cache.get(resource)
	if !ok {
		writeNotFound(w, "no data for resource")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Last-Modified", e.updated.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(e.payload)
}

// handleUpdateResource hands the body to the hub. Accepted payloads are
// cached and pushed to observers.
func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(r)
	if !ok {
		writeNotFound(w, "unknown resource")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "reading request body failed")
		return
	}
	if len(payload) == 0 {
		writeBadRequest(w, "request body is empty")
		return
	}

	if resource.IsActuatorCommand() {
		if command := s.commandHook(); command != nil {
			s.handleCommand(w, r, command, resource, payload)
			return
		}
	}

	inbound, _ := s.hooks()
	if inbound == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "hub not attached")
		return
	}

	if !inbound(resource, payload) {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeRejected, "payload rejected")
		return
	}

	s.update(resource, payload)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"resource": resource.String(),
		"accepted": true,
	})
}

// handleCommand decodes an actuator command and dispatches it through the
// hub. The hub echoes the dispatched command back through
// OnActuatorCommand, which refreshes the cache and observers.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, command hub.CommandHandler, resource envelope.Resource, payload []byte) {
	cmd, err := s.codec.DecodeActuatorCommand(payload)
	if err != nil {
		writeBadRequest(w, "invalid actuator command")
		return
	}
	if !command(r.Context(), resource, cmd) {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeRejected, "command not delivered")
		return
	}
	s.logger.Info("actuator command accepted", "resource", resource, "command", cmd.Command.String())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"resource": resource.String(),
		"accepted": true,
	})
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(r)
	if !ok {
		writeNotFound(w, "unknown resource")
		return
	}
	if !s.cache.remove(resource) {
		writeNotFound(w, "no data for resource")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
