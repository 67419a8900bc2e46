// Package resource provides the gateway's request/response server.
//
// Every gateway resource is addressable over HTTP:
//
//	GET    /api/v1/resources           list resources and cache state
//	GET    /api/v1/resources/{path}    latest payload seen for the resource
//	PUT    /api/v1/resources/{path}    hand a payload to the hub
//	POST   /api/v1/resources/{path}    same as PUT
//	DELETE /api/v1/resources/{path}    forget the cached payload
//	GET    /api/v1/observe/{path}      WebSocket stream of new payloads
//	GET    /api/v1/health              server and connector status
//	GET    /metrics                    Prometheus exposition
//
// PUT and POST bodies are decoded by the hub exactly as pub/sub payloads
// are, except actuator commands: the server decodes those itself and hands
// them to the command handler, which dispatches to local listeners and
// pub/sub alike. When a JWT secret is configured, mutating requests must carry an
// HS256 bearer token.
//
// The server is wired after the hub exists:
//
//	srv, _ := resource.New(deps)
//	h := hub.New(hub.Options{Server: srv, Listener: srv, ...})
//	srv.SetInboundHandler(h.HandleInbound)
//	srv.SetCommandHandler(h.OnActuatorCommandRequest)
//	srv.SetHealthSource(h.Status)
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package resource
