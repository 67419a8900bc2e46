// Package hub implements the gateway message hub: the single entry and
// exit point for telemetry and actuation traffic.
//
// The hub routes inbound records from any connector to the matching
// handler, runs humidity readings through the actuation controller,
// persists and forwards records upstream, and starts and stops every
// connector as one unit.
//
// # Data Flow
//
//	connector ─► HandleInbound(resource, payload)
//	               │ decode by resource kind
//	               ▼
//	         OnSensorReading ─► persist ─► evaluate (monitored type only) ─► cloud
//	                                           │
//	                                           ▼
//	                              DispatchActuatorCommand ─► local listener
//	                                                      └► pub/sub publish
//
// # Connectors
//
// Connectors are consumed through the capability interfaces in
// connectors.go. A nil connector is treated as disabled. Connector errors
// are logged and counted but never returned from the On* entry points:
// ingestion must not push back on the source transport.
//
// # Lifecycle
//
// Start connects persistence, pub/sub, the cloud bridge and the
// request/response server in that order, continuing past failures. It
// returns nil only when the pub/sub connector, the primary control
// channel, connected. Stop disconnects in reverse order, best effort.
//
// # Thread Safety
//
// Every exported method is safe for concurrent use. Controller state is
// guarded by one mutex per sensor/actuator pair. Connector calls happen
// after that mutex is released, using a copy of the computed command.
package hub
