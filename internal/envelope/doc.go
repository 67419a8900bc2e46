// Package envelope defines the telemetry and command records exchanged
// between the gateway hub and its connectors.
//
// Every record embeds an Envelope header carrying the resource kind tag,
// a name, a location, a numeric type id, an ISO-8601 timestamp, an error
// flag and a raw value. Three concrete records build on it:
//
//   - SensorReading: one scalar measurement from a field device
//   - ActuatorCommand: an ON/OFF request, or a device's acknowledgement of one
//   - PerformanceSample: CPU, memory and disk utilisation as [0,1] fractions
//
// # Value Semantics
//
// Records are value objects. Constructors and setters may mutate a record
// while it is being built; once a record is handed to the hub, a connector
// or a listener it must not be mutated again. Copy it first.
//
// # Timestamps
//
// Setters refresh the timestamp through Touch, which never moves it
// backwards. Timestamps are stored as strings so that a decoded record is
// field-for-field equal to the encoded one.
//
// # Wire Format
//
// Codec converts records to and from the boundary format. JSONCodec emits
// one compact JSON object per record with stable field names (resourceKind,
// name, locationID, typeID, timeStamp, hasError, value, ...). It also emits
// the single-scalar "name → {value, timestamp}" form used by upstream
// services that accept one labelled metric per message.
//
// The codec is injected wherever it is needed; there is no package-level
// serializer instance.
package envelope
