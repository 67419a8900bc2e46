// Package persistence implements the hub's durable store.
//
// Two backends are available, selected by persistence.backend:
//
//   - "sqlite": rows in the envelopes table of the local database, one per
//     message, indexed by collection and timestamp.
//   - "influxdb": one point per message in the measurement named after
//     the collection, tagged with kind and name, holding the encoded
//     message in the "payload" field.
//
// Collections are resource paths such as "gateway/device/sensor". Queries
// return messages in timestamp order; a zero start or end time leaves that
// side of the range open.
package persistence
