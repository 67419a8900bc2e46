package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influxdb.ErrNotConnected) {
//	    // Handle disconnected state
//	}
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed indicates a blocking write was rejected.
	// Batched write errors are delivered through the error callback instead.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrQueryFailed indicates a Flux query failed or returned malformed data.
	ErrQueryFailed = errors.New("influxdb: query failed")

	// ErrNotConfigured indicates the URL or bucket is missing.
	ErrNotConfigured = errors.New("influxdb: url and bucket are required")
)
