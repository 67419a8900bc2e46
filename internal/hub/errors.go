package hub

import "errors"

// Domain-specific errors for hub lifecycle.
var (
	// ErrPubSubDisabled is returned by Start when no pub/sub connector is configured.
	ErrPubSubDisabled = errors.New("hub: pub/sub connector not configured")

	// ErrPubSubUnavailable is returned by Start when the pub/sub connector failed to connect.
	ErrPubSubUnavailable = errors.New("hub: pub/sub connector unavailable")
)
