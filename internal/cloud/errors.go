package cloud

import "errors"

var (
	// ErrNotConnected is returned by send calls made before Connect.
	ErrNotConnected = errors.New("cloud: not connected")

	// ErrUnknownProvider is returned by New for an unsupported provider.
	ErrUnknownProvider = errors.New("cloud: unknown provider")

	// ErrDownlinkUnsupported is returned by bridges that cannot receive
	// remote commands.
	ErrDownlinkUnsupported = errors.New("cloud: downlink not supported by provider")

	// ErrBadDownlink is returned for downlink payloads that are neither a
	// command document nor a numeric command value.
	ErrBadDownlink = errors.New("cloud: malformed downlink payload")

	// ErrRejected is returned when the cloud service answers with a
	// client error. Such requests are not retried.
	ErrRejected = errors.New("cloud: request rejected")
)
