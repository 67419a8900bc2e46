package pubsub

import "errors"

var (
	// ErrNotConnected is returned by publish and subscribe calls made
	// before Connect or after Disconnect.
	ErrNotConnected = errors.New("pubsub: not connected")

	// ErrUnknownTopic is returned for inbound messages whose topic does
	// not map to a gateway resource.
	ErrUnknownTopic = errors.New("pubsub: topic does not map to a resource")

	// ErrRejected is returned when the inbound handler refused a message.
	ErrRejected = errors.New("pubsub: message rejected")
)
