package persistence

import "errors"

var (
	// ErrNotConnected is returned by Store and Query before Connect.
	ErrNotConnected = errors.New("persistence: not connected")

	// ErrEmptyCollection is returned when no collection is given.
	ErrEmptyCollection = errors.New("persistence: collection is required")

	// ErrUnknownBackend is returned by New for an unsupported backend.
	ErrUnknownBackend = errors.New("persistence: unknown backend")
)
