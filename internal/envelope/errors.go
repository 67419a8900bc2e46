package envelope

import "errors"

// Domain-specific errors for envelope encoding and decoding.
var (
	// ErrDecode is returned when a payload is not a valid record.
	ErrDecode = errors.New("envelope: malformed payload")

	// ErrEncode is returned when a record cannot be serialised.
	ErrEncode = errors.New("envelope: encode failed")

	// ErrKindMismatch is returned when a payload's resourceKind does not
	// match the record type being decoded.
	ErrKindMismatch = errors.New("envelope: resource kind mismatch")

	// ErrInvalidCommand is returned when an actuator command is neither ON nor OFF.
	ErrInvalidCommand = errors.New("envelope: invalid actuator command")

	// ErrUnknownKind is returned when no record type exists for a kind tag.
	ErrUnknownKind = errors.New("envelope: unknown resource kind")

	// ErrEmptyName is returned when a compact scalar message has no label.
	ErrEmptyName = errors.New("envelope: name cannot be empty")
)
