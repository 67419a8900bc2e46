package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Codec converts records to and from their boundary representation.
//
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serialises any record.
	Encode(m Message) ([]byte, error)

	// Decode parses a payload as the record type identified by kind.
	Decode(kind Kind, payload []byte) (Message, error)

	DecodeSensorReading(payload []byte) (*SensorReading, error)
	DecodeActuatorCommand(payload []byte) (*ActuatorCommand, error)
	DecodePerformanceSample(payload []byte) (*PerformanceSample, error)

	// EncodeScalar serialises one labelled metric in the compact
	// "name → {value, timestamp}" form.
	EncodeScalar(s Scalar) ([]byte, error)
}

// Scalar is a single labelled metric.
type Scalar struct {
	Name  string
	Value float64
	Time  time.Time
}

// Names of the scalars split out of a PerformanceSample.
const (
	ScalarCPUUtil  = "DeviceCpuUtil"
	ScalarMemUtil  = "DeviceMemUtil"
	ScalarDiskUtil = "DeviceDiskUtil"
)

// SensorScalar returns the reading as a single scalar. An unparsable
// timestamp is replaced with now.
func SensorScalar(r *SensorReading, now time.Time) Scalar {
	return Scalar{Name: r.Name, Value: r.Value, Time: timeOr(r.Envelope, now)}
}

// PerformanceScalars splits a sample into one scalar per utilisation figure.
func PerformanceScalars(p *PerformanceSample, now time.Time) []Scalar {
	ts := timeOr(p.Envelope, now)
	return []Scalar{
		{Name: ScalarCPUUtil, Value: p.CPUUtilization, Time: ts},
		{Name: ScalarMemUtil, Value: p.MemoryUtilization, Time: ts},
		{Name: ScalarDiskUtil, Value: p.DiskUtilization, Time: ts},
	}
}

func timeOr(e Envelope, now time.Time) time.Time {
	if t, err := e.Time(); err == nil {
		return t
	}
	return now
}

// JSONCodec is the compact JSON Codec.
type JSONCodec struct{}

// NewJSONCodec returns a JSON codec.
func NewJSONCodec() JSONCodec {
	return JSONCodec{}
}

// Encode serialises m as a single JSON object.
func (JSONCodec) Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil record", ErrEncode)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// Decode dispatches on kind to the typed decoders.
func (c JSONCodec) Decode(kind Kind, payload []byte) (Message, error) {
	switch kind {
	case KindSensorReading:
		return c.DecodeSensorReading(payload)
	case KindActuatorCommand, KindActuatorResponse:
		return c.DecodeActuatorCommand(payload)
	case KindPerformanceSample:
		return c.DecodePerformanceSample(payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// DecodeSensorReading parses a sensor reading payload.
func (JSONCodec) DecodeSensorReading(payload []byte) (*SensorReading, error) {
	var r SensorReading
	if err := unmarshalObject(payload, &r); err != nil {
		return nil, err
	}
	if err := checkKind(r.Kind, KindSensorReading); err != nil {
		return nil, err
	}
	return &r, nil
}

// DecodeActuatorCommand parses a command request or acknowledgement.
func (JSONCodec) DecodeActuatorCommand(payload []byte) (*ActuatorCommand, error) {
	var c ActuatorCommand
	if err := unmarshalObject(payload, &c); err != nil {
		return nil, err
	}
	if err := checkKind(c.Kind, KindActuatorCommand, KindActuatorResponse); err != nil {
		return nil, err
	}
	if !c.Command.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCommand, c.Command)
	}
	return &c, nil
}

// DecodePerformanceSample parses a performance sample payload.
func (JSONCodec) DecodePerformanceSample(payload []byte) (*PerformanceSample, error) {
	var p PerformanceSample
	if err := unmarshalObject(payload, &p); err != nil {
		return nil, err
	}
	if err := checkKind(p.Kind, KindPerformanceSample); err != nil {
		return nil, err
	}
	return &p, nil
}

type scalarBody struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// EncodeScalar emits {"<name>":{"value":v,"timestamp":<unix millis>}}.
func (JSONCodec) EncodeScalar(s Scalar) ([]byte, error) {
	if s.Name == "" {
		return nil, ErrEmptyName
	}
	data, err := json.Marshal(map[string]scalarBody{
		s.Name: {Value: s.Value, Timestamp: s.Time.UnixMilli()},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

// unmarshalObject rejects anything that is not a JSON object, including
// the literal null which json.Unmarshal would silently accept.
func unmarshalObject(payload []byte, v any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: expected JSON object", ErrDecode)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}

// checkKind accepts an empty tag so that a default-valued record survives
// an encode/decode round trip.
func checkKind(got Kind, want ...Kind) error {
	if got == "" {
		return nil
	}
	for _, k := range want {
		if got == k {
			return nil
		}
	}
	return fmt.Errorf("%w: got %q", ErrKindMismatch, got)
}
