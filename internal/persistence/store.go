package persistence

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
)

// Option configures a store.
type Option func(*settings)

type settings struct {
	codec envelope.Codec
	now   func() time.Time
}

// WithCodec replaces the JSON codec used to encode stored messages.
func WithCodec(c envelope.Codec) Option {
	return func(s *settings) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithClock sets the clock used for messages without a parsable timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{codec: envelope.NewJSONCodec(), now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// New builds the store selected by cfg.Persistence.Backend. migrations is
// applied by the SQLite backend on Connect.
func New(cfg *config.Config, migrations database.Source, opts ...Option) (hub.Persistence, error) {
	switch cfg.Persistence.Backend {
	case config.PersistenceSQLite:
		return NewSQLiteStore(cfg.Database, migrations, opts...), nil
	case config.PersistenceInfluxDB:
		return NewInfluxStore(cfg.InfluxDB, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Persistence.Backend)
	}
}

// row is a message ready to be written.
type row struct {
	kind    envelope.Kind
	name    string
	typeID  int
	value   float64
	ts      time.Time
	payload []byte
}

// encode prepares msgs for collection. A message decoded without a
// resourceKind is stored under the kind implied by its concrete type or,
// failing that, by collection, so Query can decode it again.
func (s settings) encode(collection string, msgs []envelope.Message) ([]row, error) {
	rows := make([]row, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		m = withKind(m, recordKind(collection, m))
		h := m.Header()
		if !h.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q in %s", envelope.ErrUnknownKind, h.Kind, collection)
		}
		payload, err := s.codec.Encode(m)
		if err != nil {
			return nil, err
		}
		ts, err := h.Time()
		if err != nil {
			ts = s.now()
		}
		rows = append(rows, row{
			kind:    h.Kind,
			name:    h.Name,
			typeID:  h.TypeID,
			value:   h.Value,
			ts:      ts,
			payload: payload,
		})
	}
	return rows, nil
}

// recordKind resolves the kind m is stored under.
func recordKind(collection string, m envelope.Message) envelope.Kind {
	if k := m.Header().Kind; k.Valid() {
		return k
	}
	switch v := m.(type) {
	case *envelope.SensorReading:
		return envelope.KindSensorReading
	case *envelope.PerformanceSample:
		return envelope.KindPerformanceSample
	case *envelope.ActuatorCommand:
		if v.IsResponse {
			return envelope.KindActuatorResponse
		}
		return envelope.KindActuatorCommand
	}
	if r, ok := envelope.ParseResource(collection); ok {
		if k, ok := r.Kind(); ok {
			return k
		}
	}
	return m.Header().Kind
}

// withKind returns m with its header kind set to k, copying the record
// rather than mutating the caller's value.
func withKind(m envelope.Message, k envelope.Kind) envelope.Message {
	if m.Header().Kind == k {
		return m
	}
	switch v := m.(type) {
	case *envelope.SensorReading:
		c := *v
		c.Kind = k
		return &c
	case *envelope.PerformanceSample:
		c := *v
		c.Kind = k
		return &c
	case *envelope.ActuatorCommand:
		c := *v
		c.Kind = k
		return &c
	}
	return m
}
