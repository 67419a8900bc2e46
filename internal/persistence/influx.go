package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/hub"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/influxdb"
)

// Field and tag names written for each message.
const (
	fieldPayload = "payload"
	fieldValue   = "value"
	tagKind      = "kind"
	tagName      = "name"
	tagTypeID    = "type_id"
)

// InfluxStore keeps messages as InfluxDB points.
//
// Messages stored with QoS 0 go through the batched write API and may be
// lost on a crash; higher QoS levels are written synchronously.
type InfluxStore struct {
	cfg config.InfluxDBConfig
	settings

	mu     sync.RWMutex
	client *influxdb.Client
}

var _ hub.Persistence = (*InfluxStore)(nil)

// NewInfluxStore returns a store that connects to cfg.URL on Connect.
func NewInfluxStore(cfg config.InfluxDBConfig, opts ...Option) *InfluxStore {
	return &InfluxStore{cfg: cfg, settings: newSettings(opts)}
}

// Connect opens the InfluxDB client and verifies the server is reachable.
func (s *InfluxStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	client, err := influxdb.Connect(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

// Disconnect flushes pending batched writes and closes the client.
func (s *InfluxStore) Disconnect() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	return client.Close()
}

// Store writes one point per message into the measurement named collection.
func (s *InfluxStore) Store(ctx context.Context, collection string, qos byte, msgs ...envelope.Message) error {
	if collection == "" {
		return ErrEmptyCollection
	}
	client, err := s.conn()
	if err != nil {
		return err
	}
	rows, err := s.encode(collection, msgs)
	if err != nil {
		return err
	}

	points := make([]influxdb.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, influxdb.Point{
			Measurement: collection,
			Tags: map[string]string{
				tagKind:   string(r.kind),
				tagName:   r.name,
				tagTypeID: strconv.Itoa(r.typeID),
			},
			Fields: map[string]any{
				fieldPayload: string(r.payload),
				fieldValue:   r.value,
			},
			Time: r.ts,
		})
	}

	if qos == 0 {
		for _, p := range points {
			client.WritePoint(p)
		}
		return nil
	}
	return client.WritePoints(ctx, points...)
}

// Query returns the messages of collection between start and end
// inclusive, oldest first.
func (s *InfluxStore) Query(ctx context.Context, collection string, start, end time.Time) ([]envelope.Message, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	client, err := s.conn()
	if err != nil {
		return nil, err
	}

	records, err := client.Query(ctx, fluxQuery(client.Bucket(), collection, start, end))
	if err != nil {
		return nil, err
	}

	out := make([]envelope.Message, 0, len(records))
	for _, rec := range records {
		payload, ok := rec.Value.(string)
		if !ok {
			return nil, fmt.Errorf("stored %s payload has type %T", collection, rec.Value)
		}
		kind := envelope.Kind(rec.Tag(tagKind))
		msg, err := s.codec.Decode(kind, []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("decoding stored %s: %w", kind, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *InfluxStore) conn() (*influxdb.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, ErrNotConnected
	}
	return s.client, nil
}

// fluxQuery builds the range query for one collection. Flux ranges exclude
// the stop time, so a bounded end is pushed forward by one nanosecond.
func fluxQuery(bucket, collection string, start, end time.Time) string {
	if start.IsZero() {
		start = time.Unix(0, 0)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", strconv.Quote(bucket))
	if end.IsZero() {
		fmt.Fprintf(&b, "  |> range(start: %s)\n", start.UTC().Format(time.RFC3339Nano))
	} else {
		fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n",
			start.UTC().Format(time.RFC3339Nano), end.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano))
	}
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s and r._field == %q)\n", strconv.Quote(collection), fieldPayload)
	b.WriteString("  |> group()\n")
	b.WriteString(`  |> sort(columns: ["_time"])`)
	return b.String()
}
