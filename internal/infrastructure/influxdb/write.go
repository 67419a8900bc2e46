package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Point is a single measurement row.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

func (p Point) toWrite() *write.Point {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(p.Measurement, p.Tags, p.Fields, ts)
}

// WritePoint queues a point on the batched write path. It returns
// immediately; failures surface through SetOnError. Points written while
// disconnected are dropped.
func (c *Client) WritePoint(p Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p.toWrite())
}

// WritePoints writes points synchronously and reports the server's answer.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - points: Points written in a single request
//
// Returns:
//   - error: ErrNotConnected, or a wrapped ErrWriteFailed
func (c *Client) WritePoints(ctx context.Context, points ...Point) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(points) == 0 {
		return nil
	}

	batch := make([]*write.Point, 0, len(points))
	for _, p := range points {
		batch = append(batch, p.toWrite())
	}

	if err := c.blocking.WritePoint(ctx, batch...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
