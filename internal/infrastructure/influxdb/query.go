package influxdb

import (
	"context"
	"fmt"
	"time"
)

// Record is one row of a Flux query result.
type Record struct {
	Measurement string
	Field       string
	Time        time.Time
	Value       any
	Values      map[string]any
}

// Tag returns a string column of the record, empty when absent.
func (r Record) Tag(name string) string {
	if v, ok := r.Values[name].(string); ok {
		return v
	}
	return ""
}

// Query runs a Flux query and collects every record of every table.
func (c *Client) Query(ctx context.Context, flux string) ([]Record, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer result.Close()

	var records []Record
	for result.Next() {
		rec := result.Record()
		records = append(records, Record{
			Measurement: rec.Measurement(),
			Field:       rec.Field(),
			Time:        rec.Time(),
			Value:       rec.Value(),
			Values:      rec.Values(),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return records, nil
}
