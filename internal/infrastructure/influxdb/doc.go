// Package influxdb provides InfluxDB connectivity for the gateway's
// time-series persistence backend.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, two write paths and Flux queries.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WritePoints(ctx, influxdb.Point{
//	    Measurement: "gateway/device/sensor",
//	    Tags:        map[string]string{"name": "HumiditySensor"},
//	    Fields:      map[string]any{"value": 41.5},
//	})
//
// # Error Handling
//
// WritePoint is batched and non-blocking; its errors arrive through the
// SetOnError callback. WritePoints and Query return errors directly.
package influxdb
