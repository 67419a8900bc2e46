// Package cloud implements the hub's cloud bridge.
//
// Two providers are supported, selected by cloud.provider in config.yaml:
//
//   - "mqtt": a dedicated MQTT connection to the cloud broker. Telemetry
//     is published to {base_topic}/{device_label}; remote actuator
//     commands arrive on {base_topic}/{device_label}/{variable}/lv.
//   - "http": a REST client posting to {url}/api/v1.6/devices/{device_label}
//     behind a circuit breaker, with bounded retries. It has no downlink.
//
// Telemetry is sent as scalar variables:
//
//	{"HumiditySensor":{"value":41.5,"timestamp":1772366400000}}
//
// A performance sample becomes three variables (CPU, memory and disk),
// each sent as its own message.
package cloud
