// Package pubsub implements the hub's publish/subscribe connector over
// MQTT.
//
// Resources map to topics under the configured prefix:
//
//	gateway/device/sensor  ->  <prefix>/gateway/device/sensor
//
// The gateway status resource is published retained, and a retained
// "offline" status is registered as the Last Will so subscribers learn
// when the gateway drops off the broker.
package pubsub
