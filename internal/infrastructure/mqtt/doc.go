// Package mqtt provides MQTT client connectivity for the gateway.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect after the first connect
//   - Message publishing with QoS validation and a payload size cap
//   - Topic subscriptions that survive reconnects
//   - Last Will and Testament (LWT) for offline detection
//
// It knows nothing about envelopes or resources beyond the topic mapping in
// [Topics]; the pubsub and cloud packages build their connectors on top of it.
//
// # Security Considerations
//
//   - TLS should be enabled for any broker outside the local host (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(mqtt.Will{
//	    Topic:    topics.Status(),
//	    Payload:  []byte(`{"status":"offline"}`),
//	    QoS:      1,
//	    Retained: true,
//	}))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.Resource("gateway/device/sensor"), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
package mqtt
