package mqtt

import "strings"

// statusSegment is the resource path of the gateway status announcement.
const statusSegment = "gateway/status"

// Topics maps gateway resource paths to broker topics under an optional
// prefix, so several gateways can share one broker.
//
//	topics := mqtt.Topics{Prefix: "site-a"}
//	topics.Resource("gateway/device/sensor")
//	// Returns: "site-a/gateway/device/sensor"
type Topics struct {
	Prefix string
}

// Resource returns the topic for a resource path. Leading and trailing
// slashes on either part are ignored.
func (t Topics) Resource(path string) string {
	path = strings.Trim(path, "/")
	prefix := strings.Trim(t.Prefix, "/")
	if prefix == "" {
		return path
	}
	if path == "" {
		return prefix
	}
	return prefix + "/" + path
}

// Trim reverses Resource. The boolean is false when topic does not sit
// under the prefix.
func (t Topics) Trim(topic string) (string, bool) {
	prefix := strings.Trim(t.Prefix, "/")
	if prefix == "" {
		return strings.Trim(topic, "/"), true
	}
	rest, ok := strings.CutPrefix(strings.Trim(topic, "/"), prefix+"/")
	if !ok {
		return "", false
	}
	return rest, true
}

// Status returns the gateway status topic, used for retained presence
// announcements and the Last Will.
func (t Topics) Status() string {
	return t.Resource(statusSegment)
}

// All returns a wildcard matching every topic under the prefix.
func (t Topics) All() string {
	return t.Resource("#")
}
