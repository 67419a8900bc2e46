package envelope

import "strings"

// Resource is a logical named endpoint, independent of transport.
// Transports map it to their own addressing (an MQTT topic, a URL path).
type Resource string

// Gateway resources.
const (
	ResourceActuatorCommand  Resource = "gateway/device/actuator/command"
	ResourceActuatorResponse Resource = "gateway/device/actuator/response"
	ResourceSensorMessage    Resource = "gateway/device/sensor"
	ResourceSystemPerf       Resource = "gateway/device/sysperf"
	ResourceGatewayStatus    Resource = "gateway/status"
)

// Resources lists every known resource.
func Resources() []Resource {
	return []Resource{
		ResourceActuatorCommand,
		ResourceActuatorResponse,
		ResourceSensorMessage,
		ResourceSystemPerf,
		ResourceGatewayStatus,
	}
}

// ParseResource maps a transport path back to a known resource.
// Leading and trailing slashes are ignored.
func ParseResource(path string) (Resource, bool) {
	r := Resource(strings.Trim(path, "/"))
	for _, known := range Resources() {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Kind returns the record kind carried by the resource. The gateway
// status resource carries free-form JSON and reports ok == false.
func (r Resource) Kind() (Kind, bool) {
	switch r {
	case ResourceActuatorCommand:
		return KindActuatorCommand, true
	case ResourceActuatorResponse:
		return KindActuatorResponse, true
	case ResourceSensorMessage:
		return KindSensorReading, true
	case ResourceSystemPerf:
		return KindPerformanceSample, true
	default:
		return "", false
	}
}

// IsActuatorCommand reports whether r carries actuator command requests.
func (r Resource) IsActuatorCommand() bool {
	return r == ResourceActuatorCommand
}

func (r Resource) String() string {
	return string(r)
}
