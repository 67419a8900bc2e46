package envelope

import (
	"time"
)

// Kind tags a record with its concrete type so inbound data can be routed
// without runtime type inspection.
type Kind string

// Record kinds.
const (
	KindSensorReading     Kind = "SensorReading"
	KindActuatorCommand   Kind = "ActuatorCommand"
	KindActuatorResponse  Kind = "ActuatorResponse"
	KindPerformanceSample Kind = "PerformanceSample"
)

// Valid reports whether k is one of the known record kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSensorReading, KindActuatorCommand, KindActuatorResponse, KindPerformanceSample:
		return true
	default:
		return false
	}
}

// TimeLayout is the ISO-8601 layout used for every record timestamp.
const TimeLayout = time.RFC3339Nano

// Well-known type ids shared with field devices.
const (
	// TypeDefault marks a record with no specific sub-type.
	TypeDefault = 0

	// TypeHumidifierActuator identifies the humidifier actuator.
	TypeHumidifierActuator = 1002

	// TypeHumiditySensor identifies relative-humidity readings.
	TypeHumiditySensor = 1010

	// TypeTemperatureSensor identifies temperature readings.
	TypeTemperatureSensor = 1013

	// TypeSystemPerformance identifies performance samples.
	TypeSystemPerformance = 9001
)

// Envelope is the header shared by every record.
type Envelope struct {
	Kind       Kind    `json:"resourceKind"`
	Name       string  `json:"name"`
	LocationID string  `json:"locationID"`
	TypeID     int     `json:"typeID"`
	TimeStamp  string  `json:"timeStamp"`
	HasError   bool    `json:"hasError"`
	Value      float64 `json:"value"`
}

// Message is implemented by every record type through its embedded Envelope.
type Message interface {
	Header() Envelope
}

// Header returns a copy of the envelope header.
func (e Envelope) Header() Envelope {
	return e
}

// Time parses the record timestamp.
func (e Envelope) Time() (time.Time, error) {
	return time.Parse(TimeLayout, e.TimeStamp)
}

// Touch refreshes the timestamp to now. A timestamp is never moved
// backwards: if the current one is later than now it is kept.
func (e *Envelope) Touch(now time.Time) {
	if prev, err := e.Time(); err == nil && prev.After(now) {
		return
	}
	e.TimeStamp = now.UTC().Format(TimeLayout)
}

// SetValue stores v and refreshes the timestamp.
func (e *Envelope) SetValue(v float64) {
	e.Value = v
	e.Touch(time.Now())
}

// SetError sets the error flag and refreshes the timestamp.
func (e *Envelope) SetError(hasError bool) {
	e.HasError = hasError
	e.Touch(time.Now())
}

func newEnvelope(kind Kind, name string, typeID int) Envelope {
	e := Envelope{Kind: kind, Name: name, TypeID: typeID}
	e.Touch(time.Now())
	return e
}

// SensorReading is one scalar measurement.
type SensorReading struct {
	Envelope
}

// NewSensorReading creates a reading stamped with the current time.
func NewSensorReading(name string, typeID int, value float64) *SensorReading {
	r := &SensorReading{Envelope: newEnvelope(KindSensorReading, name, typeID)}
	r.Value = value
	return r
}

// Command is the binary actuator state.
type Command int

// Actuator commands.
const (
	CommandOff Command = 0
	CommandOn  Command = 1
)

// Valid reports whether c is ON or OFF.
func (c Command) Valid() bool {
	return c == CommandOff || c == CommandOn
}

func (c Command) String() string {
	switch c {
	case CommandOn:
		return "ON"
	case CommandOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ActuatorCommand requests an actuator state change, or acknowledges one
// when IsResponse is set. Value carries the target set-point.
type ActuatorCommand struct {
	Envelope
	Command    Command `json:"command"`
	IsResponse bool    `json:"isResponse"`
	StateData  string  `json:"stateData,omitempty"`
}

// NewActuatorCommand creates an outbound command request.
func NewActuatorCommand(name string, typeID int, cmd Command, target float64) *ActuatorCommand {
	c := &ActuatorCommand{
		Envelope: newEnvelope(KindActuatorCommand, name, typeID),
		Command:  cmd,
	}
	c.Value = target
	return c
}

// SetCommand stores cmd and refreshes the timestamp.
func (c *ActuatorCommand) SetCommand(cmd Command) {
	c.Command = cmd
	c.Touch(time.Now())
}

// SetStateData stores free-text device status and refreshes the timestamp.
func (c *ActuatorCommand) SetStateData(s string) {
	c.StateData = s
	c.Touch(time.Now())
}

// AsResponse returns a copy of c marked as a device acknowledgement.
func (c *ActuatorCommand) AsResponse() *ActuatorCommand {
	resp := *c
	resp.Kind = KindActuatorResponse
	resp.IsResponse = true
	resp.Touch(time.Now())
	return &resp
}

// PerformanceSample carries host utilisation figures in [0,1].
type PerformanceSample struct {
	Envelope
	CPUUtilization    float64 `json:"cpuUtil"`
	MemoryUtilization float64 `json:"memUtil"`
	DiskUtilization   float64 `json:"diskUtil"`
}

// NewPerformanceSample creates an empty sample stamped with the current time.
func NewPerformanceSample(name string) *PerformanceSample {
	return &PerformanceSample{Envelope: newEnvelope(KindPerformanceSample, name, TypeSystemPerformance)}
}

// SetUtilization stores all three figures and refreshes the timestamp.
func (p *PerformanceSample) SetUtilization(cpu, mem, disk float64) {
	p.CPUUtilization = cpu
	p.MemoryUtilization = mem
	p.DiskUtilization = disk
	p.Touch(time.Now())
}
