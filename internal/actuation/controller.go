package actuation

import (
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
)

// State is a snapshot of the controller's internal state.
type State struct {
	PendingExceptionSince *time.Time
	LastObservedReading   *envelope.SensorReading
	LastKnownCommand      envelope.Command
	ActiveCommand         *envelope.ActuatorCommand
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the wall clock used to stamp commands and to
// replace unparsable reading timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller evaluates humidity readings against the hysteresis band.
type Controller struct {
	params Params
	window time.Duration
	state  State
	now    func() time.Time
}

// NewController creates a controller. Invalid parameters are replaced with
// defaults; use Params.Normalize beforehand to inspect substitutions.
//
// Parameters:
//   - p: Thresholds, exception window and actuator labels
//   - opts: Optional overrides (clock)
//
// Returns:
//   - *Controller: Controller in the initial OFF state
func NewController(p Params, opts ...Option) *Controller {
	p, _ = p.Normalize()
	c := &Controller{
		params: p,
		window: time.Duration(p.MaxExceptionWindowSeconds) * time.Second,
		state:  State{LastKnownCommand: envelope.CommandOff},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Params returns the effective (normalised) parameters.
func (c *Controller) Params() Params {
	return c.params
}

// State returns a deep copy of the current state.
func (c *Controller) State() State {
	s := State{LastKnownCommand: c.state.LastKnownCommand}
	if c.state.PendingExceptionSince != nil {
		t := *c.state.PendingExceptionSince
		s.PendingExceptionSince = &t
	}
	if c.state.LastObservedReading != nil {
		r := *c.state.LastObservedReading
		s.LastObservedReading = &r
	}
	if c.state.ActiveCommand != nil {
		cmd := *c.state.ActiveCommand
		s.ActiveCommand = &cmd
	}
	return s
}

// Evaluate feeds one reading through the policy and returns the command to
// emit, or nil when no action is needed. The returned command is a fresh
// copy owned by the caller.
func (c *Controller) Evaluate(r *envelope.SensorReading) *envelope.ActuatorCommand {
	if r == nil {
		return nil
	}
	if r.Value < c.params.Floor || r.Value > c.params.Ceiling {
		return c.evaluateOutOfRange(r)
	}
	return c.evaluateInRange(r.Value)
}

func (c *Controller) evaluateInRange(v float64) *envelope.ActuatorCommand {
	switch {
	case c.state.LastKnownCommand == envelope.CommandOff:
		// Humidifier is off and conditions are nominal: nothing is pending
		// and an earlier OFF has settled.
		c.state.PendingExceptionSince = nil
		c.state.LastObservedReading = nil
		c.state.ActiveCommand = nil
		return nil

	case c.state.ActiveCommand != nil && v >= c.params.Nominal:
		cmd := c.newCommand(envelope.CommandOff)
		c.reset()
		return cmd

	default:
		// Still ramping toward nominal while ON.
		return nil
	}
}

func (c *Controller) evaluateOutOfRange(r *envelope.SensorReading) *envelope.ActuatorCommand {
	ts := c.readingTime(r)

	if c.state.PendingExceptionSince == nil {
		reading := *r
		c.state.PendingExceptionSince = &ts
		c.state.LastObservedReading = &reading
		return nil
	}

	if ts.Sub(*c.state.PendingExceptionSince) < c.window {
		return nil
	}

	want := envelope.CommandOff
	if r.Value < c.params.Floor {
		want = envelope.CommandOn
	}

	c.state.PendingExceptionSince = nil
	c.state.LastObservedReading = nil

	// The command already in effect is not re-sent for a repeated excursion
	// in the same direction.
	if c.state.ActiveCommand != nil && c.state.LastKnownCommand == want {
		return nil
	}

	cmd := c.newCommand(want)
	active := *cmd
	c.state.ActiveCommand = &active
	c.state.LastKnownCommand = want
	return cmd
}

func (c *Controller) reset() {
	c.state = State{LastKnownCommand: envelope.CommandOff}
}

func (c *Controller) readingTime(r *envelope.SensorReading) time.Time {
	if ts, err := r.Time(); err == nil {
		return ts
	}
	return c.now()
}

func (c *Controller) newCommand(cmd envelope.Command) *envelope.ActuatorCommand {
	out := &envelope.ActuatorCommand{
		Envelope: envelope.Envelope{
			Kind:       envelope.KindActuatorCommand,
			Name:       c.params.ActuatorName,
			LocationID: c.params.LocationID,
			TypeID:     c.params.ActuatorTypeID,
			Value:      c.params.Nominal,
		},
		Command: cmd,
	}
	out.Touch(c.now())
	return out
}
