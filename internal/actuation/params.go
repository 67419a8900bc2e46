package actuation

import "github.com/nerrad567/gray-logic-gateway/internal/envelope"

// Default controller parameters.
const (
	DefaultFloor   = 30.0
	DefaultCeiling = 50.0
	DefaultNominal = 40.0

	DefaultExceptionWindowSeconds = 300
	MinExceptionWindowSeconds     = 10
	MaxExceptionWindowSeconds     = 7200

	DefaultActuatorName = "HumidifierActuator"
)

// Params configures a Controller. Values are fixed for the controller's
// lifetime.
type Params struct {
	// Floor is the low threshold. Readings strictly below it are out of range.
	Floor float64

	// Ceiling is the high threshold. Readings strictly above it are out of range.
	Ceiling float64

	// Nominal is the set-point carried by every emitted command.
	// Must satisfy Floor < Nominal < Ceiling.
	Nominal float64

	// MaxExceptionWindowSeconds is how long an excursion must last before
	// a command is emitted. Valid range is [10, 7200].
	MaxExceptionWindowSeconds int

	// ActuatorName, ActuatorTypeID and LocationID label emitted commands.
	ActuatorName   string
	ActuatorTypeID int
	LocationID     string
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Floor:                     DefaultFloor,
		Ceiling:                   DefaultCeiling,
		Nominal:                   DefaultNominal,
		MaxExceptionWindowSeconds: DefaultExceptionWindowSeconds,
		ActuatorName:              DefaultActuatorName,
		ActuatorTypeID:            envelope.TypeHumidifierActuator,
	}
}

// Normalize replaces invalid values with defaults. The returned notes
// describe each substitution so the caller can log them.
func (p Params) Normalize() (Params, []string) {
	var notes []string

	if !(p.Floor < p.Nominal && p.Nominal < p.Ceiling) {
		notes = append(notes, "thresholds must satisfy floor < nominal < ceiling; using defaults 30/40/50")
		p.Floor, p.Nominal, p.Ceiling = DefaultFloor, DefaultNominal, DefaultCeiling
	}

	if p.MaxExceptionWindowSeconds < MinExceptionWindowSeconds || p.MaxExceptionWindowSeconds > MaxExceptionWindowSeconds {
		notes = append(notes, "max exception window outside [10, 7200] seconds; using default 300")
		p.MaxExceptionWindowSeconds = DefaultExceptionWindowSeconds
	}

	if p.ActuatorName == "" {
		p.ActuatorName = DefaultActuatorName
	}
	if p.ActuatorTypeID == 0 {
		p.ActuatorTypeID = envelope.TypeHumidifierActuator
	}

	return p, notes
}
