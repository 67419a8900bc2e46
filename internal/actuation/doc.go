// Package actuation implements the humidity hysteresis controller that
// decides when the gateway turns the humidifier ON or OFF.
//
// The controller watches one physical quantity and drives one actuator.
// It keeps two policy states layered over the binary actuator state:
//
//	NOMINAL-TRACKING   readings inside [floor, ceiling]
//	EXCEPTION-PENDING  an out-of-range excursion is being debounced
//
// A single out-of-range reading only arms the exception window. A command
// is emitted once the excursion has lasted at least the configured window
// (ON below the floor, OFF above the ceiling), always targeting the nominal
// set-point. While ON, the first in-range reading at or above nominal
// emits the OFF command that completes the transition and resets all state.
//
// All mutation happens inside Evaluate. A Controller is not safe for
// concurrent use; the hub serialises calls per sensor/actuator pair.
package actuation
