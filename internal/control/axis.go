package control

import "math"

// Controller constants
const (
	Tolerance     = 1      // dead-band in light intensity units
	IntegralLimit = 5000.0 // anti-windup clamp for the integral accumulator

	Kp = 0.02
	Kd = 0.06
	Ki = 0.0005
)

// Orientation is the sign applied to a correction before it is added to the angle.
// The vertical servo is mounted so that a positive error must decrease its angle.
type Orientation int

const (
	Horizontal Orientation = 1
	Vertical   Orientation = -1
)

// AxisLimits is the mechanical travel range of one axis in degrees
type AxisLimits struct {
	Min int `json:"min" mapstructure:"min"`
	Max int `json:"max" mapstructure:"max"`
}

// Mid returns the midpoint of the range
func (l AxisLimits) Mid() int {
	return l.Min + (l.Max-l.Min)/2
}

// Clamp bounds an angle to the range
func (l AxisLimits) Clamp(angle int) int {
	if angle < l.Min {
		return l.Min
	}
	if angle > l.Max {
		return l.Max
	}
	return angle
}

// Valid reports whether Min < Max
func (l AxisLimits) Valid() bool {
	return l.Min < l.Max
}

// AxisState is the error history kept for one axis between samples
type AxisState struct {
	PrevError float64 `json:"prev_error"`
	Integral  float64 `json:"integral"`
}

// AxisInput is everything one correction step needs
type AxisInput struct {
	Error       int // difference between the two opposing sensor-pair averages
	Current     int // angle reported by the device
	State       AxisState
	Limits      AxisLimits
	AtLimit     bool // actuator reports it is resting on a hard stop
	LimitSide   int  // +1 when the stop is the max limit, -1 when it is the min limit
	Orientation Orientation
}

// AxisResult is the outcome of one correction step
type AxisResult struct {
	Angle      int
	State      AxisState
	Correction float64
	Moved      bool
}

// StepAxis runs one PID-like correction step for a single axis.
// It is a pure function: the returned State replaces the caller's state.
func StepAxis(in AxisInput) AxisResult {
	result := AxisResult{
		Angle: in.Limits.Clamp(in.Current),
		State: in.State,
	}

	e := float64(in.Error)
	absErr := math.Abs(e)
	if absErr <= Tolerance {
		result.Moved = result.Angle != in.Current
		return result
	}

	direction := int(in.Orientation)
	if e < 0 {
		direction = -direction
	}
	if in.AtLimit && direction == in.LimitSide {
		result.Moved = result.Angle != in.Current
		return result
	}

	derivative := e - in.State.PrevError
	integral := clampFloat(in.State.Integral+e, -IntegralLimit, IntegralLimit)

	correction := Kp*e + Kd*derivative + Ki*integral
	maxStep := stepCap(absErr)
	correction = clampFloat(correction, -maxStep, maxStep)

	step := int(correction) // truncates toward zero
	angle := in.Current + int(in.Orientation)*step

	result.Angle = in.Limits.Clamp(angle)
	result.Correction = correction
	result.Moved = result.Angle != in.Current
	result.State = AxisState{PrevError: e, Integral: integral}
	return result
}

// stepCap maps the error magnitude to the largest step allowed this cycle
func stepCap(absErr float64) float64 {
	switch {
	case absErr > 1200:
		return 10
	case absErr > 600:
		return 8
	case absErr > 250:
		return 6
	case absErr > 80:
		return 4
	case absErr > Tolerance:
		return 2
	default:
		return 0
	}
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
