package logic

// MapRange linearly maps x from [inMin, inMax] onto [outMin, outMax].
// The result is NaN or ±Inf when inMin == inMax; callers pass distinct bounds.
func MapRange(x, inMin, inMax, outMin, outMax float64) float64 {
	return outMin + (x-inMin)*(outMax-outMin)/(inMax-inMin)
}

// Default servo pulse bounds in microseconds for 0° and 180°.
const (
	DefaultMinPulseUs = 600.0
	DefaultMaxPulseUs = 2400.0
)

// PulseRange maps servo degrees onto pulse widths.
type PulseRange struct {
	MinUs float64 // pulse at 0°
	MaxUs float64 // pulse at MaxAngle
}

// DefaultPulseRange returns the 600..2400 µs range of a typical hobby servo.
func DefaultPulseRange() PulseRange {
	return PulseRange{MinUs: DefaultMinPulseUs, MaxUs: DefaultMaxPulseUs}
}

// Pulse returns the pulse width in microseconds for deg. Degrees outside
// [0, MaxAngle] extrapolate; nothing is clamped here.
func (r PulseRange) Pulse(deg float64) float64 {
	return MapRange(deg, 0, MaxAngle, r.MinUs, r.MaxUs)
}
