package mqtt

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle limits telemetry to a steady rate. A nil or disabled Throttle
// allows nothing.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows perSecond samples per second with a burst of one.
// perSecond <= 0 disables telemetry.
func NewThrottle(perSecond float64) *Throttle {
	if perSecond <= 0 {
		return &Throttle{}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Allow reports whether a sample taken at now may be sent.
func (t *Throttle) Allow(now time.Time) bool {
	if t == nil || t.limiter == nil {
		return false
	}
	return t.limiter.AllowN(now, 1)
}
