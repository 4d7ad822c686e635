package sounding

import (
	"math"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

// Level is one row of a vertical profile.
type Level struct {
	Pressure      float64 // hPa
	Temperature   float64 // °C
	DewPoint      float64 // °C
	Height        float64 // m MSL
	WindSpeed     float64 // knots
	WindDirection float64 // degrees
}

// Profile is a single sounding valid at one instant.
type Profile struct {
	Station    string
	StationNum int
	Valid      time.Time
	Lead       time.Duration
	HasLead    bool
	Elevation  float64
	Levels     []Level
}

var _ timeseries.ModelTimer = Profile{}

// ValidTime returns the instant the profile applies to.
func (p Profile) ValidTime() (time.Time, bool) {
	return p.Valid, !p.Valid.IsZero()
}

// LeadTime returns the forecast horizon of the profile.
func (p Profile) LeadTime() (time.Duration, bool) {
	return p.Lead, p.HasLead
}

// usable returns levels with finite pressure, temperature, and height, in
// file order (surface first).
func (p Profile) usable() []Level {
	out := make([]Level, 0, len(p.Levels))
	for _, l := range p.Levels {
		if isFinite(l.Pressure) && isFinite(l.Temperature) && isFinite(l.Height) && l.Pressure > 0 {
			out = append(out, l)
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
