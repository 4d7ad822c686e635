package sounding

import (
	"math"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

const (
	gravity      = 9.80665 // m/s²
	kappa        = 0.2857  // Rd/cp
	celsiusToK   = 273.15
	knotsToMS    = 0.514444
	topPressure  = 500.0 // hPa
	mixingDepthM = 500.0
)

// AnalyzedData holds the derived parameters of one profile.
type AnalyzedData struct {
	Valid     time.Time
	LeadHours int
	HDW       float64
	T0        float64
	DT0       float64
	E0        float64
	DE        float64
}

var _ timeseries.ModelTimer = AnalyzedData{}

func (a AnalyzedData) ValidTime() (time.Time, bool) {
	return a.Valid, !a.Valid.IsZero()
}

func (a AnalyzedData) LeadTime() (time.Duration, bool) {
	return time.Duration(a.LeadHours) * time.Hour, a.LeadHours >= 0
}

// Analyze derives the fire weather parameters of p. It reports false only
// when p lacks a valid or lead time; parameters that cannot be computed from
// the available levels are NaN.
func Analyze(p Profile) (AnalyzedData, bool) {
	valid, ok := p.ValidTime()
	if !ok {
		return AnalyzedData{}, false
	}
	lead, ok := p.LeadTime()
	if !ok {
		return AnalyzedData{}, false
	}

	levels := p.usable()
	a := AnalyzedData{
		Valid:     valid,
		LeadHours: int(lead / time.Hour),
		HDW:       HotDryWindy(levels),
		T0:        math.NaN(),
		DT0:       math.NaN(),
		E0:        math.NaN(),
		DE:        math.NaN(),
	}
	if len(levels) < 2 {
		return a, true
	}

	sfc := levels[0]
	a.E0 = buoyantEnergy(levels, potentialTemperature(sfc.Temperature, sfc.Pressure))
	a.DE = buoyantEnergy(levels, potentialTemperature(sfc.Temperature+1, sfc.Pressure)) - a.E0

	maxTheta := math.Inf(-1)
	for _, l := range levels {
		if l.Pressure < topPressure {
			break
		}
		maxTheta = math.Max(maxTheta, potentialTemperature(l.Temperature, l.Pressure))
	}
	a.T0 = maxTheta*math.Pow(sfc.Pressure/1000, kappa) - celsiusToK
	a.DT0 = math.Max(a.T0-sfc.Temperature, 0)
	return a, true
}

// HotDryWindy is the Hot-Dry-Windy index: the product of the maximum vapor
// pressure deficit (hPa) and maximum wind speed (m/s) in the lowest 500 m
// above the first level. NaN when either factor is unavailable.
func HotDryWindy(levels []Level) float64 {
	if len(levels) == 0 {
		return math.NaN()
	}
	base := levels[0].Height
	maxVPD, maxWind := math.NaN(), math.NaN()
	for _, l := range levels {
		if l.Height-base > mixingDepthM {
			break
		}
		if isFinite(l.DewPoint) {
			vpd := vaporPressure(l.Temperature) - vaporPressure(l.DewPoint)
			if math.IsNaN(maxVPD) || vpd > maxVPD {
				maxVPD = vpd
			}
		}
		if isFinite(l.WindSpeed) {
			ws := l.WindSpeed * knotsToMS
			if math.IsNaN(maxWind) || ws > maxWind {
				maxWind = ws
			}
		}
	}
	return maxVPD * maxWind
}

// vaporPressure is the saturation vapor pressure (hPa) over water (Bolton 1980).
func vaporPressure(tC float64) float64 {
	return 6.112 * math.Exp(17.67*tC/(tC+243.5))
}

// potentialTemperature returns θ in kelvin.
func potentialTemperature(tC, p float64) float64 {
	return (tC + celsiusToK) * math.Pow(1000/p, kappa)
}

// buoyantEnergy integrates the positive buoyancy (J/kg) of a parcel with
// constant potential temperature theta from the first level to 500 hPa.
func buoyantEnergy(levels []Level, theta float64) float64 {
	var energy float64
	for i := 0; i+1 < len(levels); i++ {
		lo, hi := levels[i], levels[i+1]
		if hi.Pressure < topPressure {
			break
		}
		env := (potentialTemperature(lo.Temperature, lo.Pressure) +
			potentialTemperature(hi.Temperature, hi.Pressure)) / 2
		if b := gravity * (theta - env) / env; b > 0 {
			energy += b * (hi.Height - lo.Height)
		}
	}
	return energy
}
