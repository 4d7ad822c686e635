package sounding

import (
	"math"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/timeseries"
)

const (
	// HeatMapSteps is the number of warming increments between 0 and
	// MaxWarming; partitions are computed at HeatMapSteps+1 values of DT.
	HeatMapSteps = 60
	// MaxWarming is the largest surface warming (°C) considered.
	MaxWarming = 15.0

	epsilon     = 0.622   // Rd/Rv
	latentHeat  = 2.501e6 // J/kg
	gasConstant = 287.04  // J/(kg K), dry air
	specHeat    = 1005.7  // J/(kg K), dry air at constant pressure
	moistStepM  = 100.0
)

// CapePartition splits the positive buoyant energy (J/kg) of the surface
// parcel warmed by DT °C into the part gained below its lifting condensation
// level (Dry) and above it (Wet).
type CapePartition struct {
	Valid time.Time
	DT    float64
	Dry   float64
	Wet   float64
}

func (c CapePartition) ValidTime() (time.Time, bool) {
	return c.Valid, !c.Valid.IsZero()
}

// CapePartitions holds the partitions of one profile in increasing DT.
type CapePartitions []CapePartition

var _ timeseries.ValidTimer = CapePartitions{}

// ValidTime is the valid time shared by every partition.
func (cs CapePartitions) ValidTime() (time.Time, bool) {
	if len(cs) == 0 {
		return time.Time{}, false
	}
	return cs[0].ValidTime()
}

// AnalyzeCapePartitions partitions the energy of the surface parcel warmed
// in steps of MaxWarming/HeatMapSteps from 0 through MaxWarming. It reports
// false when p lacks a valid time or fewer than two usable levels remain.
// Without a surface dew point every partition is NaN.
func AnalyzeCapePartitions(p Profile) (CapePartitions, bool) {
	valid, ok := p.ValidTime()
	if !ok {
		return nil, false
	}
	levels := p.usable()
	if len(levels) < 2 {
		return nil, false
	}

	parts := make(CapePartitions, 0, HeatMapSteps+1)
	for i := range HeatMapSteps + 1 {
		dt := MaxWarming / HeatMapSteps * float64(i)
		dry, wet := partitionEnergy(levels, dt)
		parts = append(parts, CapePartition{Valid: valid, DT: dt, Dry: dry, Wet: wet})
	}
	return parts, true
}

// partitionEnergy lifts the surface parcel warmed by dt dry-adiabatically to
// its lifting condensation level and pseudo-adiabatically above it. Layers
// whose top lies below the LCL count as dry.
func partitionEnergy(levels []Level, dt float64) (dry, wet float64) {
	sfc := levels[0]
	if !isFinite(sfc.DewPoint) {
		return math.NaN(), math.NaN()
	}

	t := sfc.Temperature + dt
	td := math.Min(sfc.DewPoint, t)
	tLCL := td - (0.001296*td+0.1963)*(t-td)
	pLCL := sfc.Pressure * math.Pow((tLCL+celsiusToK)/(t+celsiusToK), 1/kappa)
	theta := potentialTemperature(t, sfc.Pressure)

	parcel := t
	for i := 0; i+1 < len(levels); i++ {
		lo, hi := levels[i], levels[i+1]
		dz := hi.Height - lo.Height
		if dz <= 0 || hi.Pressure >= lo.Pressure {
			break
		}

		var next float64
		switch {
		case hi.Pressure >= pLCL:
			next = theta*math.Pow(hi.Pressure/1000, kappa) - celsiusToK
		case lo.Pressure > pLCL:
			zLCL := lo.Height + dz*math.Log(lo.Pressure/pLCL)/math.Log(lo.Pressure/hi.Pressure)
			next = liftMoist(tLCL, zLCL, pLCL, hi.Height, hi.Pressure)
		default:
			next = liftMoist(parcel, lo.Height, lo.Pressure, hi.Height, hi.Pressure)
		}

		env := (lo.Temperature+hi.Temperature)/2 + celsiusToK
		if b := gravity * ((parcel+next)/2 + celsiusToK - env) / env; b > 0 {
			if hi.Pressure >= pLCL {
				dry += b * dz
			} else {
				wet += b * dz
			}
		}
		parcel = next
	}
	return dry, wet
}

// liftMoist cools a saturated parcel at tC °C from height z0 (pressure p0)
// to z1 (p1) in steps of at most moistStepM, with pressure varying
// log-linearly in height.
func liftMoist(tC, z0, p0, z1, p1 float64) float64 {
	if z1 <= z0 {
		return tC
	}
	n := int(math.Ceil((z1 - z0) / moistStepM))
	dz := (z1 - z0) / float64(n)
	for i := range n {
		p := p0 * math.Pow(p1/p0, (float64(i)+0.5)/float64(n))
		tC -= moistLapseRate(tC, p) * dz
	}
	return tC
}

// moistLapseRate is the saturated adiabatic lapse rate (K/m) at tC and p hPa.
func moistLapseRate(tC, p float64) float64 {
	tK := tC + celsiusToK
	es := vaporPressure(tC)
	rs := epsilon * es / math.Max(p-es, 1e-3)
	numer := gravity * (1 + latentHeat*rs/(gasConstant*tK))
	denom := specHeat + latentHeat*latentHeat*rs*epsilon/(gasConstant*tK*tK)
	return numer / denom
}
