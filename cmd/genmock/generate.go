package main

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/sounding-graphs/internal/climo"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/sounding"
)

const (
	cycleInterval = 6 * time.Hour
	stepHours     = 3
)

var pressureLevels = []float64{850, 800, 750, 700, 650, 600, 550, 500, 450, 400, 350, 300}

// cycles lists model init times from start through ref on cycleInterval.
func cycles(_ domain.Model, start, ref time.Time) []time.Time {
	var out []time.Time
	for t := start.UTC().Truncate(cycleInterval); !t.After(ref); t = t.Add(cycleInterval) {
		if !t.Before(start) {
			out = append(out, t)
		}
	}
	return out
}

// generateRun builds one profile every stepHours through the model horizon.
// Temperatures follow a diurnal cycle peaking at 22Z with random run bias.
func generateRun(site domain.Site, model domain.Model, init time.Time, rng *rand.Rand) []sounding.Profile {
	elevation := 950 + float64(len(site.ID)*37%400)
	surfaceP := 1013.25 * math.Exp(-elevation/8400)
	bias := rng.NormFloat64() * 1.5

	hours := int(model.Horizon().Hours())
	profiles := make([]sounding.Profile, 0, hours/stepHours+1)
	for h := 0; h <= hours; h += stepHours {
		valid := init.Add(time.Duration(h) * time.Hour)
		diurnal := math.Cos(2 * math.Pi * float64(valid.Hour()-22) / 24)
		sfcT := 18 + 9*diurnal + bias + rng.NormFloat64()*0.5
		depression := 12 + 8*diurnal + rng.Float64()*3
		wind := 8 + 6*diurnal + rng.Float64()*4

		levels := []sounding.Level{level(surfaceP, elevation, surfaceP, sfcT, depression, wind)}
		for _, p := range pressureLevels {
			if p >= surfaceP {
				continue
			}
			levels = append(levels, level(p, elevation, surfaceP, sfcT, depression, wind))
		}

		profiles = append(profiles, sounding.Profile{
			Station:    site.ID,
			StationNum: site.StationNum,
			Valid:      valid,
			Lead:       time.Duration(h) * time.Hour,
			HasLead:    true,
			Elevation:  elevation,
			Levels:     levels,
		})
	}
	return profiles
}

// level derives a level at pressure p from surface conditions with a
// standard lapse rate.
func level(p, elevation, surfaceP, sfcT, depression, wind float64) sounding.Level {
	height := elevation + 8400*math.Log(surfaceP/p)
	above := (height - elevation) / 1000
	t := sfcT - 6.5*above
	return sounding.Level{
		Pressure:      round(p),
		Temperature:   round(t),
		DewPoint:      round(t - depression - 2*above),
		Height:        round(height),
		WindSpeed:     round(wind + 4*above),
		WindDirection: round(math.Mod(240+10*above, 360)),
	}
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// hdwDeciles returns a plausible HDW distribution for t, higher in the
// afternoon and in late summer.
func hdwDeciles(t time.Time) climo.Deciles {
	diurnal := 1 + 0.6*math.Cos(2*math.Pi*float64(t.UTC().Hour()-22)/24)
	seasonal := 1 + 0.5*math.Cos(2*math.Pi*float64(t.UTC().YearDay()-220)/365)
	var d climo.Deciles
	for i := range d {
		d[i] = round(float64(i+1) * 12 * diurnal * seasonal)
	}
	return d
}
