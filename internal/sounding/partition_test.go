package sounding

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// moistProfile saturates a few hundred meters above a warm, humid surface.
func moistProfile() Profile {
	return Profile{
		Station: "KTOP",
		Valid:   time.Date(2017, 7, 14, 21, 0, 0, 0, time.UTC),
		Lead:    9 * time.Hour,
		HasLead: true,
		Levels: []Level{
			{Pressure: 1000, Temperature: 30, DewPoint: 22, Height: 100},
			{Pressure: 850, Temperature: 14, DewPoint: 10, Height: 1500},
			{Pressure: 700, Temperature: 2, DewPoint: -4, Height: 3100},
			{Pressure: 500, Temperature: -18, DewPoint: -30, Height: 5800},
			{Pressure: 300, Temperature: -45, DewPoint: -60, Height: 9400},
		},
	}
}

// dryProfile stops at 500 hPa, well below the condensation level of its
// very dry surface parcel.
func dryProfile() Profile {
	p := stableProfile(20)
	p.Levels = p.Levels[:4]
	p.Levels[0].DewPoint = -40
	return p
}

func TestAnalyzeCapePartitions_Steps(t *testing.T) {
	p := stableProfile(20)
	parts, ok := AnalyzeCapePartitions(p)
	require.True(t, ok)
	require.Len(t, parts, HeatMapSteps+1)

	assert.InDelta(t, 0.0, parts[0].DT, 1e-12)
	assert.InDelta(t, 1.0, parts[4].DT, 1e-12)
	assert.InDelta(t, MaxWarming, parts[HeatMapSteps].DT, 1e-12)
	for _, cp := range parts {
		assert.Equal(t, p.Valid, cp.Valid)
	}

	valid, ok := parts.ValidTime()
	require.True(t, ok)
	assert.Equal(t, p.Valid, valid)
}

func TestAnalyzeCapePartitions_DryEnergyGrowsWithWarming(t *testing.T) {
	profiles := map[string]Profile{
		"stable": stableProfile(20),
		"moist":  moistProfile(),
		"dry":    dryProfile(),
	}
	for name, p := range profiles {
		t.Run(name, func(t *testing.T) {
			parts, ok := AnalyzeCapePartitions(p)
			require.True(t, ok)
			for i := 1; i < len(parts); i++ {
				assert.GreaterOrEqual(t, parts[i].Dry, parts[i-1].Dry, "dT %.2f", parts[i].DT)
			}
		})
	}
}

func TestAnalyzeCapePartitions_DryColumn(t *testing.T) {
	parts, ok := AnalyzeCapePartitions(dryProfile())
	require.True(t, ok)

	for _, cp := range parts {
		assert.InDelta(t, 0.0, cp.Wet, 1e-12, "dT %.2f", cp.DT)
	}
	assert.InDelta(t, 0.0, parts[0].Dry, 1e-12, "unwarmed parcel is cooler than the column")
	assert.Greater(t, parts[HeatMapSteps].Dry, 0.0)
}

func TestAnalyzeCapePartitions_SaturatedAloft(t *testing.T) {
	parts, ok := AnalyzeCapePartitions(moistProfile())
	require.True(t, ok)

	assert.InDelta(t, 0.0, parts[0].Dry, 1e-12, "first layer already reaches the LCL")
	assert.Greater(t, parts[0].Wet, 0.0)
}

func TestAnalyzeCapePartitions_MissingInputs(t *testing.T) {
	noDew := stableProfile(20)
	noDew.Levels[0].DewPoint = math.NaN()
	parts, ok := AnalyzeCapePartitions(noDew)
	require.True(t, ok)
	for _, cp := range parts {
		assert.True(t, math.IsNaN(cp.Dry))
		assert.True(t, math.IsNaN(cp.Wet))
	}

	single := stableProfile(20)
	single.Levels = single.Levels[:1]
	_, ok = AnalyzeCapePartitions(single)
	assert.False(t, ok)

	noValid := stableProfile(20)
	noValid.Valid = time.Time{}
	_, ok = AnalyzeCapePartitions(noValid)
	assert.False(t, ok)

	var empty CapePartitions
	_, ok = empty.ValidTime()
	assert.False(t, ok)
}

func TestMoistLapseRate(t *testing.T) {
	warm := moistLapseRate(20, 900)
	assert.Greater(t, warm, 0.003)
	assert.Less(t, warm, 0.006)

	cold := moistLapseRate(-40, 300)
	assert.Greater(t, cold, 0.008)
	assert.Less(t, cold, gravity/specHeat)
}
