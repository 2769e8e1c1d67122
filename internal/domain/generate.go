package domain

import (
	"math"
	"math/rand/v2"
	"time"
)

// Synthetic telemetry parameters.
const (
	meanWindSpeed        = 8.0
	windSpeedStdDev      = 3.0
	minAmbientTemp       = 15.0
	maxAmbientTemp       = 35.0
	maxPower             = 3000.0
	windPowerFactor      = 1.5
	powerVariationFactor = 0.05
)

// SampleInterval is the raw series resolution.
const SampleInterval = time.Minute

// Generator produces synthetic minute telemetry for seeding the source store.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator driven by rng. A nil rng uses a
// randomly seeded source.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// Generate returns one fully populated sample per minute in [start, end).
func (g *Generator) Generate(start, end time.Time) []RawSample {
	start = start.UTC().Truncate(SampleInterval)
	if !end.After(start) {
		return nil
	}
	out := make([]RawSample, 0, int(end.Sub(start)/SampleInterval))
	for ts := start; ts.Before(end); ts = ts.Add(SampleInterval) {
		out = append(out, g.sample(ts))
	}
	return out
}

func (g *Generator) sample(ts time.Time) RawSample {
	ws := math.Max(0, g.gauss(meanWindSpeed, windSpeedStdDev))
	temp := minAmbientTemp + g.rng.Float64()*(maxAmbientTemp-minAmbientTemp)
	base := math.Min(maxPower, math.Pow(ws, 3)*windPowerFactor)
	power := math.Max(0, g.gauss(base, base*powerVariationFactor))

	return RawSample{
		Timestamp: ts,
		Values: map[Variable]Reading{
			WindSpeed:          Present(ws),
			Power:              Present(power),
			AmbientTemperature: Present(temp),
		},
	}
}

func (g *Generator) gauss(mean, stddev float64) float64 {
	return mean + g.rng.NormFloat64()*stddev
}

// SeedRange returns the seeding interval: the given number of whole days
// ending at the current minute.
func SeedRange(days int) (time.Time, time.Time) {
	end := Now().Truncate(SampleInterval)
	return end.Add(-time.Duration(days) * 24 * time.Hour), end
}
