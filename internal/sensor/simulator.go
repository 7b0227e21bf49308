// Package sensor supplies readings for the safety check path. The
// production acquisition layer implements Source; Simulator is the
// synthetic stand-in used in simulation mode and in tests.
package sensor

import (
	"math"
	"math/rand"
	"sync"

	"empulse-control/internal/safety"
)

// Source pulls one reading per safety check. Implementations must have
// bounded latency; a source that blocks indefinitely stalls the control
// loop.
type Source interface {
	Generate() (safety.Reading, error)
}

// Simulator produces plausible apparatus readings: a slow sinusoidal
// drift on the voltage channel plus uniform jitter on every metric.
type Simulator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	timeFactor float64
}

func NewSimulator(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

func (s *Simulator) Generate() (safety.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeFactor += 0.1
	drift := math.Sin(s.timeFactor)*0.3 + 0.7

	return safety.Reading{
		safety.MetricVoltage:              800 + s.uniform(-50, 50) + drift*200,
		safety.MetricCurrent:              30 + s.uniform(-5, 5),
		safety.MetricTemperature:          60 + s.uniform(-5, 5),
		safety.MetricCapacitorCharge:      0.7 + s.uniform(-0.1, 0.1),
		safety.MetricDischargeRate:        3.0 + s.uniform(-1, 1),
		safety.MetricInsulationResistance: 1000 + s.uniform(-100, 100),
		safety.MetricGroundResistance:     0.1 + s.uniform(-0.05, 0.05),
	}, nil
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Waveform synthesizes a noisy sine over a 10-unit time span, matching
// the shape of signals captured from the apparatus.
func (s *Simulator) Waveform(length int, frequency, amplitude, noiseLevel float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if length <= 0 {
		return nil
	}
	wave := make([]float64, length)
	for i := range wave {
		t := 10 * float64(i) / float64(length)
		wave[i] = amplitude*math.Sin(2*math.Pi*frequency*t) + noiseLevel*s.rng.NormFloat64()
	}
	return wave
}
