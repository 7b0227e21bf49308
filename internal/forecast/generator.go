package forecast

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

const DefaultWaveformLength = 100

// Generator proposes candidate waveforms of a fixed length.
type Generator interface {
	Length() int
	Generate(count int) ([][]float64, error)
}

// HarmonicGenerator synthesizes tanh-bounded two-harmonic waveforms with
// randomized frequency, amplitude and phase. It stands in for a trained
// generative model while honoring the same contract.
type HarmonicGenerator struct {
	mu     sync.Mutex
	length int
	rng    *rand.Rand
}

func NewHarmonicGenerator(length int, seed int64) *HarmonicGenerator {
	if length <= 0 {
		length = DefaultWaveformLength
	}
	return &HarmonicGenerator{length: length, rng: rand.New(rand.NewSource(seed))}
}

func (g *HarmonicGenerator) Length() int { return g.length }

func (g *HarmonicGenerator) Generate(count int) ([][]float64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("forecast: candidate count must be positive, got %d", count)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	waves := make([][]float64, count)
	for w := range waves {
		// cycles per sample, kept under Nyquist
		freq := 0.02 + g.rng.Float64()*0.38
		amplitude := 0.3 + g.rng.Float64()*0.7
		phase := g.rng.Float64() * 2 * math.Pi
		overtone := amplitude * 0.2 * g.rng.Float64()

		wave := make([]float64, g.length)
		for i := range wave {
			x := 2 * math.Pi * freq * float64(i)
			raw := amplitude*math.Sin(x+phase) + overtone*math.Sin(2*x) + 0.02*g.rng.NormFloat64()
			wave[i] = math.Tanh(raw)
		}
		waves[w] = wave
	}
	return waves, nil
}
