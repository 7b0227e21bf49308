package waveform

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Range is an inclusive target band for a waveform property.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) mid() float64 { return (r.Min + r.Max) / 2 }

// TargetSpec is the operator-specified target a candidate waveform is
// scored against. Nil fields are not scored; sub-scores lie in [0, 1]
// and the total is their unweighted sum, so candidates are ranked, not
// calibrated to a fixed scale.
type TargetSpec struct {
	FrequencyRange *Range `json:"frequency_range,omitempty" yaml:"frequency_range,omitempty"`
	AmplitudeRange *Range `json:"amplitude_range,omitempty" yaml:"amplitude_range,omitempty"`
	Smoothness     bool   `json:"smoothness,omitempty" yaml:"smoothness,omitempty"`
}

// Merge overlays the non-empty fields of patch onto s and returns the
// result.
func (s TargetSpec) Merge(patch TargetSpec) TargetSpec {
	out := s
	if patch.FrequencyRange != nil {
		r := *patch.FrequencyRange
		out.FrequencyRange = &r
	}
	if patch.AmplitudeRange != nil {
		r := *patch.AmplitudeRange
		out.AmplitudeRange = &r
	}
	if patch.Smoothness {
		out.Smoothness = true
	}
	return out
}

// Score rates a candidate against the target spec.
func Score(wave []float64, target TargetSpec) float64 {
	score := 0.0
	if target.FrequencyRange != nil {
		score += frequencyScore(wave, *target.FrequencyRange)
	}
	if target.AmplitudeRange != nil {
		score += amplitudeScore(wave, *target.AmplitudeRange)
	}
	if target.Smoothness {
		score += smoothnessScore(wave)
	}
	return score
}

// DominantFrequency returns the frequency, in cycles per sample, of the
// strongest spectral bin.
func DominantFrequency(wave []float64) float64 {
	if len(wave) == 0 {
		return 0
	}
	fft := fourier.NewFFT(len(wave))
	coeffs := fft.Coefficients(nil, wave)
	best := 0
	bestMag := 0.0
	for i, c := range coeffs {
		if mag := cmplxAbs(c); mag > bestMag {
			bestMag = mag
			best = i
		}
	}
	return fft.Freq(best)
}

// frequencyScore is 1.0 when the dominant bin falls inside the target
// band, decaying linearly with distance from the band midpoint.
func frequencyScore(wave []float64, band Range) float64 {
	dominant := DominantFrequency(wave)
	return bandScore(dominant, band)
}

// amplitudeScore applies the same shape to the peak absolute amplitude.
func amplitudeScore(wave []float64, band Range) float64 {
	peak := 0.0
	for _, v := range wave {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return bandScore(peak, band)
}

func bandScore(value float64, band Range) float64 {
	if value >= band.Min && value <= band.Max {
		return 1.0
	}
	mid := band.mid()
	if mid == 0 {
		return 0
	}
	return math.Max(0, 1-math.Abs(value-mid)/mid)
}

// smoothnessScore is 1/(1+stddev of the first difference), in (0, 1].
func smoothnessScore(wave []float64) float64 {
	if len(wave) < 3 {
		return 1.0
	}
	diffs := make([]float64, len(wave)-1)
	for i := range diffs {
		diffs[i] = wave[i+1] - wave[i]
	}
	return 1 / (1 + stat.StdDev(diffs, nil))
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
