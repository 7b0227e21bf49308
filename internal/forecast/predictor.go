// Package forecast provides the predictive collaborators consumed by the
// waveform controller: a fitted trend model that forecasts the next few
// samples of a signal, and a generator that proposes candidate waveforms.
package forecast

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultSequenceLength = 50
	DefaultHorizon        = 10
)

var ErrNotFitted = errors.New("forecast: model not fitted")

// Predictor forecasts a short horizon from a fixed-size input window.
type Predictor interface {
	Window() int
	Predict(window []float64) ([]float64, error)
}

// TrendPredictor extrapolates a least-squares line fitted over the input
// window. Fit establishes a residual scale from historical data and must
// be called before Predict.
type TrendPredictor struct {
	sequenceLength int
	horizon        int
	fitted         bool
	residualScale  float64
}

func NewTrendPredictor(sequenceLength, horizon int) *TrendPredictor {
	if sequenceLength <= 0 {
		sequenceLength = DefaultSequenceLength
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &TrendPredictor{sequenceLength: sequenceLength, horizon: horizon}
}

func (p *TrendPredictor) Window() int  { return p.sequenceLength }
func (p *TrendPredictor) Horizon() int { return p.horizon }

// Fit calibrates the model against historical samples. It fails on empty
// or too-short history so a malformed initialization is reported instead
// of silently producing an unusable model.
func (p *TrendPredictor) Fit(history []float64) error {
	if len(history) < p.sequenceLength {
		return fmt.Errorf("forecast: need at least %d historical samples, got %d", p.sequenceLength, len(history))
	}
	xs := make([]float64, len(history))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, history, nil, false)
	residuals := make([]float64, len(history))
	for i, v := range history {
		residuals[i] = v - (alpha + beta*xs[i])
	}
	p.residualScale = stat.StdDev(residuals, nil)
	p.fitted = true
	return nil
}

func (p *TrendPredictor) Predict(window []float64) ([]float64, error) {
	if !p.fitted {
		return nil, ErrNotFitted
	}
	if len(window) != p.sequenceLength {
		return nil, fmt.Errorf("forecast: input window must have length %d, got %d", p.sequenceLength, len(window))
	}
	xs := make([]float64, len(window))
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, window, nil, false)
	out := make([]float64, p.horizon)
	for i := range out {
		out[i] = alpha + beta*float64(len(window)+i)
	}
	return out, nil
}
