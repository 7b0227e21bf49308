// Package waveform adapts the output waveform toward operator-specified
// target specs by ranking candidates from a generative collaborator,
// with a sequence predictor consulted for a forward trend side-signal.
package waveform

import (
	"errors"
	"log/slog"

	"empulse-control/internal/forecast"
)

const DefaultCandidateCount = 100

var ErrNoCandidates = errors.New("waveform: generator returned no candidates")

type Controller struct {
	predictor  forecast.Predictor
	generator  forecast.Generator
	candidates int
	logger     *slog.Logger
}

func NewController(predictor forecast.Predictor, generator forecast.Generator, candidates int, logger *slog.Logger) *Controller {
	if candidates <= 0 {
		candidates = DefaultCandidateCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		predictor:  predictor,
		generator:  generator,
		candidates: candidates,
		logger:     logger,
	}
}

// Adapt returns the best-scoring candidate for the target spec. When the
// current waveform carries at least one full predictor window, the
// forward trend is computed as a side signal; a predictor failure only
// degrades observability and never fails the adaptation.
func (c *Controller) Adapt(current []float64, target TargetSpec) ([]float64, error) {
	if window := c.predictor.Window(); len(current) >= window {
		trend, err := c.predictor.Predict(current[len(current)-window:])
		if err != nil {
			c.logger.Debug("trend prediction unavailable", slog.String("error", err.Error()))
		} else if len(trend) > 0 {
			c.logger.Debug("forward trend computed",
				slog.Int("horizon", len(trend)),
				slog.Float64("next", trend[0]),
			)
		}
	}

	candidates, err := c.generator.Generate(c.candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	bestIdx := 0
	bestScore := Score(candidates[0], target)
	for i := 1; i < len(candidates); i++ {
		if score := Score(candidates[i], target); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	best := make([]float64, len(candidates[bestIdx]))
	copy(best, candidates[bestIdx])
	return best, nil
}
