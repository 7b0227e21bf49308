package safety

import (
	"fmt"
	"sync"
)

// Thresholds holds the operator-tunable limits used to classify a reading.
// Units: voltage V, current A, temperature °C, capacitor charge fraction,
// discharge rate kA/s, insulation resistance MΩ, ground resistance Ω.
type Thresholds struct {
	Voltage              float64 `json:"voltage" yaml:"voltage"`
	Current              float64 `json:"current" yaml:"current"`
	Temperature          float64 `json:"temperature" yaml:"temperature"`
	CapacitorCharge      float64 `json:"capacitor_charge" yaml:"capacitor_charge"`
	DischargeRate        float64 `json:"discharge_rate" yaml:"discharge_rate"`
	InsulationResistance float64 `json:"insulation_resistance" yaml:"insulation_resistance"`
	GroundResistance     float64 `json:"ground_resistance" yaml:"ground_resistance"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Voltage:              1000.0,
		Current:              50.0,
		Temperature:          85.0,
		CapacitorCharge:      0.9,
		DischargeRate:        5.0,
		InsulationResistance: 200.0,
		GroundResistance:     1.0,
	}
}

func (t Thresholds) Validate() error {
	limits := map[string]float64{
		MetricVoltage:              t.Voltage,
		MetricCurrent:              t.Current,
		MetricTemperature:          t.Temperature,
		MetricCapacitorCharge:      t.CapacitorCharge,
		MetricDischargeRate:        t.DischargeRate,
		MetricInsulationResistance: t.InsulationResistance,
		MetricGroundResistance:     t.GroundResistance,
	}
	for name, limit := range limits {
		if limit <= 0 {
			return fmt.Errorf("threshold %s must be positive, got %v", name, limit)
		}
	}
	return nil
}

// ThresholdPatch carries a partial threshold update; nil fields keep the
// current value.
type ThresholdPatch struct {
	Voltage              *float64 `json:"voltage,omitempty"`
	Current              *float64 `json:"current,omitempty"`
	Temperature          *float64 `json:"temperature,omitempty"`
	CapacitorCharge      *float64 `json:"capacitor_charge,omitempty"`
	DischargeRate        *float64 `json:"discharge_rate,omitempty"`
	InsulationResistance *float64 `json:"insulation_resistance,omitempty"`
	GroundResistance     *float64 `json:"ground_resistance,omitempty"`
}

// ThresholdStore serializes threshold reads and updates. Every
// classification snapshots the current values, so an update takes effect
// on the next check, never retroactively.
type ThresholdStore struct {
	mu      sync.RWMutex
	current Thresholds
}

func NewThresholdStore(t Thresholds) (*ThresholdStore, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &ThresholdStore{current: t}, nil
}

func (s *ThresholdStore) Snapshot() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *ThresholdStore) Update(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	return nil
}

// Merge applies a partial update and returns the resulting thresholds.
func (s *ThresholdStore) Merge(patch ThresholdPatch) (Thresholds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	if patch.Voltage != nil {
		next.Voltage = *patch.Voltage
	}
	if patch.Current != nil {
		next.Current = *patch.Current
	}
	if patch.Temperature != nil {
		next.Temperature = *patch.Temperature
	}
	if patch.CapacitorCharge != nil {
		next.CapacitorCharge = *patch.CapacitorCharge
	}
	if patch.DischargeRate != nil {
		next.DischargeRate = *patch.DischargeRate
	}
	if patch.InsulationResistance != nil {
		next.InsulationResistance = *patch.InsulationResistance
	}
	if patch.GroundResistance != nil {
		next.GroundResistance = *patch.GroundResistance
	}
	if err := next.Validate(); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}
