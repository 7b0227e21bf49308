package safety

// Metric names as reported by the acquisition layer. A reading may carry
// any subset; rules for absent metrics are skipped.
const (
	MetricVoltage              = "voltage"
	MetricCurrent              = "current"
	MetricTemperature          = "temperature"
	MetricCapacitorCharge      = "capacitor_charge"
	MetricDischargeRate        = "discharge_rate"
	MetricInsulationResistance = "insulation_resistance"
	MetricGroundResistance     = "ground_resistance"
)

// Reading maps metric names to instantaneous values. Callers must not
// feed non-finite values.
type Reading map[string]float64

func (r Reading) Clone() Reading {
	if r == nil {
		return nil
	}
	out := make(Reading, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
