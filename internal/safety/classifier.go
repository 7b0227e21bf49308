package safety

import (
	"fmt"
	"strings"
)

// descriptionLimit caps how many violation messages are folded into the
// display description. The record always keeps the full list.
const descriptionLimit = 2

// Classify evaluates a reading against the given thresholds and returns
// the overall severity, an operator-facing description, and the full list
// of violation messages in evaluation order.
//
// Each metric rule is independent and strict: a value exactly at its
// bound does not fire. The overall level is the maximum over all fired
// rules, never downgraded by a later, less severe one.
func Classify(reading Reading, thresholds Thresholds) (Level, string, []string) {
	level := LevelNormal
	var violations []string

	if voltage, ok := reading[MetricVoltage]; ok {
		if voltage > thresholds.Voltage*1.2 {
			violations = append(violations, fmt.Sprintf("voltage too high: %.1fV > %.1fV", voltage, thresholds.Voltage*1.2))
			if voltage > thresholds.Voltage*1.3 {
				level = maxLevel(level, LevelCritical)
			} else {
				level = maxLevel(level, LevelDanger)
			}
		} else if voltage > thresholds.Voltage {
			violations = append(violations, fmt.Sprintf("voltage warning: %.1fV > %.1fV", voltage, thresholds.Voltage))
			level = maxLevel(level, LevelWarning)
		}
	}

	if current, ok := reading[MetricCurrent]; ok {
		if current > thresholds.Current*1.2 {
			violations = append(violations, fmt.Sprintf("current too high: %.1fA > %.1fA", current, thresholds.Current*1.2))
			if current > thresholds.Current*1.3 {
				level = maxLevel(level, LevelCritical)
			} else {
				level = maxLevel(level, LevelDanger)
			}
		} else if current > thresholds.Current {
			violations = append(violations, fmt.Sprintf("current warning: %.1fA > %.1fA", current, thresholds.Current))
			level = maxLevel(level, LevelWarning)
		}
	}

	if temp, ok := reading[MetricTemperature]; ok {
		if temp > thresholds.Temperature*1.1 {
			violations = append(violations, fmt.Sprintf("temperature too high: %.1f°C > %.1f°C", temp, thresholds.Temperature*1.1))
			if temp > thresholds.Temperature*1.2 {
				level = maxLevel(level, LevelCritical)
			} else {
				level = maxLevel(level, LevelDanger)
			}
		}
	}

	if charge, ok := reading[MetricCapacitorCharge]; ok {
		if charge > thresholds.CapacitorCharge {
			violations = append(violations, fmt.Sprintf("capacitor charge too high: %.2f > %.2f", charge, thresholds.CapacitorCharge))
			level = maxLevel(level, LevelDanger)
		}
	}

	if insulation, ok := reading[MetricInsulationResistance]; ok {
		if insulation < thresholds.InsulationResistance {
			violations = append(violations, fmt.Sprintf("insulation resistance too low: %.0f MΩ", insulation))
			level = maxLevel(level, LevelWarning)
		}
	}

	if ground, ok := reading[MetricGroundResistance]; ok {
		if ground > thresholds.GroundResistance {
			violations = append(violations, fmt.Sprintf("ground resistance too high: %.2f Ω", ground))
			level = maxLevel(level, LevelWarning)
		}
	}

	description := level.Label()
	if len(violations) > 0 {
		shown := violations
		if len(shown) > descriptionLimit {
			shown = shown[:descriptionLimit]
		}
		description += " - " + strings.Join(shown, ", ")
	}

	return level, description, violations
}
