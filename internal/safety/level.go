package safety

import (
	"encoding/json"
	"fmt"
)

// Level is an ordered severity classification of a sensor reading.
// Higher values are more severe; aggregation across rules always keeps
// the maximum.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelDanger
	LevelCritical
)

var levelNames = map[Level]string{
	LevelNormal:   "normal",
	LevelWarning:  "warning",
	LevelDanger:   "danger",
	LevelCritical: "critical",
}

var levelLabels = map[Level]string{
	LevelNormal:   "\U0001F7E2 Normal",
	LevelWarning:  "\U0001F7E1 Warning",
	LevelDanger:   "\U0001F534 Danger",
	LevelCritical: "⛔ Critical",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Label returns the operator-facing display label for the level.
func (l Level) Label() string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return levelLabels[LevelNormal]
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func ParseLevel(name string) (Level, error) {
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return LevelNormal, fmt.Errorf("unknown safety level %q", name)
}

func maxLevel(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}
