package domain

import (
	"encoding/json"
	"fmt"
)

// MappingTarget is the value side of a shape mapping: either a soil-column
// model identifier or a manually assigned numeric value. It serializes as a
// JSON string in the first case and a JSON number in the second. Callers
// inspect it through SoilModel / ManualValue rather than type-sniffing.
type MappingTarget struct {
	soilModel string
	value     float64
	manual    bool
}

// SoilTarget returns a mapping target referencing a soil-column model.
func SoilTarget(soilModelID string) MappingTarget {
	return MappingTarget{soilModel: soilModelID}
}

// ManualTarget returns a mapping target carrying a literal numeric value.
func ManualTarget(value float64) MappingTarget {
	return MappingTarget{value: value, manual: true}
}

// SoilModel reports the referenced soil-column model id, if any.
func (t MappingTarget) SoilModel() (string, bool) {
	if t.manual {
		return "", false
	}
	return t.soilModel, true
}

// ManualValue reports the literal numeric value, if any.
func (t MappingTarget) ManualValue() (float64, bool) {
	if !t.manual {
		return 0, false
	}
	return t.value, true
}

// MarshalJSON encodes the target as a bare string or number.
func (t MappingTarget) MarshalJSON() ([]byte, error) {
	if t.manual {
		return json.Marshal(t.value)
	}
	return json.Marshal(t.soilModel)
}

// UnmarshalJSON decodes either representation.
func (t *MappingTarget) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*t = SoilTarget(id)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("mapping target must be a string or a number: %w", err)
	}
	*t = ManualTarget(v)
	return nil
}
