package domain

import "encoding/json"

// Value is a measure result. Valid is false when the measure is undefined
// for the evaluated context (zero denominator or empty row set) and renders
// as JSON null. Undefined is a value, not an error: ratio measures never
// fail on empty contexts.
type Value struct {
	Float float64
	Valid bool
}

// Number wraps a defined measure result.
func Number(f float64) Value { return Value{Float: f, Valid: true} }

// NoValue returns the "no value" sentinel.
func NoValue() Value { return Value{} }

// SafeDiv divides num by den, returning the sentinel when den is zero.
func SafeDiv(num, den float64) Value {
	if den == 0 {
		return NoValue()
	}
	return Number(num / den)
}

// MarshalJSON renders undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON accepts a JSON number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}
