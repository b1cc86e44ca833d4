package storage

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Encode converts a domain value into document fields. The "id" key is
// dropped; ids live outside the document body.
func Encode(v any) (Fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	delete(f, "id")
	return f, nil
}

// Decode fills v from the document, including its id.
func (d Document) Decode(v any) error {
	m := make(map[string]any, len(d.Fields)+1)
	for k, val := range d.Fields {
		m[k] = val
	}
	m["id"] = d.ID
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Normalize returns the JSON form of v: string, float64, bool, nil, []any or map[string]any.
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, float64, bool:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeFields normalizes every value and rejects unusable field names.
func NormalizeFields(f Fields) (Fields, error) {
	out := make(Fields, len(f))
	for k, v := range f {
		if !ValidField(k) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, k)
		}
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}
