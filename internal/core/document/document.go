package document

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Document is a single record within a collection. Data holds normalised values
// (see Normalize) keyed by field name.
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
}

// Value returns the raw value stored under field.
func (d *Document) Value(field string) (any, bool) {
	if d == nil || d.Data == nil {
		return nil, false
	}
	v, ok := d.Data[field]
	return v, ok
}

// Has reports whether field is present, including explicit nulls.
func (d *Document) Has(field string) bool {
	_, ok := d.Value(field)
	return ok
}

// String returns the string stored under field or "" when absent or of another type.
func (d *Document) String(field string) string {
	v, _ := d.Value(field)
	s, _ := v.(string)
	return s
}

// OptionalString returns nil for absent or null fields.
func (d *Document) OptionalString(field string) *string {
	v, ok := d.Value(field)
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// Bool returns the boolean stored under field.
func (d *Document) Bool(field string) bool {
	v, _ := d.Value(field)
	b, _ := v.(bool)
	return b
}

// Int returns the integer stored under field. Values decoded from JSON arrive
// as float64 or json.Number and are converted.
func (d *Document) Int(field string) int64 {
	v, _ := d.Value(field)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(math.Round(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(math.Round(f))
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i
		}
	}
	return 0
}

// Time returns the timestamp stored under field, or the zero time.
func (d *Document) Time(field string) time.Time {
	if t := d.OptionalTime(field); t != nil {
		return *t
	}
	return time.Time{}
}

// OptionalTime returns nil for absent, null or unparsable timestamps.
func (d *Document) OptionalTime(field string) *time.Time {
	v, ok := d.Value(field)
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		u := t.UTC()
		return &u
	case string:
		parsed, err := ParseTime(t)
		if err != nil {
			return nil
		}
		return &parsed
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		Collection: d.Collection,
		ID:         d.ID,
		Data:       CloneMap(d.Data),
	}
}

// CloneMap deep-copies nested maps and slices.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
