package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is one record attribute as delivered by the record store: either a
// bare scalar or a {"display_value", "value"} pair. A pair without a display
// half displays its value; a pair without a value half has no value. An absent
// field reads as "".
type Field struct {
	display    string
	value      interface{}
	hasDisplay bool
	hasValue   bool
}

// Scalar wraps a plain value.
func Scalar(v interface{}) Field {
	if v == nil {
		return Field{}
	}
	return Field{value: v, hasValue: true}
}

// Pair builds a display/value field.
func Pair(display string, value interface{}) Field {
	return Field{display: display, hasDisplay: true, value: value, hasValue: value != nil}
}

// Display returns the human-readable form.
func (f Field) Display() string {
	if f.hasDisplay {
		return f.display
	}
	return stringify(f.value)
}

// Value returns the underlying value as a string, "" when there is none.
func (f Field) Value() string {
	if f.hasValue {
		return stringify(f.value)
	}
	return ""
}

// Raw returns the underlying value as decoded (string, bool, json.Number...)
// or nil.
func (f Field) Raw() interface{} {
	if f.hasValue {
		return f.value
	}
	return nil
}

func (f Field) IsEmpty() bool {
	return f.Value() == "" && f.Display() == ""
}

// IsTrue reports whether the underlying value is boolean true or the string "true".
func (f Field) IsTrue() bool {
	switch v := f.Raw().(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time parses the field as a timestamp, trying the value before the display form.
// Platform timestamps without a zone are read as UTC.
func (f Field) Time() (time.Time, bool) {
	for _, s := range []string{f.Value(), f.Display()} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

type fieldPair struct {
	DisplayValue json.RawMessage `json:"display_value"`
	Value        json.RawMessage `json:"value"`
}

func (f *Field) UnmarshalJSON(data []byte) error {
	*f = Field{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		v, err := decodeScalar(data)
		if err != nil {
			return fmt.Errorf("field: %w", err)
		}
		*f = Scalar(v)
		return nil
	}
	var p fieldPair
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("field pair: %w", err)
	}
	if len(p.DisplayValue) > 0 && !bytes.Equal(p.DisplayValue, []byte("null")) {
		d, err := decodeScalar(p.DisplayValue)
		if err != nil {
			return fmt.Errorf("field display_value: %w", err)
		}
		f.display, f.hasDisplay = stringify(d), true
	}
	if len(p.Value) > 0 && !bytes.Equal(p.Value, []byte("null")) {
		v, err := decodeScalar(p.Value)
		if err != nil {
			return fmt.Errorf("field value: %w", err)
		}
		f.value, f.hasValue = v, true
	}
	return nil
}

func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"display_value": f.Display(),
		"value":         f.Raw(),
	})
}

func decodeScalar(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// DisplayOf applies the Field rules to loosely typed input: nil, scalars,
// Field values and map[string]interface{} display/value pairs.
func DisplayOf(v interface{}) string {
	return toField(v).Display()
}

// ValueOf is DisplayOf's counterpart for the underlying value.
func ValueOf(v interface{}) string {
	return toField(v).Value()
}

func toField(v interface{}) Field {
	switch t := v.(type) {
	case nil:
		return Field{}
	case Field:
		return t
	case *Field:
		if t == nil {
			return Field{}
		}
		return *t
	case map[string]interface{}:
		var f Field
		if d, ok := t["display_value"]; ok && d != nil {
			f.display, f.hasDisplay = stringify(d), true
		}
		if val, ok := t["value"]; ok && val != nil {
			f.value, f.hasValue = val, true
		}
		return f
	default:
		return Scalar(v)
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
