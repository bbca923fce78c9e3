// Package convert coerces loosely typed JSON values into Go scalars.
// This package has no dependencies on other internal packages to avoid circular imports.
package convert

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToString converts a decoded JSON scalar to string.
// Handles string, json.Number and bool; anything else yields fallback.
func ToString(v interface{}, fallback string) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	}
	return fallback
}

// FlexString is a string field the remote API may send as a JSON string or number.
type FlexString string

// UnmarshalJSON accepts strings, numbers and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*f = FlexString(ToString(raw, ""))
	return nil
}

// String returns the underlying value.
func (f FlexString) String() string { return string(f) }
