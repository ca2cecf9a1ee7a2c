package licensing

import (
	"bytes"
	"encoding/json"
)

// Optional is a field of a partial update: either Unset or Set(value).
// A JSON field that is present, including an explicit null, decodes to Set.
type Optional[T any] struct {
	value T
	set   bool
	null  bool
}

// Set returns an Optional carrying v.
func Set[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Unset returns an empty Optional.
func Unset[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it was set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the field was supplied.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// IsNull reports whether the field was supplied as an explicit JSON null.
func (o Optional[T]) IsNull() bool {
	return o.set && o.null
}

// UnmarshalJSON marks the field as set, remembering an explicit null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	var v T
	null := bytes.Equal(bytes.TrimSpace(data), []byte("null"))
	if !null {
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
	}
	o.value = v
	o.set = true
	o.null = null
	return nil
}

// MarshalJSON writes the value, or null when unset.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
