package board

import (
	"bytes"
	"encoding/json"
)

type tristateKind uint8

const (
	kindUnset tristateKind = iota
	kindNone
	kindSome
)

// Tristate distinguishes a field that was never provided from one explicitly
// cleared to none and from one holding a value. The zero value is unset.
//
// Encoded as JSON, unset fields are omitted (with omitzero), none is null and
// a value is the value itself.
type Tristate[T any] struct {
	kind  tristateKind
	value T
}

// Unset returns a Tristate that was never provided.
func Unset[T any]() Tristate[T] {
	return Tristate[T]{}
}

// None returns a Tristate explicitly cleared to none.
func None[T any]() Tristate[T] {
	return Tristate[T]{kind: kindNone}
}

// Some returns a Tristate holding value.
func Some[T any](value T) Tristate[T] {
	return Tristate[T]{kind: kindSome, value: value}
}

// FromPointer maps nil to none and anything else to a value.
func FromPointer[T any](value *T) Tristate[T] {
	if value == nil {
		return None[T]()
	}
	return Some(*value)
}

func (t Tristate[T]) IsZero() bool {
	return t.kind == kindUnset
}

// Provided reports whether the field was explicitly supplied, as none or as a value.
func (t Tristate[T]) Provided() bool {
	return t.kind != kindUnset
}

func (t Tristate[T]) IsNone() bool {
	return t.kind == kindNone
}

// Get returns the held value; ok is false for unset and none.
func (t Tristate[T]) Get() (value T, ok bool) {
	return t.value, t.kind == kindSome
}

// ValueOr returns the held value or fallback.
func (t Tristate[T]) ValueOr(fallback T) T {
	if t.kind == kindSome {
		return t.value
	}
	return fallback
}

func (t Tristate[T]) MarshalJSON() ([]byte, error) {
	if t.kind != kindSome {
		return []byte("null"), nil
	}
	return json.Marshal(t.value)
}

func (t *Tristate[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = None[T]()
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*t = Some(value)
	return nil
}
