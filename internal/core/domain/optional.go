package domain

import (
	"bytes"
	"encoding/json"
)

type optionalState uint8

const (
	optionalAbsent optionalState = iota
	optionalNull
	optionalValue
)

// Optional distinguishes an omitted field from an explicit null and from a value.
// Use it with the `omitzero` JSON option so absent fields stay absent on output.
type Optional[T any] struct {
	state optionalState
	value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{state: optionalValue, value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{state: optionalNull}
}

func (o Optional[T]) IsAbsent() bool { return o.state == optionalAbsent }
func (o Optional[T]) IsNull() bool   { return o.state == optionalNull }
func (o Optional[T]) HasValue() bool { return o.state == optionalValue }

// IsZero reports absence; encoding/json uses it for omitzero.
func (o Optional[T]) IsZero() bool { return o.IsAbsent() }

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == optionalValue
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.state != optionalValue {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.state, o.value = optionalNull, zero
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.state, o.value = optionalValue, v
	return nil
}
