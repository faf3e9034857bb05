package ports

import (
	"bytes"
	"encoding/json"
)

// Patch is a tri-state field for partial updates: absent (Set=false),
// explicitly null (Set=true, Null=true), or a value.
type Patch[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a Patch holding v.
func Of[T any](v T) Patch[T] {
	return Patch[T]{Set: true, Value: v}
}

// Null returns a Patch that clears the field.
func Null[T any]() Patch[T] {
	return Patch[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked for keys present in the document, which is
// what distinguishes absent from null.
func (p *Patch[T]) UnmarshalJSON(b []byte) error {
	p.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		p.Null = true
		var zero T
		p.Value = zero
		return nil
	}
	p.Null = false
	return json.Unmarshal(b, &p.Value)
}

// Ptr resolves a set patch to the stored form: nil for null, &Value otherwise.
func (p Patch[T]) Ptr() *T {
	if p.Null {
		return nil
	}
	v := p.Value
	return &v
}
