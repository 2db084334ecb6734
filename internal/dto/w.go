package dto

// W is a generic field wrapper that distinguishes between an absent
// parameter, an explicitly empty one, and a concrete value.
//
// States:
//   - Absent: Set=false
//   - Explicit empty: Set=true, Empty=true, V holds the field's reset value
//   - Value present: Set=true, Empty=false, V holds the value
type W[T any] struct {
	V     T
	Set   bool
	Empty bool
}

// Val wraps a concrete value.
func Val[T any](v T) W[T] { return W[T]{V: v, Set: true} }

// Reset wraps an explicit empty parameter that resets the field to v.
func Reset[T any](v T) W[T] { return W[T]{V: v, Set: true, Empty: true} }

// apply assigns the wrapped value to dst when present.
func (w W[T]) apply(dst *T) bool {
	if !w.Set {
		return false
	}
	*dst = w.V
	return true
}
