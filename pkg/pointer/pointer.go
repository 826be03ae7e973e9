// Package pointer converts between optional store columns and Go pointers.
package pointer

// To returns a pointer to value.
func To[T any](value T) *T {
	return &value
}

// OrDefault returns value if not nil, otherwise a pointer to defaultValue.
func OrDefault[T any](value *T, defaultValue T) *T {
	if value != nil {
		return value
	}
	return &defaultValue
}

// IfValid returns a pointer to value if valid, otherwise nil. It pairs with
// the sql.Null* scan types.
func IfValid[T any](valid bool, value T) *T {
	if valid {
		return &value
	}
	return nil
}

// Copy returns a pointer to a copy of *value, or nil.
func Copy[T any](value *T) *T {
	if value == nil {
		return nil
	}
	return To(*value)
}

// String is To for the common string case.
func String(value string) *string {
	return To(value)
}
