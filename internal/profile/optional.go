package profile

import "strings"

// Optional is a present/absent value. The zero value is absent.
type Optional[T any] struct {
	value T
	ok    bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// OptionalString treats blank strings as absent.
func OptionalString(s string) Optional[string] {
	s = strings.TrimSpace(s)
	if s == "" {
		return None[string]()
	}
	return Some(s)
}

// OptionalStringPtr converts a nullable column value.
func OptionalStringPtr(s *string) Optional[string] {
	if s == nil {
		return None[string]()
	}
	return OptionalString(*s)
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

func (o Optional[T]) IsSet() bool {
	return o.ok
}

// OrElse returns the value when present, fallback otherwise.
func (o Optional[T]) OrElse(fallback T) T {
	if !o.ok {
		return fallback
	}
	return o.value
}

// Ptr returns nil for absent values, handy for JSON encoding and SQL args.
func (o Optional[T]) Ptr() *T {
	if !o.ok {
		return nil
	}
	v := o.value
	return &v
}
