package counsel

// Result is the outcome of a best-effort step: either Ok with a value, or
// Degraded to a default value with the error that caused it.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Degraded wraps the default value used after err.
func Degraded[T any](fallback T, err error) Result[T] {
	return Result[T]{Value: fallback, Err: err}
}

// IsDegraded reports whether the step fell back to its default.
func (r Result[T]) IsDegraded() bool {
	return r.Err != nil
}
