package api

// RunResult is the outcome of a completed run: a typed value on success or
// an error from the taxonomy in this package.
type RunResult[T any] struct {
	Success T
	Err     error
}

func (r RunResult[T]) IsSuccess() bool {
	return r.Err == nil
}

func (r RunResult[T]) IsError() bool {
	return r.Err != nil
}
