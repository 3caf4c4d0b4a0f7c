package rescache

import (
	"errors"
	"fmt"
)

// ErrLoadFailed matches every *LoadError via errors.Is.
var ErrLoadFailed = errors.New("resource load failed")

// LoadError reports a failed load for a single key.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading resource %q: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports ErrLoadFailed as a match so callers don't need the concrete type.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailed
}
