package lazy

import "errors"

var (
	ErrIterationPanicked = errors.New("iteration panicked")
)
