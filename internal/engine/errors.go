package engine

import "errors"

var (
	errPanic    = errors.New("generation aborted")
	errToolLoop = errors.New("tool iteration limit reached")
)
