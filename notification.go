package api

import "time"

// Success is published once per call whose response passed validation.
type Success struct {
	Operation string
	CallID    string
	Request   any
	Response  any
	Duration  time.Duration
}

// Failure is published once per call whose resolver (or server handler)
// failed. Err is the error as surfaced to the caller.
type Failure struct {
	Operation string
	CallID    string
	Request   any
	Err       error
	Duration  time.Duration
}
