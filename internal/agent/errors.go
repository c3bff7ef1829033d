package agent

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by calls made after Close
var ErrClosed = errors.New("orchestrator closed")

// EngineExecutionError wraps a failure returned by one of the engines
type EngineExecutionError struct {
	Component string
	Op        string
	Err       error
}

func (e *EngineExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Component, e.Op, e.Err)
}

func (e *EngineExecutionError) Unwrap() error {
	return e.Err
}
