package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidImage        = errors.New("invalid image")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// SynthesisError marks a failure inside the generation pipeline proper
// (compositing or post-processing). It is terminal for the job that raised
// it; storage and analysis failures deliberately never produce one.
type SynthesisError struct {
	Step string
	Err  error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis %s: %v", e.Step, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// NewSynthesisError wraps err with the pipeline step that produced it.
func NewSynthesisError(step string, err error) *SynthesisError {
	return &SynthesisError{Step: step, Err: err}
}
