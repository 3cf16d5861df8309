package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for text-generation operations.
var (
	ErrUnauthorized  = errors.New("llm: unauthorized (check API key)")
	ErrRateLimited   = errors.New("llm: rate limited by provider")
	ErrBadRequest    = errors.New("llm: bad request")
	ErrServer        = errors.New("llm: provider error")
	ErrEmptyResponse = errors.New("llm: response has no choices")
	ErrCircuitOpen   = errors.New("llm: circuit open")
)

// Error wraps an underlying error with request context.
type Error struct {
	Op         string // Operation: "complete"
	Model      string
	StatusCode int    // 0 when no response was received
	Detail     string // Provider error message, if any
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("llm %s [%s]", e.Op, e.Model)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
