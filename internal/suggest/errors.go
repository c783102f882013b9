package suggest

import "fmt"

// ErrGeneration represents a failure while calling the generation
// backend. These are upstream faults and may be transient.
type ErrGeneration struct {
	Msg string
	Err error
}

// ErrMalformedResponse represents a generation response whose payload
// could not be parsed as a findings array. Retrying with the same
// prompt may or may not help; the raw output is not recoverable.
type ErrMalformedResponse struct {
	Msg string
	Err error
}

// ErrInvalidInput represents a request the pipeline cannot act on.
type ErrInvalidInput struct {
	Msg string
	Err error
}

func (e *ErrGeneration) Error() string {
	return fmt.Sprintf("generation error: %s: %v", e.Msg, e.Err)
}

func (e *ErrGeneration) Unwrap() error {
	return e.Err
}

func (e *ErrMalformedResponse) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed response: %s", e.Msg)
	}
	return fmt.Sprintf("malformed response: %s: %v", e.Msg, e.Err)
}

func (e *ErrMalformedResponse) Unwrap() error {
	return e.Err
}

func (e *ErrInvalidInput) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid input: %s", e.Msg)
	}
	return fmt.Sprintf("invalid input: %s: %v", e.Msg, e.Err)
}

func (e *ErrInvalidInput) Unwrap() error {
	return e.Err
}
