package cro

import (
	"errors"

	"github.com/oraclewalid/discoveo/common/llm"
)

// Kind classifies why a run failed.
type Kind int

const (
	// KindPrecondition means the run never reached the provider: missing
	// credentials or no analytics data.
	KindPrecondition Kind = iota + 1
	// KindTerminal means the run started and could not finish: a provider
	// failure, cancellation or an unparseable final answer.
	KindTerminal
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// ErrMissingCredential matches runs rejected for lack of provider credentials.
var ErrMissingCredential = llm.ErrMissingAPIKey

// RunError is returned by GenerateReport for every failed run.
type RunError struct {
	Kind Kind
	Err  error
}

func (e *RunError) Error() string {
	return e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err is a run rejected before any provider call.
func IsPrecondition(err error) bool {
	var runErr *RunError
	return errors.As(err, &runErr) && runErr.Kind == KindPrecondition
}

func precondition(err error) *RunError {
	return &RunError{Kind: KindPrecondition, Err: err}
}

func terminal(err error) *RunError {
	return &RunError{Kind: KindTerminal, Err: err}
}
