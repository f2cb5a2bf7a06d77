package assessment

import (
	"errors"
	"fmt"
)

// ErrorKind separates adapter failures the orchestrator may retry from the
// ones it must not.
type ErrorKind int

const (
	// KindTimeout: the collaborator did not answer within the stage timeout.
	KindTimeout ErrorKind = iota
	// KindUnavailable: the collaborator errored or its breaker is open.
	KindUnavailable
	// KindContractViolation: the collaborator answered with a payload that
	// does not match the versioned contract. Retrying cannot fix this.
	KindContractViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindContractViolation:
		return "contract_violation"
	default:
		return "unknown"
	}
}

// AdapterError is the single error type adapters surface.
type AdapterError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator's bounded retry policy applies.
func (e *AdapterError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnavailable
}

func timeoutErr(stage string, err error) *AdapterError {
	return &AdapterError{Stage: stage, Kind: KindTimeout, Err: err}
}

func unavailableErr(stage string, err error) *AdapterError {
	return &AdapterError{Stage: stage, Kind: KindUnavailable, Err: err}
}

func contractErr(stage string, err error) *AdapterError {
	return &AdapterError{Stage: stage, Kind: KindContractViolation, Err: err}
}

// AsAdapterError unwraps err to an *AdapterError when possible.
func AsAdapterError(err error) (*AdapterError, bool) {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
