package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a state-transition failure. The kind decides
// what the caller does with it: validation failures reject the input
// and roll back its session, consistency violations mean internal
// state is broken and the node must halt, resource exhaustion defers
// the input, and consensus mismatches reject a block that disagrees
// with local rules.
type ErrorKind uint8

const (
	// KindUnknown is the zero value; errors without a kind.
	KindUnknown ErrorKind = iota

	// KindValidationFailure rejects invalid user input.
	KindValidationFailure

	// KindConsistencyViolation signals corrupted internal state.
	KindConsistencyViolation

	// KindResourceExhaustion defers input that exceeds a budget.
	KindResourceExhaustion

	// KindConsensusMismatch rejects a block violating local rules.
	KindConsensusMismatch
)

// String returns a human-readable description of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidationFailure:
		return "ValidationFailure"
	case KindConsistencyViolation:
		return "ConsistencyViolation"
	case KindResourceExhaustion:
		return "ResourceExhaustion"
	case KindConsensusMismatch:
		return "ConsensusMismatch"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// ChainError wraps a failure with its kind and, where known, the
// operation that produced it. It supports errors.Is/As against both
// the kind and the wrapped cause.
type ChainError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the wrapped cause.
func (e *ChainError) Unwrap() error {
	return e.Err
}

// Validationf builds a validation-failure error.
func Validationf(format string, args ...any) error {
	return &ChainError{Kind: KindValidationFailure, Err: fmt.Errorf(format, args...)}
}

// Consistencyf builds a consistency-violation error.
func Consistencyf(format string, args ...any) error {
	return &ChainError{Kind: KindConsistencyViolation, Err: fmt.Errorf(format, args...)}
}

// Exhaustedf builds a resource-exhaustion error.
func Exhaustedf(format string, args ...any) error {
	return &ChainError{Kind: KindResourceExhaustion, Err: fmt.Errorf(format, args...)}
}

// Consensusf builds a consensus-mismatch error.
func Consensusf(format string, args ...any) error {
	return &ChainError{Kind: KindConsensusMismatch, Err: fmt.Errorf(format, args...)}
}

// WithOp tags err with the operation name that raised it. Non-chain
// errors are wrapped as validation failures.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ChainError
	if errors.As(err, &ce) {
		if ce.Op == "" {
			ce.Op = op
		}
		return err
	}
	return &ChainError{Kind: KindValidationFailure, Op: op, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidationFailure
}

// IsConsistency reports whether err is a consistency violation.
func IsConsistency(err error) bool {
	return KindOf(err) == KindConsistencyViolation
}
