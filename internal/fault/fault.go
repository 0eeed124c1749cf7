package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error once, at the boundary where it originates.
// Downstream code switches on the kind instead of re-parsing messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindAllowance
	KindNetwork
	KindChain
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAllowance:
		return "allowance"
	case KindNetwork:
		return "network"
	case KindChain:
		return "chain"
	default:
		return "unknown"
	}
}

// ChainReason refines KindChain errors for display.
type ChainReason int

const (
	ChainUnspecified ChainReason = iota
	ChainRejected
	ChainReverted
	ChainInsufficientFunds
)

func (r ChainReason) String() string {
	switch r {
	case ChainRejected:
		return "rejected"
	case ChainReverted:
		return "reverted"
	case ChainInsufficientFunds:
		return "insufficient funds"
	default:
		return "unspecified"
	}
}

// Error is the typed result components hand across package boundaries.
type Error struct {
	Kind   Kind
	Reason ChainReason
	Field  string // populated for field-scoped validation errors
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Field builds a field-scoped validation error.
func Field(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// Chain builds a chain error with a display reason.
func Chain(reason ChainReason, err error, msg string) *Error {
	return &Error{Kind: KindChain, Reason: reason, Msg: msg, Err: err}
}

// KindOf extracts the kind from any error; unclassified errors report
// KindUnknown so callers fall back to a generic message.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// ReasonOf extracts the chain reason, if any.
func ReasonOf(err error) ChainReason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ChainUnspecified
}

// Retryable reports whether a retry of the same operation can succeed
// without the user changing anything first. Validation and auth errors
// need user action; network, chain and unknown errors may clear on retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindAuthentication, KindAllowance:
		return false
	default:
		return true
	}
}
