package errors

import (
	"errors"
	"fmt"
)

// Kind groups errors by the subsystem that produced them.
type Kind string

const (
	KindConfig     Kind = "config"
	KindSchedule   Kind = "schedule"
	KindAuth       Kind = "auth"
	KindChallenge  Kind = "challenge"
	KindVerify     Kind = "verify"
	KindGeneration Kind = "generation"
	KindPublish    Kind = "publish"
	KindStorage    Kind = "storage"
	KindTransport  Kind = "transport"
	KindBootstrap  Kind = "bootstrap"
	KindUnknown    Kind = "unknown"
)

// Op names the operation that failed, e.g. "session.Obtain".
type Op string

type Error struct {
	Kind    Kind
	Op      Op
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap annotates err with a kind and operation. An already typed error is
// returned unchanged so the original classification survives.
func Wrap(err error, kind Kind, op Op, message string) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op Op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if errors.As(err, &target) {
			return target.Kind == kind
		}
		err = errors.Unwrap(err)
	}
	return false
}
