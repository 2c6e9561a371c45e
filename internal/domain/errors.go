package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures so callers can tell the operator
// exactly what to fix.
type ErrorKind string

const (
	KindUnknownAction   ErrorKind = "UNKNOWN_ACTION"
	KindMissingReason   ErrorKind = "MISSING_REASON"
	KindInvalidDate     ErrorKind = "INVALID_DATE"
	KindChainBroken     ErrorKind = "CHAIN_BROKEN"
	KindNothingToUndo   ErrorKind = "NOTHING_TO_UNDO"
	KindStatusImmutable ErrorKind = "STATUS_IMMUTABLE"
	KindDataAnomaly     ErrorKind = "DATA_ANOMALY"
	KindInvalidTarget   ErrorKind = "INVALID_TARGET"
	KindTerminalStatus  ErrorKind = "TERMINAL_STATUS"
	KindEntryNotFound   ErrorKind = "ENTRY_NOT_FOUND"
	KindInvalidOrder    ErrorKind = "INVALID_ORDER"
)

// Error is returned by every workflow operation that rejects its input.
// Fix is a short operator-facing hint.
type Error struct {
	Kind    ErrorKind
	Message string
	Fix     string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on Kind so that errors.Is(err, ErrMissingReason) holds for
// any MISSING_REASON error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnknownAction   = &Error{Kind: KindUnknownAction}
	ErrMissingReason   = &Error{Kind: KindMissingReason}
	ErrInvalidDate     = &Error{Kind: KindInvalidDate}
	ErrChainBroken     = &Error{Kind: KindChainBroken}
	ErrNothingToUndo   = &Error{Kind: KindNothingToUndo}
	ErrStatusImmutable = &Error{Kind: KindStatusImmutable}
	ErrDataAnomaly     = &Error{Kind: KindDataAnomaly}
	ErrInvalidTarget   = &Error{Kind: KindInvalidTarget}
	ErrTerminalStatus  = &Error{Kind: KindTerminalStatus}
	ErrEntryNotFound   = &Error{Kind: KindEntryNotFound}
	ErrInvalidOrder    = &Error{Kind: KindInvalidOrder}
)

var defaultFix = map[ErrorKind]string{
	KindUnknownAction:   "choose one of the actions offered for the current status",
	KindMissingReason:   "a reason note is required for this step",
	KindInvalidDate:     "use a date on or after the previous step and not later than today",
	KindChainBroken:     "the order changed meanwhile; reload it and retry",
	KindNothingToUndo:   "only steps after order creation can be undone",
	KindStatusImmutable: "change the status with an action, skip or cancel instead of editing history",
	KindDataAnomaly:     "check the recorded date, it lies in the future",
	KindInvalidTarget:   "pick a later status that is not a revision status",
	KindTerminalStatus:  "the order is completed or cancelled; undo the last step first",
	KindEntryNotFound:   "reload the history, the entry no longer exists",
	KindInvalidOrder:    "correct the order fields and resubmit",
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Fix:     defaultFix[kind],
	}
}

// Errorf builds a workflow error of kind for callers outside the engine,
// such as storage detecting a concurrent writer.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return newError(kind, format, args...)
}

// KindOf returns the kind of a workflow error, or "" for any other error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FixOf returns the operator hint carried by a workflow error.
func FixOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Fix != "" {
			return e.Fix
		}
		return defaultFix[e.Kind]
	}
	return ""
}
