package fsm

import (
	"github.com/goliatone/go-errors"

	orderfsm "github.com/goliatone/go-orderfsm"
)

const (
	ErrCodeEventRejected          = "FSM_EVENT_REJECTED"
	ErrCodeMalformedExtendedState = "FSM_MALFORMED_EXTENDED_STATE"
	ErrCodeAmbiguousTransition    = "FSM_AMBIGUOUS_TRANSITION"
	ErrCodeInvalidTable           = "FSM_INVALID_TABLE"
)

var (
	// ErrEventRejected reports that no transition applied to the current state and event.
	ErrEventRejected = errors.New("event not accepted", errors.CategoryBadInput).
				WithTextCode(ErrCodeEventRejected)
	// ErrMalformedExtendedState reports persisted variables without a usable paid flag.
	ErrMalformedExtendedState = errors.New("malformed extended state", errors.CategoryValidation).
					WithTextCode(ErrCodeMalformedExtendedState)
	// ErrAmbiguousTransition reports a table where more than one guard holds at once.
	ErrAmbiguousTransition = errors.New("ambiguous transition table", errors.CategoryInternal).
				WithTextCode(ErrCodeAmbiguousTransition)
	// ErrInvalidTable reports a row naming an undeclared state or event.
	ErrInvalidTable = errors.New("invalid transition table", errors.CategoryInternal).WithTextCode(ErrCodeInvalidTable)
)

// IsEventRejected reports whether err is a rejected event outcome.
func IsEventRejected(err error) bool {
	return orderfsm.HasErrorCode(err, ErrCodeEventRejected)
}

// IsMalformedExtendedState reports whether err flags corrupt persisted variables.
func IsMalformedExtendedState(err error) bool {
	return orderfsm.HasErrorCode(err, ErrCodeMalformedExtendedState)
}
