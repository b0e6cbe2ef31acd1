package orderfsm

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	ErrCodeUnknownState   = "ORDER_UNKNOWN_STATE"
	ErrCodeUnknownEvent   = "ORDER_UNKNOWN_EVENT"
	ErrCodeInvalidMessage = "ORDER_INVALID_MESSAGE"
)

var (
	ErrUnknownState = errors.New("unknown order state", errors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownState)
	ErrUnknownEvent = errors.New("unknown order event", errors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownEvent)
	ErrInvalidMessage = errors.New("invalid event message", errors.CategoryValidation).
				WithTextCode(ErrCodeInvalidMessage)
)

// CloneError copies a sentinel, replacing its message and attaching source and metadata.
func CloneError(base *errors.Error, message string, source error, metadata map[string]any) *errors.Error {
	if base == nil {
		base = ErrInvalidMessage
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of the first go-errors error in the chain.
func ErrorCode(err error) string {
	var ge *errors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// HasErrorCode reports whether err carries the given text code.
func HasErrorCode(err error, code string) bool {
	return code != "" && ErrorCode(err) == code
}

func unknownStateError(name string) *errors.Error {
	return CloneError(ErrUnknownState, "unknown order state "+strings.TrimSpace(name), nil, map[string]any{
		"state": name,
	})
}

func unknownEventError(name string) *errors.Error {
	return CloneError(ErrUnknownEvent, "unknown order event "+strings.TrimSpace(name), nil, map[string]any{
		"event": name,
	})
}
