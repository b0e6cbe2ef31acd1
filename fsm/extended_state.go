package fsm

import (
	"fmt"
	"strings"

	orderfsm "github.com/goliatone/go-orderfsm"
)

// PaidKey is the variable name the paid flag is persisted under.
const PaidKey = "paid"

// ExtendedState is the mutable payload carried next to the current state.
type ExtendedState struct {
	Paid bool `json:"paid" yaml:"paid"`
}

// Variables renders the extended state as a name/value map for persistence.
func (e ExtendedState) Variables() map[string]any {
	return map[string]any{PaidKey: e.Paid}
}

func (e ExtendedState) String() string {
	return fmt.Sprintf("paid=%t", e.Paid)
}

// ExtendedStateFromVariables rebuilds the extended state from persisted variables.
// A missing or unreadable paid flag yields paid=false together with
// ErrMalformedExtendedState; the returned state is always usable.
func ExtendedStateFromVariables(vars map[string]any) (ExtendedState, error) {
	raw, ok := vars[PaidKey]
	if !ok || raw == nil {
		return ExtendedState{}, orderfsm.CloneError(
			ErrMalformedExtendedState,
			"extended state is missing the paid flag",
			nil,
			map[string]any{"variables": len(vars)},
		)
	}
	switch v := raw.(type) {
	case bool:
		return ExtendedState{Paid: v}, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return ExtendedState{Paid: true}, nil
		case "false":
			return ExtendedState{Paid: false}, nil
		}
	}
	return ExtendedState{}, orderfsm.CloneError(
		ErrMalformedExtendedState,
		"extended state paid flag is not a boolean",
		nil,
		map[string]any{"paid_type": fmt.Sprintf("%T", raw)},
	)
}

func setPaid(ext *ExtendedState)   { ext.Paid = true }
func setUnpaid(ext *ExtendedState) { ext.Paid = false }

func isPaid(ext ExtendedState) bool    { return ext.Paid }
func isNotPaid(ext ExtendedState) bool { return !ext.Paid }
