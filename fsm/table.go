package fsm

import (
	"fmt"
	"strings"

	orderfsm "github.com/goliatone/go-orderfsm"
)

// Guard decides whether a transition is eligible. It must not mutate anything.
type Guard func(ExtendedState) bool

// Action mutates the extended state when a transition fires.
type Action func(*ExtendedState)

// Transition is one row of the transition table.
type Transition struct {
	ID         string
	Source     orderfsm.OrderState
	Event      orderfsm.OrderEvent
	Target     orderfsm.OrderState
	Internal   bool
	Guard      Guard
	GuardName  string
	Action     Action
	ActionName string
}

// Allows evaluates the guard; unguarded transitions always allow.
func (t Transition) Allows(ext ExtendedState) bool {
	return t.Guard == nil || t.Guard(ext)
}

// TargetName renders the target, or "internal" for transitions that keep the state.
func (t Transition) TargetName() string {
	if t.Internal {
		return "internal"
	}
	return t.Target.String()
}

// orderTransitions is the order lifecycle. Row order matters: guards for the same
// source and event are tried top to bottom.
var orderTransitions = []Transition{
	{Source: orderfsm.Open, Event: orderfsm.ReceivePayment, Target: orderfsm.ReadyForDelivery,
		Action: setPaid, ActionName: "receive_payment"},
	{Source: orderfsm.Open, Event: orderfsm.UnlockDelivery, Target: orderfsm.ReadyForDelivery},
	{Source: orderfsm.Open, Event: orderfsm.Cancel, Target: orderfsm.Canceled},

	{Source: orderfsm.ReadyForDelivery, Event: orderfsm.Deliver, Target: orderfsm.Completed,
		Guard: isPaid, GuardName: "is_paid"},
	{Source: orderfsm.ReadyForDelivery, Event: orderfsm.Deliver, Target: orderfsm.AwaitingPayment,
		Guard: isNotPaid, GuardName: "not_paid"},
	{Source: orderfsm.ReadyForDelivery, Event: orderfsm.Refund, Target: orderfsm.Canceled,
		Guard: isPaid, GuardName: "is_paid", Action: setUnpaid, ActionName: "refund_payment"},
	{Source: orderfsm.ReadyForDelivery, Event: orderfsm.Cancel, Target: orderfsm.Canceled},
	{Source: orderfsm.ReadyForDelivery, Event: orderfsm.ReceivePayment, Internal: true,
		Action: setPaid, ActionName: "receive_payment"},

	{Source: orderfsm.AwaitingPayment, Event: orderfsm.ReceivePayment, Target: orderfsm.Completed,
		Action: setPaid, ActionName: "receive_payment"},

	{Source: orderfsm.Completed, Event: orderfsm.Refund, Target: orderfsm.Canceled,
		Action: setUnpaid, ActionName: "refund_payment"},

	{Source: orderfsm.Canceled, Event: orderfsm.Reopen, Target: orderfsm.Open},
	{Source: orderfsm.Canceled, Event: orderfsm.ReceivePayment, Internal: true,
		Action: setPaid, ActionName: "receive_payment"},
}

// extendedStates enumerates every value ExtendedState can take.
var extendedStates = []ExtendedState{{Paid: false}, {Paid: true}}

type tableKey struct {
	state orderfsm.OrderState
	event orderfsm.OrderEvent
}

// Table is an immutable transition table indexed by state and event.
type Table struct {
	transitions []Transition
	index       map[tableKey][]int
}

var defaultTable = mustTable(orderTransitions)

// DefaultTable returns the order lifecycle table.
func DefaultTable() *Table {
	return defaultTable
}

// NewTable copies and indexes transitions, then validates the result.
func NewTable(transitions []Transition) (*Table, error) {
	t := &Table{
		transitions: make([]Transition, 0, len(transitions)),
		index:       make(map[tableKey][]int),
	}
	seen := make(map[string]int)
	for idx, tr := range transitions {
		if !tr.Source.IsValid() {
			return nil, invalidRow(idx, "source state", tr.Source.String())
		}
		if !tr.Event.IsValid() {
			return nil, invalidRow(idx, "event", tr.Event.String())
		}
		if !tr.Internal && !tr.Target.IsValid() {
			return nil, invalidRow(idx, "target state", tr.Target.String())
		}
		if tr.Internal {
			tr.Target = tr.Source
		}
		if strings.TrimSpace(tr.ID) == "" {
			tr.ID = transitionID(tr)
		}
		seen[tr.ID]++
		if n := seen[tr.ID]; n > 1 {
			tr.ID = fmt.Sprintf("%s#%d", tr.ID, n)
		}
		key := tableKey{state: tr.Source, event: tr.Event}
		t.index[key] = append(t.index[key], len(t.transitions))
		t.transitions = append(t.transitions, tr)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func mustTable(transitions []Transition) *Table {
	t, err := NewTable(transitions)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve returns the first candidate for state and event whose guard holds.
func (t *Table) Resolve(state orderfsm.OrderState, event orderfsm.OrderEvent, ext ExtendedState) (Transition, bool) {
	if t == nil {
		return Transition{}, false
	}
	for _, idx := range t.index[tableKey{state: state, event: event}] {
		tr := t.transitions[idx]
		if tr.Allows(ext) {
			return tr, true
		}
	}
	return Transition{}, false
}

// Candidates returns every row for state and event in definition order.
func (t *Table) Candidates(state orderfsm.OrderState, event orderfsm.OrderEvent) []Transition {
	if t == nil {
		return nil
	}
	rows := t.index[tableKey{state: state, event: event}]
	if len(rows) == 0 {
		return nil
	}
	out := make([]Transition, 0, len(rows))
	for _, idx := range rows {
		out = append(out, t.transitions[idx])
	}
	return out
}

// Transitions returns a copy of all rows in definition order.
func (t *Table) Transitions() []Transition {
	if t == nil {
		return nil
	}
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// AcceptedEvents lists the events that would be accepted from state given ext.
func (t *Table) AcceptedEvents(state orderfsm.OrderState, ext ExtendedState) []orderfsm.OrderEvent {
	var events []orderfsm.OrderEvent
	for _, evt := range orderfsm.AllEvents() {
		if _, ok := t.Resolve(state, evt, ext); ok {
			events = append(events, evt)
		}
	}
	return events
}

// Validate checks that at most one row applies for every state, event and
// extended state, and that a pair guarded by more than one row always matches.
func (t *Table) Validate() error {
	if t == nil {
		return orderfsm.CloneError(ErrInvalidTable, "transition table not configured", nil, nil)
	}
	for _, state := range orderfsm.AllStates() {
		for _, event := range orderfsm.AllEvents() {
			rows := t.Candidates(state, event)
			if len(rows) == 0 {
				continue
			}
			guarded := 0
			for _, tr := range rows {
				if tr.Guard != nil {
					guarded++
				}
			}
			for _, ext := range extendedStates {
				matches := 0
				for _, tr := range rows {
					if tr.Allows(ext) {
						matches++
					}
				}
				meta := map[string]any{
					"state":   state.String(),
					"event":   event.String(),
					"paid":    ext.Paid,
					"matches": matches,
				}
				if matches > 1 {
					return orderfsm.CloneError(ErrAmbiguousTransition,
						fmt.Sprintf("%d transitions apply to %s on %s with %s", matches, state, event, ext),
						nil, meta)
				}
				if matches == 0 && guarded > 1 {
					return orderfsm.CloneError(ErrAmbiguousTransition,
						fmt.Sprintf("guards for %s on %s do not cover %s", state, event, ext),
						nil, meta)
				}
			}
		}
	}
	return nil
}

func invalidRow(idx int, field, value string) error {
	return orderfsm.CloneError(ErrInvalidTable,
		fmt.Sprintf("transition[%d]: invalid %s %s", idx, field, value), nil,
		map[string]any{"row": idx, "field": field, "value": value})
}

func transitionID(tr Transition) string {
	id := strings.ToLower(tr.Source.String()) + "::" + strings.ToLower(tr.Event.String())
	if tr.GuardName != "" {
		id += "::" + tr.GuardName
	}
	return id
}
