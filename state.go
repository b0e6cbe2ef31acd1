package orderfsm

import (
	"strconv"
	"strings"
)

// OrderState is the lifecycle stage of a single order.
type OrderState int

const (
	Open OrderState = iota
	ReadyForDelivery
	AwaitingPayment
	Completed
	Canceled
)

var stateNames = [...]string{
	Open:             "Open",
	ReadyForDelivery: "ReadyForDelivery",
	AwaitingPayment:  "AwaitingPayment",
	Completed:        "Completed",
	Canceled:         "Canceled",
}

// AllStates returns every state in declaration order.
func AllStates() []OrderState {
	return []OrderState{Open, ReadyForDelivery, AwaitingPayment, Completed, Canceled}
}

// IsValid reports whether s is one of the declared states.
func (s OrderState) IsValid() bool {
	return s >= Open && s <= Canceled
}

func (s OrderState) String() string {
	if !s.IsValid() {
		return "OrderState(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// MarshalText renders the state name.
func (s OrderState) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, unknownStateError(s.String())
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *OrderState) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseOrderState resolves a state by name, ignoring case and surrounding space.
func ParseOrderState(name string) (OrderState, error) {
	key := strings.TrimSpace(name)
	for idx, candidate := range stateNames {
		if strings.EqualFold(candidate, key) {
			return OrderState(idx), nil
		}
	}
	return Open, unknownStateError(name)
}

// OrderEvent is an external stimulus requesting a transition.
type OrderEvent int

const (
	UnlockDelivery OrderEvent = iota
	ReceivePayment
	Refund
	Deliver
	Reopen
	Cancel
)

var eventNames = [...]string{
	UnlockDelivery: "UnlockDelivery",
	ReceivePayment: "ReceivePayment",
	Refund:         "Refund",
	Deliver:        "Deliver",
	Reopen:         "Reopen",
	Cancel:         "Cancel",
}

// AllEvents returns every event in declaration order.
func AllEvents() []OrderEvent {
	return []OrderEvent{UnlockDelivery, ReceivePayment, Refund, Deliver, Reopen, Cancel}
}

// IsValid reports whether e is one of the declared events.
func (e OrderEvent) IsValid() bool {
	return e >= UnlockDelivery && e <= Cancel
}

func (e OrderEvent) String() string {
	if !e.IsValid() {
		return "OrderEvent(" + strconv.Itoa(int(e)) + ")"
	}
	return eventNames[e]
}

// MarshalText renders the event name.
func (e OrderEvent) MarshalText() ([]byte, error) {
	if !e.IsValid() {
		return nil, unknownEventError(e.String())
	}
	return []byte(e.String()), nil
}

// UnmarshalText parses an event name.
func (e *OrderEvent) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderEvent(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseOrderEvent resolves an event by name, ignoring case and surrounding space.
func ParseOrderEvent(name string) (OrderEvent, error) {
	key := strings.TrimSpace(name)
	for idx, candidate := range eventNames {
		if strings.EqualFold(candidate, key) {
			return OrderEvent(idx), nil
		}
	}
	return UnlockDelivery, unknownEventError(name)
}

// ParseOrderEvents parses a list of event names, stopping at the first unknown one.
func ParseOrderEvents(names []string) ([]OrderEvent, error) {
	events := make([]OrderEvent, 0, len(names))
	for _, name := range names {
		evt, err := ParseOrderEvent(name)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, nil
}
