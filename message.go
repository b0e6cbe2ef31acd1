package orderfsm

import (
	"encoding/json"
	"strings"
)

// EventMessage asks the order identified by OrderID to handle Event.
type EventMessage struct {
	OrderID string     `json:"order_id" yaml:"order_id"`
	Event   OrderEvent `json:"event" yaml:"event"`
}

func (EventMessage) Type() string { return "order_event" }

// Validate checks the message carries an order id and a declared event.
func (m EventMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return CloneError(ErrInvalidMessage, "order id is required", nil, nil)
	}
	if !m.Event.IsValid() {
		return CloneError(ErrInvalidMessage, "event is not a known order event", nil, map[string]any{
			"order_id": m.OrderID,
			"event":    int(m.Event),
		})
	}
	return nil
}

// DecodeEventMessage parses and validates a JSON encoded message.
func DecodeEventMessage(data []byte) (EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, CloneError(ErrInvalidMessage, "failed to decode event message", err, nil)
	}
	msg.OrderID = strings.TrimSpace(msg.OrderID)
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}
