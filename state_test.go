package orderfsm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStateIgnoresCaseAndSpace(t *testing.T) {
	for _, state := range AllStates() {
		got, err := ParseOrderState("  " + state.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, state, got)
	}

	got, err := ParseOrderState("readyfordelivery")
	require.NoError(t, err)
	assert.Equal(t, ReadyForDelivery, got)
}

func TestParseOrderStateUnknown(t *testing.T) {
	_, err := ParseOrderState("Shipped")
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeUnknownState))
	assert.Equal(t, ErrCodeUnknownState, ErrorCode(err))
	assert.Contains(t, err.Error(), "Shipped")
}

func TestParseOrderEvents(t *testing.T) {
	events, err := ParseOrderEvents([]string{"receivepayment", "Deliver"})
	require.NoError(t, err)
	assert.Equal(t, []OrderEvent{ReceivePayment, Deliver}, events)

	_, err = ParseOrderEvents([]string{"Cancel", "Ship"})
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeUnknownEvent))
}

func TestInvalidValuesRenderWithoutPanicking(t *testing.T) {
	assert.Equal(t, "OrderState(9)", OrderState(9).String())
	assert.Equal(t, "OrderEvent(-1)", OrderEvent(-1).String())
	assert.False(t, OrderState(9).IsValid())
	assert.False(t, OrderEvent(6).IsValid())

	_, err := OrderState(9).MarshalText()
	assert.True(t, HasErrorCode(err, ErrCodeUnknownState))
	_, err = OrderEvent(6).MarshalText()
	assert.True(t, HasErrorCode(err, ErrCodeUnknownEvent))
}

func TestStatesAndEventsEncodeByName(t *testing.T) {
	data, err := json.Marshal(map[string]any{"state": AwaitingPayment, "event": Refund})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"AwaitingPayment","event":"Refund"}`, string(data))

	var decoded struct {
		State OrderState `json:"state"`
		Event OrderEvent `json:"event"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, AwaitingPayment, decoded.State)
	assert.Equal(t, Refund, decoded.Event)
}

func TestAllStatesAndEvents(t *testing.T) {
	assert.Len(t, AllStates(), 5)
	assert.Len(t, AllEvents(), 6)
	for _, s := range AllStates() {
		assert.True(t, s.IsValid())
	}
	for _, e := range AllEvents() {
		assert.True(t, e.IsValid())
	}
}

func TestErrorCodeOfPlainError(t *testing.T) {
	assert.Empty(t, ErrorCode(assert.AnError))
	assert.False(t, HasErrorCode(nil, ""))
}
