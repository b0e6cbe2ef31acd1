package orderfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventMessage(t *testing.T) {
	msg, err := DecodeEventMessage([]byte(`{"order_id":" o-1 ","event":"ReceivePayment"}`))
	require.NoError(t, err)
	assert.Equal(t, "o-1", msg.OrderID)
	assert.Equal(t, ReceivePayment, msg.Event)
	assert.Equal(t, "order_event", msg.Type())
}

func TestDecodeEventMessageFailures(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `order o-1 pays`},
		{name: "missing order", data: `{"event":"Cancel"}`},
		{name: "blank order", data: `{"order_id":"  ","event":"Cancel"}`},
		{name: "unknown event", data: `{"order_id":"o-1","event":"Ship"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEventMessage([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestDecodeEventMessageCodes(t *testing.T) {
	_, err := DecodeEventMessage([]byte(`{"event":"Cancel"}`))
	assert.True(t, HasErrorCode(err, ErrCodeInvalidMessage))

	_, err = DecodeEventMessage([]byte(`{`))
	assert.True(t, HasErrorCode(err, ErrCodeInvalidMessage))
}

func TestEventMessageValidateRejectsUndeclaredEvent(t *testing.T) {
	err := EventMessage{OrderID: "o-1", Event: OrderEvent(42)}.Validate()
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeInvalidMessage))
}

func TestMakePanicHandlerRecovers(t *testing.T) {
	var gotName string
	var gotErr any
	func() {
		defer MakePanicHandler(func(funcName string, err any, _ []byte, _ ...map[string]any) {
			gotName = funcName
			gotErr = err
		})("listener")
		panic("boom")
	}()
	assert.Equal(t, "listener", gotName)
	assert.Equal(t, "boom", gotErr)
}
