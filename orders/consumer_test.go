package orders

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderfsm "github.com/goliatone/go-orderfsm"
	"github.com/goliatone/go-orderfsm/fsm"
	"github.com/goliatone/go-orderfsm/store"
)

// sliceReader serves queued messages and cancels the run once drained.
type sliceReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
	cancel    context.CancelFunc
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func eventMessage(t *testing.T, offset int64, orderID string, event orderfsm.OrderEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(orderfsm.EventMessage{OrderID: orderID, Event: event})
	require.NoError(t, err)
	return kafka.Message{Topic: "orders", Offset: offset, Value: value}
}

func runConsumer(t *testing.T, svc *Service, messages []kafka.Message, opts ...ConsumerOption) *sliceReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &sliceReader{messages: messages, cancel: cancel}
	opts = append([]ConsumerOption{WithConsumerLogger(fsm.NopLogger())}, opts...)
	c := NewConsumer(reader, svc, opts...)
	require.NoError(t, c.Run(ctx))
	return reader
}

func TestConsumerAppliesEventsAndCommitsEverything(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewInMemoryStore())
	_, err := svc.Create(ctx, "o1")
	require.NoError(t, err)

	reader := runConsumer(t, svc, []kafka.Message{
		eventMessage(t, 1, "o1", orderfsm.UnlockDelivery),
		{Topic: "orders", Offset: 2, Value: []byte("{not json")},
		eventMessage(t, 3, "o1", orderfsm.Refund),
		{Topic: "orders", Offset: 4, Value: []byte(`{"order_id":"o1","event":"Teleport"}`)},
		eventMessage(t, 5, "o1", orderfsm.Deliver),
		eventMessage(t, 6, "missing", orderfsm.Cancel),
	})

	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, reader.committed)
	assert.True(t, reader.closed)

	snap, err := svc.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orderfsm.AwaitingPayment, snap.State)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, IsOrderNotFound(err))
}

func TestConsumerAutoCreatesUnknownOrders(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(store.NewInMemoryStore())

	runConsumer(t, svc, []kafka.Message{
		eventMessage(t, 1, "fresh", orderfsm.ReceivePayment),
		eventMessage(t, 2, "fresh", orderfsm.Deliver),
	}, WithAutoCreate(true))

	snap, err := svc.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, orderfsm.Completed, snap.State)
	assert.True(t, snap.Extended.Paid)
}

func TestConsumerHandleReportsDecodeErrors(t *testing.T) {
	svc := newTestService(store.NewInMemoryStore())
	c := NewConsumer(&sliceReader{}, svc, WithConsumerLogger(fsm.NopLogger()))

	err := c.Handle(context.Background(), kafka.Message{Value: []byte(`{"event":"Cancel"}`)})
	assert.True(t, orderfsm.HasErrorCode(err, orderfsm.ErrCodeInvalidMessage), "got %v", err)
}

func TestConsumerHandleRetriesAfterVersionConflict(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	writer := newTestService(st)
	svc := newTestService(st)
	_, err := writer.Create(ctx, "o1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "o1")
	require.NoError(t, err)
	_, err = writer.Send(ctx, "o1", orderfsm.ReceivePayment)
	require.NoError(t, err)

	c := NewConsumer(&sliceReader{}, svc, WithConsumerLogger(fsm.NopLogger()))
	require.NoError(t, c.Handle(ctx, eventMessage(t, 1, "o1", orderfsm.Cancel)))

	rec, err := st.Load(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orderfsm.Canceled, rec.State)
	assert.Equal(t, 3, rec.Version)
	assert.Equal(t, true, rec.Variables[fsm.PaidKey], "retry must run on the stored paid flag")
}

func TestConsumerHandleWithoutRetriesReportsConflict(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	writer := newTestService(st)
	svc := newTestService(st)
	_, err := writer.Create(ctx, "o1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "o1")
	require.NoError(t, err)
	_, err = writer.Send(ctx, "o1", orderfsm.ReceivePayment)
	require.NoError(t, err)

	c := NewConsumer(&sliceReader{}, svc,
		WithConsumerLogger(fsm.NopLogger()),
		WithConflictRetries(0, ExponentialBackoffStrategy{Base: time.Millisecond, Factor: 2}),
	)
	err = c.Handle(ctx, eventMessage(t, 1, "o1", orderfsm.Cancel))
	assert.True(t, store.IsVersionConflict(err), "got %v", err)

	rec, err := st.Load(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orderfsm.ReadyForDelivery, rec.State)
	assert.Equal(t, 2, rec.Version)
}
