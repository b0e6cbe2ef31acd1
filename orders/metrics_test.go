package orders

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderfsm "github.com/goliatone/go-orderfsm"
	"github.com/goliatone/go-orderfsm/store"
)

func TestMetricsListenerCountsTransitionsAndRejections(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetricsListener(reg)
	require.NoError(t, err)

	svc := newTestService(store.NewInMemoryStore(), WithListeners(metrics))
	_, err = svc.Create(ctx, "o1")
	require.NoError(t, err)

	for _, evt := range []orderfsm.OrderEvent{
		orderfsm.UnlockDelivery,
		orderfsm.Refund,
		orderfsm.ReceivePayment,
		orderfsm.Deliver,
		orderfsm.Deliver,
	} {
		_, err := svc.Send(ctx, "o1", evt)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions().WithLabelValues("Open", "ReadyForDelivery", "UnlockDelivery")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions().WithLabelValues("ReadyForDelivery", "Completed", "Deliver")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rejections().WithLabelValues("ReadyForDelivery", "Refund")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rejections().WithLabelValues("Completed", "Deliver")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Transitions()), "internal payment must not count as a transition")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{"orderfsm_transitions_total", "orderfsm_rejections_total"}, names)
}

func TestMetricsListenerDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetricsListener(reg)
	require.NoError(t, err)

	_, err = NewMetricsListener(reg)
	assert.Error(t, err)
}

func TestMetricsListenerWithoutRegistry(t *testing.T) {
	metrics, err := NewMetricsListener(nil)
	require.NoError(t, err)
	assert.NotNil(t, metrics.Transitions())
}
