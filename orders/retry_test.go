package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffStrategy(t *testing.T) {
	s := ExponentialBackoffStrategy{Base: 10 * time.Millisecond, Factor: 2, Max: 50 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, s.SleepDuration(-1, nil))
	assert.Equal(t, 10*time.Millisecond, s.SleepDuration(0, nil))
	assert.Equal(t, 20*time.Millisecond, s.SleepDuration(1, nil))
	assert.Equal(t, 40*time.Millisecond, s.SleepDuration(2, nil))
	assert.Equal(t, 50*time.Millisecond, s.SleepDuration(3, nil))
}

func TestNoDelayStrategy(t *testing.T) {
	assert.Zero(t, NoDelayStrategy{}.SleepDuration(5, assert.AnError))
}

func TestSleepContextStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
