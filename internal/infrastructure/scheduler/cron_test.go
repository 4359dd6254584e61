package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerSchedulerFires(t *testing.T) {
	s := NewTickerScheduler(10*time.Millisecond, false)

	var ticks atomic.Int32
	require.NoError(t, s.Start(context.Background(), func(time.Time) { ticks.Add(1) }))

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no ticks after stop")
}

func TestTickerSchedulerRunOnStart(t *testing.T) {
	s := NewTickerScheduler(time.Hour, true)

	fired := make(chan struct{}, 1)
	require.NoError(t, s.Start(context.Background(), func(time.Time) { fired <- struct{}{} }))
	defer s.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestTickerSchedulerDefaults(t *testing.T) {
	s := NewTickerScheduler(0, false)
	assert.Equal(t, DefaultInterval, s.interval)

	assert.NoError(t, s.Start(context.Background(), nil))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestTickerSchedulerStopsWithContext(t *testing.T) {
	s := NewTickerScheduler(time.Hour, false)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, func(time.Time) {}))
	cancel()

	require.NoError(t, s.Stop(context.Background()))
}
