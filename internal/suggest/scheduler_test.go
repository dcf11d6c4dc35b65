package suggest

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerDebounces(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(clock)

	var fired []int
	for i := 0; i < 5; i++ {
		s.Schedule(time.Second, func() { fired = append(fired, i) })
		assert.Equal(t, 1, clock.Active(), "同一时刻只能有一个待执行任务")
		clock.Advance(999 * time.Millisecond)
	}
	assert.Empty(t, fired)

	clock.Advance(time.Millisecond)
	assert.Equal(t, []int{4}, fired)
	assert.False(t, s.Pending())
}

func TestSchedulerCancelPending(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(clock)

	var fired atomic.Int32
	s.Schedule(time.Second, func() { fired.Add(1) })
	require.True(t, s.Pending())
	assert.True(t, s.CancelPending())
	assert.False(t, s.CancelPending())

	clock.Advance(2 * time.Second)
	assert.Zero(t, fired.Load())
}

func TestSchedulerClose(t *testing.T) {
	clock := &fakeClock{}
	s := NewScheduler(clock)

	var fired atomic.Int32
	s.Schedule(time.Second, func() { fired.Add(1) })
	s.Close()
	s.Schedule(time.Second, func() { fired.Add(1) })

	clock.Advance(5 * time.Second)
	assert.Zero(t, fired.Load())
	assert.False(t, s.Pending())
}

func TestSchedulerStaleCallbackIgnored(t *testing.T) {
	// 模拟定时器已经触发但回调尚未拿到锁时被新的 Schedule 取代
	clock := &fakeClock{}
	s := NewScheduler(clock)

	var fired []string
	s.Schedule(time.Second, func() { fired = append(fired, "old") })
	stale := clock.timers[0]

	s.Schedule(time.Second, func() { fired = append(fired, "new") })
	stale.fn()
	assert.Empty(t, fired)

	clock.Advance(time.Second)
	assert.Equal(t, []string{"new"}, fired)
}

func TestSchedulerRealClock(t *testing.T) {
	s := NewScheduler(nil)
	defer s.Close()

	done := make(chan struct{})
	s.Schedule(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("任务没有执行")
	}
}
