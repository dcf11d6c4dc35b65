package suggest

import (
	"sync"
	"time"
)

// Timer 可停止的定时器
type Timer interface {
	Stop() bool
}

// Clock 定时器来源，测试中可替换为手动推进的时钟
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock 基于 time.AfterFunc 的时钟
func RealClock() Clock {
	return realClock{}
}

// Scheduler 防抖调度器：同一时刻最多只有一个待执行任务。
// 每次 Schedule 都会取消上一个尚未触发的任务。
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	closed  bool
	running sync.WaitGroup
}

// NewScheduler 创建调度器，clock 为 nil 时使用真实时钟
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{clock: clock}
}

// Schedule 在 delay 之后执行 fn，之前未触发的任务被取消。关闭后调用无效。
func (s *Scheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		// 已被新的 Schedule、Cancel 或 Close 取代
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.running.Add(1)
		s.mu.Unlock()

		defer s.running.Done()
		fn()
	})
}

// CancelPending 取消待执行任务，返回是否确实有任务被取消
func (s *Scheduler) CancelPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Scheduler) stopLocked() bool {
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.gen++
	return true
}

// Pending 是否有待执行任务
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Close 取消待执行任务并等待正在执行的任务结束，之后不会再有任务执行
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()

	s.running.Wait()
}
