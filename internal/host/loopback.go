package host

import (
	"context"
	"encoding/json"
	"sync"
)

// Loopback 进程内传输，直接把请求交给 Simulator，用于 --simulate 模式和测试
type Loopback struct {
	sim    *Simulator
	stop   func()
	mu     sync.RWMutex
	closed bool
}

// NewLoopback 连接模拟宿主，先回放当前快照再转发后续推送
func NewLoopback(sim *Simulator, sink StatusSink) *Loopback {
	return &Loopback{
		sim:  sim,
		stop: sim.Attach(sink.Apply),
	}
}

// Send 实现 Sender
func (l *Loopback) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrHostClosed
	}
	return l.sim.Handle(req), nil
}

// Close 停止转发状态推送
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.stop()
	}
	return nil
}
