// Package status 保存每个模型的当前状态，并把宿主推送的状态变化分发给订阅者。
package status

import (
	"sync"
	"sync/atomic"

	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/metrics"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
)

// Event 宿主通过状态推送通道发送的事件
type Event struct {
	ModelID models.ID     `json:"modelId"`
	Status  models.Status `json:"status"`
}

// Handler 状态回调
type Handler func(models.Status)

type subscription struct {
	handler Handler
	active  atomic.Bool
}

// Store 模型状态存储。
// 只有状态推送通道通过 Apply 写入，界面代码只能读取和订阅。
type Store struct {
	mu      sync.RWMutex
	current map[models.ID]models.Status
	subs    map[models.ID][]*subscription

	// deliverMu 串行化 Apply，保证同一模型的订阅者按推送顺序收到状态
	deliverMu sync.Mutex

	log     *logging.Logger
	metrics *metrics.Recorder
}

// Option Store 构造选项
type Option func(*Store)

// WithMetrics 设置指标记录器
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Store) {
		s.metrics = r
	}
}

// NewStore 创建状态存储
func NewStore(log *logging.Logger, opts ...Option) *Store {
	if log == nil {
		log = logging.Nop()
	}
	s := &Store{
		current: make(map[models.ID]models.Status),
		subs:    make(map[models.ID][]*subscription),
		log:     log.Named("status"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current 返回模型当前状态，未收到过推送的模型为 idle
func (s *Store) Current(id models.ID) models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked(id)
}

func (s *Store) currentLocked(id models.ID) models.Status {
	if st, ok := s.current[id]; ok {
		return st
	}
	return models.IdleStatus()
}

// Subscribe 订阅某个模型的状态。
// 返回订阅时刻的最新状态以及取消函数；之后的每次更新都会调用 fn。
// 取消后不会再有新的回调，取消函数可以重复调用。
func (s *Store) Subscribe(id models.ID, fn Handler) (models.Status, func()) {
	sub := &subscription{handler: fn}
	sub.active.Store(true)

	s.mu.Lock()
	current := s.currentLocked(id)
	s.subs[id] = append(s.subs[id], sub)
	count := len(s.subs[id])
	s.mu.Unlock()

	s.log.Debug("新增订阅", map[string]interface{}{"model": id.String(), "subscribers": count})

	var once sync.Once
	return current, func() {
		once.Do(func() {
			sub.active.Store(false)
			s.unsubscribe(id, sub)
		})
	}
}

func (s *Store) unsubscribe(id models.ID, target *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subs[id]
	for i, sub := range subs {
		if sub == target {
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(s.subs, id)
			} else {
				s.subs[id] = next
			}
			break
		}
	}
}

// Subscribers 返回某个模型当前的订阅者数量
func (s *Store) Subscribers(id models.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[id])
}

// Apply 应用一条状态推送事件，整体替换该模型的状态并通知订阅者。
// 未知模型或非法状态的事件会被记录并丢弃。
func (s *Store) Apply(ev Event) {
	if !ev.ModelID.Valid() {
		s.log.Warn("丢弃未知模型的状态推送", map[string]interface{}{"model": ev.ModelID.String()})
		return
	}
	if !ev.Status.State.Valid() {
		s.log.Warn("丢弃非法状态", map[string]interface{}{
			"model": ev.ModelID.String(),
			"state": string(ev.Status.State),
		})
		return
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.current[ev.ModelID] = ev.Status
	subs := s.subs[ev.ModelID]
	s.mu.Unlock()

	s.metrics.StatusUpdate(ev.ModelID.String(), string(ev.Status.State))
	s.log.Debug("状态更新", map[string]interface{}{
		"model": ev.ModelID.String(),
		"state": string(ev.Status.State),
	})

	for _, sub := range subs {
		if sub.active.Load() {
			sub.handler(ev.Status)
		}
	}
}
