package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
)

// SimModel 单个模型的模拟行为
type SimModel struct {
	// Unavailable 为 true 时模型在本设备不可用
	Unavailable bool `yaml:"unavailable"`
	// FailWith 非空时每次调用都返回该错误消息
	FailWith string `yaml:"fail_with"`
	// Steps 下载进度的步数，<= 0 时使用默认值
	Steps int `yaml:"steps"`
}

// SimOptions 模拟宿主配置
type SimOptions struct {
	StepDelay time.Duration
	Models    map[models.ID]SimModel
	Logger    *logging.Logger
}

// Simulator 模拟后台宿主：首次调用时依次推送 checking → downloading → ready。
type Simulator struct {
	opts SimOptions
	log  *logging.Logger

	mu        sync.Mutex
	statuses  map[models.ID]models.Status
	loading   map[models.ID]bool
	listeners map[int]func(status.Event)
	nextID    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SimResult 模拟宿主的成功负载
type SimResult struct {
	Type   string       `json:"type"`
	Model  models.ID    `json:"model"`
	State  models.State `json:"state"`
	Output string       `json:"output,omitempty"`
}

const defaultSimSteps = 5

// NewSimulator 创建模拟宿主
func NewSimulator(opts SimOptions) *Simulator {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = 300 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Simulator{
		opts:      opts,
		log:       opts.Logger.Named("simulator"),
		statuses:  make(map[models.ID]models.Status),
		loading:   make(map[models.ID]bool),
		listeners: make(map[int]func(status.Event)),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, id := range models.All() {
		s.statuses[id] = models.IdleStatus()
	}
	return s
}

// Attach 先把全部模型的当前状态交给 fn，再转发之后的每次推送，返回取消函数。
// 快照与注册在同一把锁内完成，快照回放期间到达的推送先排队，回放结束后按顺序补发。
func (s *Simulator) Attach(fn func(status.Event)) func() {
	sub := &subscriber{fn: fn}

	s.mu.Lock()
	snapshot := make([]status.Event, 0, len(s.statuses))
	for _, id := range models.All() {
		snapshot = append(snapshot, status.Event{ModelID: id, Status: s.statuses[id]})
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = sub.push
	s.mu.Unlock()

	for _, ev := range snapshot {
		fn(ev)
	}
	sub.flush()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// subscriber 在快照回放完成前缓存推送
type subscriber struct {
	fn func(status.Event)

	mu     sync.Mutex
	ready  bool
	queued []status.Event
}

func (sub *subscriber) push(ev status.Event) {
	sub.mu.Lock()
	if !sub.ready {
		sub.queued = append(sub.queued, ev)
		sub.mu.Unlock()
		return
	}
	sub.mu.Unlock()
	sub.fn(ev)
}

// flush 补发排队的推送，队列清空后切换为直接转发
func (sub *subscriber) flush() {
	for {
		sub.mu.Lock()
		if len(sub.queued) == 0 {
			sub.ready = true
			sub.mu.Unlock()
			return
		}
		batch := sub.queued
		sub.queued = nil
		sub.mu.Unlock()

		for _, ev := range batch {
			sub.fn(ev)
		}
	}
}

func (s *Simulator) emit(id models.ID, st models.Status) {
	s.mu.Lock()
	s.statuses[id] = st
	listeners := make([]func(status.Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	ev := status.Event{ModelID: id, Status: st}
	for _, fn := range listeners {
		fn(ev)
	}
}

// Handle 处理一条调用请求并返回响应体
func (s *Simulator) Handle(req Request) json.RawMessage {
	id, err := models.IDForMessageType(req.Type)
	if err != nil {
		s.log.Warn("收到未知请求", map[string]interface{}{"type": string(req.Type)})
		return ErrorResponse(err.Error())
	}

	behaviour := s.opts.Models[id]
	if behaviour.FailWith != "" {
		s.log.Info("模拟调用失败", map[string]interface{}{"model": id.String(), "message": behaviour.FailWith})
		return ErrorResponse(behaviour.FailWith)
	}
	if behaviour.Unavailable {
		s.emit(id, models.Status{State: models.StateUnavailable, Message: "该设备不支持此模型"})
		return ErrorResponse(fmt.Sprintf("%s unavailable on this device", id))
	}

	s.mu.Lock()
	current := s.statuses[id]
	loading := s.loading[id]
	if current.State != models.StateReady && !loading && s.ctx.Err() == nil {
		s.loading[id] = true
		s.wg.Add(1)
		go s.load(id, behaviour.Steps)
	}
	s.mu.Unlock()

	res := SimResult{Type: "ACCEPTED", Model: id, State: current.State}
	if current.State == models.StateReady {
		res = SimResult{Type: "RESULT", Model: id, State: current.State, Output: outputFor(id)}
	}
	data, _ := json.Marshal(res)
	return data
}

// load 模拟模型加载过程
func (s *Simulator) load(id models.ID, steps int) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.loading[id] = false
		s.mu.Unlock()
	}()

	if steps <= 0 {
		steps = defaultSimSteps
	}

	s.emit(id, models.Status{State: models.StateChecking})
	for i := 0; i <= steps; i++ {
		if !s.sleep() {
			return
		}
		s.emit(id, models.DownloadingStatus(float64(i*100/steps)))
	}
	if !s.sleep() {
		return
	}
	s.emit(id, models.Status{State: models.StateReady})
	s.log.Info("模型已就绪", map[string]interface{}{"model": id.String()})
}

func (s *Simulator) sleep() bool {
	timer := time.NewTimer(s.opts.StepDelay)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close 停止所有加载过程
func (s *Simulator) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func outputFor(id models.ID) string {
	switch id {
	case models.Proofreader:
		return "no issues found"
	case models.LanguageModel:
		return "ready to generate"
	case models.Summarizer:
		return "ready to summarize"
	}
	return ""
}
