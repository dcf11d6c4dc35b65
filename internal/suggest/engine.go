// Package suggest 实现编辑器的防抖补全建议。
//
// 引擎只有两个状态：Idle 和 Visible。每次文本变化都会重新计时，
// 安静 Delay 之后才计算建议；文本过短时回到 Idle。
package suggest

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/metrics"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
)

const (
	// DefaultDelay 文本停止变化后计算建议的等待时间
	DefaultDelay = time.Second
	// DefaultMinChars 产生建议所需的最少字符数（去除首尾空白后）
	DefaultMinChars = 10
	// DefaultLineHeight 每行在屏幕上占的高度
	DefaultLineHeight = 1
	// DefaultTopOffset 编辑区域第一行相对锚点的偏移
	DefaultTopOffset = 1
)

// State 引擎状态
type State int

const (
	Idle State = iota
	Visible
)

func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "idle"
}

// Position 建议框的显示位置，由光标所在行计算
type Position struct {
	Line int
	Top  int
}

// Snapshot 引擎状态快照
type Snapshot struct {
	State      State
	Suggestion models.Suggestion
	Position   Position
}

// Options 引擎配置
type Options struct {
	Delay      time.Duration
	MinChars   int
	Strategy   Strategy
	Clock      Clock
	LineHeight int
	TopOffset  int
	// OnChange 状态改变时调用，可能在定时器协程中执行，不能阻塞，也不能调用 Close
	OnChange func(Snapshot)
	Logger   *logging.Logger
	Metrics  *metrics.Recorder
}

// Engine 补全建议引擎
type Engine struct {
	opts  Options
	sched *Scheduler
	log   *logging.Logger

	mu     sync.Mutex
	snap   Snapshot
	closed bool
	// epoch 每次采纳加一，之前排队的计算结果作废
	epoch uint64
}

// NewEngine 创建引擎，未设置的选项使用默认值
func NewEngine(opts Options) *Engine {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.Strategy == nil {
		opts.Strategy = PoolStrategy(DefaultPool, nil)
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = DefaultLineHeight
	}
	if opts.TopOffset < 0 {
		opts.TopOffset = 0
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Engine{
		opts:  opts,
		sched: NewScheduler(opts.Clock),
		log:   opts.Logger.Named("suggest"),
	}
}

// TextChanged 记录一次文本变化：取消上一次未触发的计算并重新计时。
// 当前可见的建议不会被立即隐藏，由下一次计算结果替换。
func (e *Engine) TextChanged(text string, cursorLine int) {
	e.mu.Lock()
	closed, epoch := e.closed, e.epoch
	e.mu.Unlock()
	if closed {
		return
	}

	e.sched.Schedule(e.opts.Delay, func() {
		e.compute(text, cursorLine, epoch)
	})
}

// compute 在防抖计时结束后执行
func (e *Engine) compute(text string, cursorLine int, epoch uint64) {
	next := Snapshot{State: Idle}
	outcome := "none"

	if utf8.RuneCountInString(strings.TrimSpace(text)) >= e.opts.MinChars {
		if s, ok := e.opts.Strategy(text); ok && s != "" {
			next = Snapshot{
				State:      Visible,
				Suggestion: models.Suggestion{Text: s, Visible: true},
				Position:   e.position(cursorLine),
			}
			outcome = "shown"
		}
	}

	e.mu.Lock()
	if e.closed || epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	prev := e.snap
	e.snap = next
	e.mu.Unlock()

	e.opts.Metrics.Suggestion(outcome)
	e.log.Debug("计算补全建议", map[string]interface{}{"outcome": outcome, "line": cursorLine})

	if prev != next {
		e.notify(next)
	}
}

func (e *Engine) position(line int) Position {
	if line < 0 {
		line = 0
	}
	return Position{Line: line, Top: e.opts.TopOffset + line*e.opts.LineHeight}
}

// Accept 采纳当前建议，返回 doc + " " + 建议文本。没有可采纳的建议时原样返回 doc 和 false。
// 采纳后尚未触发的计算被取消，基于旧文本的结果不会再显示出来。
func (e *Engine) Accept(doc string) (string, bool) {
	e.mu.Lock()
	if e.closed || !e.snap.Suggestion.Actionable() {
		e.mu.Unlock()
		return doc, false
	}
	text := e.snap.Suggestion.Text
	e.snap = Snapshot{State: Idle}
	e.epoch++
	e.mu.Unlock()
	e.sched.CancelPending()

	e.opts.Metrics.Suggestion("accepted")
	e.notify(Snapshot{State: Idle})
	return doc + " " + text, true
}

// Dismiss 丢弃当前建议，已经是 Idle 时不做任何事
func (e *Engine) Dismiss() {
	e.mu.Lock()
	if e.closed || e.snap.State == Idle {
		e.mu.Unlock()
		return
	}
	e.snap = Snapshot{State: Idle}
	e.mu.Unlock()

	e.opts.Metrics.Suggestion("dismissed")
	e.notify(Snapshot{State: Idle})
}

// Snapshot 返回当前状态
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Pending 是否有尚未触发的计算
func (e *Engine) Pending() bool {
	return e.sched.Pending()
}

// Close 取消待执行的计算，之后不会再触发任何回调
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.sched.Close()
}

func (e *Engine) notify(s Snapshot) {
	if e.opts.OnChange != nil {
		e.opts.OnChange(s)
	}
}
