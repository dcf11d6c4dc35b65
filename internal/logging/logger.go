// Package logging 基于 zerolog 的结构化日志，支持按组件命名、文件输出以及内存历史记录。
// Logger 需要显式创建并注入到各个组件中，不提供全局实例。
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level 日志级别
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel 解析日志级别，空字符串视为 info
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return LevelInfo, nil
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo:
		return LevelInfo, nil
	case LevelWarn, "warning":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	}
	return "", fmt.Errorf("未知的日志级别: %q", s)
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Entry 一条日志记录，保存在内存历史中供界面展示
type Entry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
	Fields    map[string]interface{}
	Err       string
}

// String 格式化为单行文本
func (e Entry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Time.Format("15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(strings.ToUpper(string(e.Level)))
	if e.Component != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Component)
		sb.WriteString("]")
	}
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, e.Fields[k]))
	}
	if e.Err != "" {
		sb.WriteString(" error=")
		sb.WriteString(e.Err)
	}
	return sb.String()
}

// Config 日志配置
type Config struct {
	// Dir 日志文件目录，为空时不写文件
	Dir string
	// Level 最低记录级别
	Level Level
	// MaxHistory 内存中保留的条目数
	MaxHistory int
	// Writer 额外的输出目标，TUI 模式下不能是 stdout
	Writer io.Writer
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		MaxHistory: 500,
	}
}

// sink 同一个根 Logger 派生出的所有子 Logger 共享的状态
type sink struct {
	mu      sync.RWMutex
	history []Entry
	maxHist int
	onLog   func(Entry)
	file    *os.File
	path    string
}

// Logger 对 zerolog 的封装
type Logger struct {
	zlog      zerolog.Logger
	level     Level
	component string
	sink      *sink
}

// New 根据配置创建 Logger
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var writers []io.Writer
	s := &sink{maxHist: cfg.MaxHistory}
	if s.maxHist <= 0 {
		s.maxHist = 500
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		name := fmt.Sprintf("polywrite_%s.log", time.Now().Format("2006-01-02"))
		s.path = filepath.Join(cfg.Dir, name)
		file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		s.file = file
		writers = append(writers, file)
	}
	if cfg.Writer != nil {
		writers = append(writers, cfg.Writer)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	level := cfg.Level
	if level == "" {
		level = LevelInfo
	}

	return &Logger{
		zlog:  zerolog.New(out).Level(level.zerolog()).With().Timestamp().Str("app", "polywrite").Logger(),
		level: level,
		sink:  s,
	}, nil
}

// NewWithWriter 创建只输出到 w 的 Logger，主要用于测试和子命令
func NewWithWriter(w io.Writer, level Level) *Logger {
	logger, _ := New(&Config{Writer: w, Level: level})
	return logger
}

// Nop 返回丢弃输出、但仍保留历史的 Logger
func Nop() *Logger {
	return NewWithWriter(io.Discard, LevelDebug)
}

// Named 返回带组件名的子 Logger，与父 Logger 共享输出和历史
func (l *Logger) Named(component string) *Logger {
	name := component
	if l.component != "" {
		name = l.component + "." + component
	}
	return &Logger{
		zlog:      l.zlog.With().Str("component", name).Logger(),
		level:     l.level,
		component: name,
		sink:      l.sink,
	}
}

// Component 返回组件名
func (l *Logger) Component() string {
	return l.component
}

// SetOnLog 设置实时日志回调，回调在记录日志的协程中同步执行
func (l *Logger) SetOnLog(fn func(Entry)) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.onLog = fn
}

// Debug 记录调试日志
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.log(LevelDebug, msg, nil, fields)
}

// Info 记录普通日志
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log(LevelInfo, msg, nil, fields)
}

// Warn 记录警告日志
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log(LevelWarn, msg, nil, fields)
}

// Error 记录错误日志
func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	l.log(LevelError, msg, err, fields)
}

func (l *Logger) log(level Level, msg string, err error, fields map[string]interface{}) {
	if level.zerolog() < l.level.zerolog() {
		return
	}

	event := l.zlog.WithLevel(level.zerolog())
	if err != nil {
		event = event.Err(err)
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)

	entry := Entry{
		Time:      time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    fields,
	}
	if err != nil {
		entry.Err = err.Error()
	}
	l.sink.add(entry)
}

func (s *sink) add(entry Entry) {
	s.mu.Lock()
	s.history = append(s.history, entry)
	if len(s.history) > s.maxHist {
		s.history = s.history[len(s.history)-s.maxHist:]
	}
	onLog := s.onLog
	s.mu.Unlock()

	if onLog != nil {
		onLog(entry)
	}
}

// History 返回最近的 limit 条日志，limit <= 0 返回全部
func (l *Logger) History(limit int) []Entry {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()

	if limit <= 0 || limit > len(l.sink.history) {
		limit = len(l.sink.history)
	}
	result := make([]Entry, limit)
	copy(result, l.sink.history[len(l.sink.history)-limit:])
	return result
}

// Count 统计历史中指定级别的条目数
func (l *Logger) Count(level Level) int {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()

	n := 0
	for _, e := range l.sink.history {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Path 返回日志文件路径，没有文件输出时为空
func (l *Logger) Path() string {
	return l.sink.path
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}
