package models

// State 模型状态
type State string

const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateReady       State = "ready"
	StateDownloading State = "downloading"
	StateUnavailable State = "unavailable"
	StateError       State = "error"
)

// Valid 检查状态值是否合法
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateChecking, StateReady, StateDownloading, StateUnavailable, StateError:
		return true
	}
	return false
}

// Status 某个模型的当前状态。每次更新都是整体替换，不做字段合并。
type Status struct {
	State State `json:"state"`
	// Progress 仅在 downloading 状态下有意义，取值 0-100
	Progress *float64 `json:"progress,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// IdleStatus 默认状态
func IdleStatus() Status {
	return Status{State: StateIdle}
}

// DownloadingStatus 构造下载中的状态
func DownloadingStatus(progress float64) Status {
	return Status{State: StateDownloading, Progress: &progress}
}

// DisplayProgress 返回可展示的下载进度。
// 非 downloading 状态返回 false；downloading 状态缺省进度视为 0，并截断到 [0,100]。
func (s Status) DisplayProgress() (float64, bool) {
	if s.State != StateDownloading {
		return 0, false
	}
	if s.Progress == nil {
		return 0, true
	}
	p := *s.Progress
	switch {
	case p < 0:
		p = 0
	case p > 100:
		p = 100
	}
	return p, true
}

// Equal 比较两个状态是否相同
func (s Status) Equal(o Status) bool {
	if s.State != o.State || s.Message != o.Message {
		return false
	}
	if (s.Progress == nil) != (o.Progress == nil) {
		return false
	}
	return s.Progress == nil || *s.Progress == *o.Progress
}

// Suggestion 编辑器中的补全建议。
// 文本非空但 Visible 为 false 的建议视为已失效，不得渲染。
type Suggestion struct {
	Text    string
	Visible bool
}

// Actionable 只有可见且文本非空的建议才能被接受
func (s Suggestion) Actionable() bool {
	return s.Visible && s.Text != ""
}
