package tui

import (
	"github.com/Zacy-Sokach/PolyWrite/internal/invoke"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
	"github.com/Zacy-Sokach/PolyWrite/internal/suggest"
)

// StatusMsg 某个模型的状态更新
type StatusMsg struct {
	ID     models.ID
	Status models.Status
}

// InvokeResultMsg 一次调用完成
type InvokeResultMsg struct {
	Outcome invoke.Outcome
}

// SuggestionMsg 补全建议状态改变
type SuggestionMsg struct {
	Snapshot suggest.Snapshot
}

// LogMsg 有新的日志
type LogMsg struct{}
