// Package models 定义端侧 AI 能力的标识、状态以及与宿主进程通信用的消息类型。
package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel 模型标识不在固定集合内
var ErrUnknownModel = errors.New("未知的模型标识")

// ID 模型标识，同时用作界面标签键和消息路由键
type ID string

const (
	Proofreader   ID = "proofreader"
	LanguageModel ID = "languageModel"
	Summarizer    ID = "summarizer"
)

// All 返回固定顺序的全部模型标识
func All() []ID {
	return []ID{Proofreader, LanguageModel, Summarizer}
}

// Valid 检查标识是否属于固定集合
func (id ID) Valid() bool {
	switch id {
	case Proofreader, LanguageModel, Summarizer:
		return true
	}
	return false
}

func (id ID) String() string {
	return string(id)
}

// ParseID 解析模型标识
func ParseID(s string) (ID, error) {
	id := ID(strings.TrimSpace(s))
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
	return id, nil
}

// MessageType 发送给宿主进程的调用消息标签
type MessageType string

const (
	InvokeProofreader   MessageType = "INVOKE_PROOFREADER"
	InvokeLanguageModel MessageType = "INVOKE_LANGUAGE_MODEL"
	InvokeSummarizer    MessageType = "INVOKE_SUMMARIZER"
)

// MessageTypeFor 将模型标识映射为消息标签。
// 这是一个封闭的穷举映射，集合外的标识一律返回 ErrUnknownModel。
func MessageTypeFor(id ID) (MessageType, error) {
	switch id {
	case Proofreader:
		return InvokeProofreader, nil
	case LanguageModel:
		return InvokeLanguageModel, nil
	case Summarizer:
		return InvokeSummarizer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, string(id))
	}
}

// IDForMessageType 是 MessageTypeFor 的逆映射，供宿主端路由使用
func IDForMessageType(t MessageType) (ID, error) {
	switch t {
	case InvokeProofreader:
		return Proofreader, nil
	case InvokeLanguageModel:
		return LanguageModel, nil
	case InvokeSummarizer:
		return Summarizer, nil
	default:
		return "", fmt.Errorf("未知的消息类型: %q", string(t))
	}
}

// Info 模型在控制面板中的展示信息
type Info struct {
	ID          ID
	Label       string
	Description string
}

// InfoFor 返回模型的展示信息
func InfoFor(id ID) Info {
	switch id {
	case Proofreader:
		return Info{ID: id, Label: "Proofreader", Description: "检查拼写与语法错误"}
	case LanguageModel:
		return Info{ID: id, Label: "Language Model", Description: "根据提示生成文本"}
	case Summarizer:
		return Info{ID: id, Label: "Summarizer", Description: "将长文本压缩为摘要"}
	}
	return Info{ID: id, Label: string(id)}
}
