// Package host 实现界面与模型宿主进程之间的消息协议。
//
// 一条 WebSocket 连接上复用两类流量：
//   - 请求/响应：界面发送 {"type":"INVOKE_*"}，宿主返回任意成功负载或 {"type":"ERROR","message":...}
//   - 状态推送：宿主主动发送 {"modelId":...,"status":{...}}，界面从不轮询
//
// 每条消息都包在 Frame 里，请求与响应通过 ID 关联。
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Zacy-Sokach/PolyWrite/internal/models"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
)

var (
	// ErrHostClosed 连接已关闭，未完成的请求不会再收到响应
	ErrHostClosed = errors.New("宿主连接已关闭")
	// ErrNotConnected 尚未建立连接
	ErrNotConnected = errors.New("未连接到宿主")
)

// FrameKind 帧类型
type FrameKind string

const (
	FrameRequest  FrameKind = "request"
	FrameResponse FrameKind = "response"
	FrameStatus   FrameKind = "status"
)

// Frame 线上传输的外层信封
type Frame struct {
	Kind FrameKind       `json:"kind"`
	ID   string          `json:"id,omitempty"`
	Body json.RawMessage `json:"body"`
}

// Request 调用请求，除消息标签外不带参数
type Request struct {
	Type models.MessageType `json:"type"`
}

// ResponseTypeError 错误响应的类型标签
const ResponseTypeError = "ERROR"

// errorBody 错误响应的形状
type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ResponseError 宿主返回的 {type:'ERROR'} 响应
type ResponseError struct {
	Message string
}

// Error 实现 error 接口
func (e *ResponseError) Error() string {
	return fmt.Sprintf("宿主返回错误: %s", e.Message)
}

// ErrorResponse 构造错误响应体
func ErrorResponse(message string) json.RawMessage {
	data, _ := json.Marshal(errorBody{Type: ResponseTypeError, Message: message})
	return data
}

// DecodeResponse 检查响应体。成功负载的内容不做解释，错误形状返回 *ResponseError。
func DecodeResponse(body json.RawMessage) error {
	if len(body) == 0 {
		return nil
	}
	var probe errorBody
	if err := json.Unmarshal(body, &probe); err != nil {
		// 非对象负载同样视为成功
		return nil
	}
	if probe.Type == ResponseTypeError {
		return &ResponseError{Message: probe.Message}
	}
	return nil
}

// Sender 请求/响应通道
type Sender interface {
	Send(ctx context.Context, req Request) (json.RawMessage, error)
}

// StatusSink 接收状态推送，通常是 *status.Store
type StatusSink interface {
	Apply(status.Event)
}

func encodeFrame(kind FrameKind, id string, body interface{}) (Frame, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Frame{}, fmt.Errorf("序列化消息失败: %w", err)
	}
	return Frame{Kind: kind, ID: id, Body: data}, nil
}
