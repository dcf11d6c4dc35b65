// Package invoke 把界面上的调用操作转换为发往宿主的请求。
//
// 调用只负责发送请求并记录结果，模型状态只能由宿主的状态推送改变。
package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Zacy-Sokach/PolyWrite/internal/host"
	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/metrics"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
)

// DefaultTimeout 单次调用等待响应的默认时长
const DefaultTimeout = 30 * time.Second

// 调用结果标签
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultInvalid = "invalid"
)

// Outcome 一次调用的结果
type Outcome struct {
	Model   models.ID
	Payload json.RawMessage
	Err     error
	Elapsed time.Duration
}

// OK 调用是否成功
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Dispatcher 调用分发器
type Dispatcher struct {
	sender  host.Sender
	log     *logging.Logger
	metrics *metrics.Recorder
	timeout time.Duration
}

// Option Dispatcher 构造选项
type Option func(*Dispatcher)

// WithTimeout 设置单次调用超时，<= 0 表示不设超时
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithMetrics 设置指标记录器
func WithMetrics(r *metrics.Recorder) Option {
	return func(d *Dispatcher) {
		d.metrics = r
	}
}

// NewDispatcher 创建调用分发器
func NewDispatcher(sender host.Sender, log *logging.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	d := &Dispatcher{
		sender:  sender,
		log:     log.Named("invoke"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke 调用模型，立即返回。
// 返回的通道恰好收到一个 Outcome 后关闭。未知模型不会发送任何请求。
// 宿主的错误响应和传输错误都会被记录，不会向上抛出。
func (d *Dispatcher) Invoke(ctx context.Context, id models.ID) <-chan Outcome {
	out := make(chan Outcome, 1)

	msgType, err := models.MessageTypeFor(id)
	if err != nil {
		d.log.Error("无法调用未知模型", err, map[string]interface{}{"model": string(id)})
		d.metrics.Invocation(string(id), ResultInvalid, 0)
		out <- Outcome{Model: id, Err: err}
		close(out)
		return out
	}

	if d.sender == nil {
		d.log.Error("调用模型失败", host.ErrNotConnected, map[string]interface{}{"model": id.String()})
		d.metrics.Invocation(id.String(), ResultError, 0)
		out <- Outcome{Model: id, Err: host.ErrNotConnected}
		close(out)
		return out
	}

	d.log.Debug("发送调用请求", map[string]interface{}{"model": id.String(), "type": string(msgType)})

	go func() {
		defer close(out)
		out <- d.send(ctx, id, msgType)
	}()
	return out
}

func (d *Dispatcher) send(ctx context.Context, id models.ID, msgType models.MessageType) Outcome {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := d.sender.Send(ctx, host.Request{Type: msgType})
	if err == nil {
		err = host.DecodeResponse(body)
	}
	elapsed := time.Since(start)

	if err != nil {
		fields := map[string]interface{}{"model": id.String()}
		var respErr *host.ResponseError
		if errors.As(err, &respErr) {
			fields["message"] = respErr.Message
			d.log.Error("模型调用返回错误", nil, fields)
		} else {
			d.log.Error("模型调用失败", err, fields)
		}
		d.metrics.Invocation(id.String(), ResultError, elapsed.Seconds())
		return Outcome{Model: id, Err: err, Elapsed: elapsed}
	}

	d.log.Info("模型调用完成", map[string]interface{}{"model": id.String(), "elapsed": elapsed.String()})
	d.metrics.Invocation(id.String(), ResultOK, elapsed.Seconds())
	return Outcome{Model: id, Payload: body, Elapsed: elapsed}
}
