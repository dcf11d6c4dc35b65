package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
	"github.com/Zacy-Sokach/PolyWrite/internal/utils"
)

// ClientOptions 客户端配置
type ClientOptions struct {
	URL         string
	Header      http.Header
	DialTimeout time.Duration
	Retry       *utils.RetryConfig
	// Sink 接收状态推送，不能为空
	Sink   StatusSink
	Logger *logging.Logger
}

type result struct {
	body json.RawMessage
	err  error
}

// Client 通过 WebSocket 连接模型宿主
type Client struct {
	conn *websocket.Conn
	sink StatusSink
	log  *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan result
	closed  bool
	readErr error

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// Dial 连接宿主，失败时按 Retry 配置退避重试
func Dial(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.Sink == nil {
		return nil, errors.New("缺少状态接收方")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	log := opts.Logger.Named("host")

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.DialTimeout,
	}

	var conn *websocket.Conn
	attempt := 0
	err := utils.WithRetryContext(ctx, func(ctx context.Context) error {
		attempt++
		c, _, err := dialer.DialContext(ctx, opts.URL, opts.Header)
		if err != nil {
			log.Warn("连接宿主失败", map[string]interface{}{"url": opts.URL, "attempt": attempt, "error": err.Error()})
			return err
		}
		conn = c
		return nil
	}, opts.Retry)
	if err != nil {
		return nil, fmt.Errorf("连接宿主失败: %w", err)
	}

	log.Info("已连接宿主", map[string]interface{}{"url": opts.URL})
	return newClient(conn, opts.Sink, log), nil
}

func newClient(conn *websocket.Conn, sink StatusSink, log *logging.Logger) *Client {
	c := &Client{
		conn:    conn,
		sink:    sink,
		log:     log,
		pending: make(map[string]chan result),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

// Send 发送一条调用请求并等待对应响应。
// 返回原始响应体；{type:'ERROR'} 形状的响应由调用方用 DecodeResponse 判断。
func (c *Client) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	id := uuid.NewString()
	frame, err := encodeFrame(FrameRequest, id, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan result, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrHostClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(frame); err != nil {
		c.forget(id)
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}

	select {
	case res := <-ch:
		return res.body, res.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) write(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(frame)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.done)

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.fail(err)
			return
		}

		switch frame.Kind {
		case FrameResponse:
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if !ok {
				c.log.Debug("忽略无主响应", map[string]interface{}{"id": frame.ID})
				continue
			}
			ch <- result{body: frame.Body}

		case FrameStatus:
			var ev status.Event
			if err := json.Unmarshal(frame.Body, &ev); err != nil {
				c.log.Warn("状态推送格式错误", map[string]interface{}{"error": err.Error()})
				continue
			}
			c.sink.Apply(ev)

		default:
			c.log.Warn("未知帧类型", map[string]interface{}{"kind": string(frame.Kind)})
		}
	}
}

// fail 让所有未完成请求以 ErrHostClosed 结束
func (c *Client) fail(err error) {
	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	c.readErr = err
	pending := c.pending
	c.pending = make(map[string]chan result)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: ErrHostClosed}
	}
	if !wasClosed {
		c.log.Error("宿主连接中断", err, nil)
	}
}

// Done 在读循环退出后关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 返回导致连接中断的错误
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Close 关闭连接并等待读循环退出
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.conn.Close()
		c.wg.Wait()
		c.log.Info("已断开宿主", nil)
	})
	return err
}
