package host

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
)

const writeTimeout = 5 * time.Second

// Server 把 Simulator 暴露为 WebSocket 宿主
type Server struct {
	sim      *Simulator
	log      *logging.Logger
	upgrader websocket.Upgrader
	wg       sync.WaitGroup
}

// NewServer 创建宿主服务
func NewServer(sim *Simulator, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		sim: sim,
		log: log.Named("server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type serverConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *serverConn) write(frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(frame)
}

// ServeHTTP 升级为 WebSocket 并处理该连接直到断开
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("升级 WebSocket 失败", map[string]interface{}{"error": err.Error()})
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()

	sc := &serverConn{conn: conn}
	defer conn.Close()

	s.log.Info("界面已连接", map[string]interface{}{"remote": r.RemoteAddr})

	// 先推送当前快照，界面据此得到初始状态。推送失败时关闭连接，读循环随之退出
	stop := s.sim.Attach(func(ev status.Event) {
		if err := s.pushStatus(sc, ev); err != nil {
			_ = conn.Close()
		}
	})
	defer stop()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("连接读取结束", map[string]interface{}{"error": err.Error()})
			}
			s.log.Info("界面已断开", map[string]interface{}{"remote": r.RemoteAddr})
			return
		}
		if frame.Kind != FrameRequest {
			s.log.Warn("忽略非请求帧", map[string]interface{}{"kind": string(frame.Kind)})
			continue
		}

		var body json.RawMessage
		var req Request
		if err := json.Unmarshal(frame.Body, &req); err != nil {
			body = ErrorResponse("malformed request")
		} else {
			body = s.sim.Handle(req)
		}
		if err := sc.write(Frame{Kind: FrameResponse, ID: frame.ID, Body: body}); err != nil {
			return
		}
	}
}

func (s *Server) pushStatus(sc *serverConn, ev status.Event) error {
	frame, err := encodeFrame(FrameStatus, "", ev)
	if err != nil {
		return err
	}
	return sc.write(frame)
}

// Wait 等待所有连接处理结束
func (s *Server) Wait() {
	s.wg.Wait()
}
