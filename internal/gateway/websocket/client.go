// Package websocket 负责 WebSocket 连接的收发
// client.go
// 核心职责：
// 1. 每个物理连接一个 Client，读协程解析入站事件交给聊天服务，写协程串行写出下行事件
// 2. 心跳：每 30 秒 ping 一次，60 秒内收不到任何帧即断开
// 3. 写缓冲区满的慢连接直接关闭，不阻塞扇出
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"course_chat_server/internal/model"
	"course_chat_server/internal/service/chat"
	"course_chat_server/pkg/constants"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	closeWait      = time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
)

var (
	errClosed     = errors.New("connection closed")
	errBufferFull = errors.New("send buffer full")
)

// Hub 连接接入聊天服务所需的最小接口，由 *chat.Server 实现
type Hub interface {
	Connect(conn chat.Conn, p model.Principal) (*chat.Session, error)
	Disconnect(connID string)
	Handle(ctx context.Context, sess *chat.Session, raw []byte)
}

// Client 单个 WebSocket 连接，实现 chat.Conn
type Client struct {
	id     string
	userID string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewClient 包装已升级的连接；bufferSize <= 0 时使用默认缓冲
func NewClient(ws *websocket.Conn, userID string, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = constants.CHANNEL_SIZE
	}
	return &Client{
		id:     constants.CONN_ID_PREFIX + uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send 非阻塞入队
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errClosed
	default:
		zap.L().Warn("ws send buffer full, closing",
			zap.String("conn_id", c.id),
			zap.String("user_id", c.userID))
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errBufferFull
	}
}

// Close 只执行一次且立即返回，关闭帧和底层连接在独立协程中处理
// 调用方可能持有会话锁或容器锁，而慢连接的写锁可能正被写协程占用
// send 通道不关闭，避免并发 Send 时向已关闭通道写入
func (c *Client) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		go c.closeConn(code, reason)
	})
}

func (c *Client) closeConn(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(closeWait))
	_ = c.ws.Close()
}

// Serve 接入聊天服务并阻塞运行读循环，连接断开后注销
func (c *Client) Serve(ctx context.Context, hub Hub, p model.Principal) error {
	sess, err := hub.Connect(c, p)
	if err != nil {
		c.Close(websocket.ClosePolicyViolation, "unauthenticated")
		return err
	}
	zap.L().Info("ws connected", zap.String("conn_id", c.id), zap.String("user_id", c.userID))

	go c.writeLoop()
	defer func() {
		hub.Disconnect(c.id)
		c.Close(websocket.CloseNormalClosure, "")
		zap.L().Info("ws disconnected", zap.String("conn_id", c.id), zap.String("user_id", c.userID))
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("ws read failed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return nil
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		hub.Handle(ctx, sess, data)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
