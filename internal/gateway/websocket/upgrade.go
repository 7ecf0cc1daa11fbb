package websocket

import (
	"net/http"

	"course_chat_server/internal/model"

	"github.com/gorilla/websocket"
)

// Authenticator 身份网关，由 identity.Authenticator 实现
type Authenticator interface {
	Authenticate(token string) (model.Principal, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	// 浏览器通过 Sec-WebSocket-Protocol: bearer, <token> 传令牌时需要回显 bearer
	Subprotocols: []string{"bearer"},
	// 跨域由 CORS 中间件和令牌共同约束，这里放行所有 Origin
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS 升级连接并阻塞处理，直到连接关闭
// 调用前主体必须已通过身份网关
func ServeWS(w http.ResponseWriter, r *http.Request, hub Hub, p model.Principal, bufferSize int) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写出 HTTP 错误响应
		return err
	}
	client := NewClient(ws, p.UserID, bufferSize)
	return client.Serve(r.Context(), hub, p)
}
