package relay

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsSession 将 gorilla 连接适配为 Session。
// gorilla 的连接不允许并发写，Send 用互斥锁串行化。
type wsSession struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWSSession 基于一条已升级的 WebSocket 连接创建 Session。
func NewWSSession(id string, conn *websocket.Conn) Session {
	return &wsSession{id: id, conn: conn}
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) Send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}
