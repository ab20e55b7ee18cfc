package relay

import "encoding/json"

// 客户端与服务端之间的事件名，封闭集合。
const (
	EventJoinChat       = "join_chat"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
)

// Envelope 是每个 WebSocket 帧的外层结构。
// data 延迟解码，事件类型确定后再按对应载荷解析。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// JoinChatPayload 是 join_chat 事件的载荷。
type JoinChatPayload struct {
	ChatID string `json:"chatId"`
}

// SendMessagePayload 是 send_message 事件的载荷。
// userId 由上游会话层提供，本服务按约定信任。
type SendMessagePayload struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Content  string `json:"content"`
	ChatType string `json:"chatType"`
}

// ServerEvent 是服务端下行事件的外层结构。
type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
