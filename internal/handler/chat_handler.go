// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"amara-go/internal/model"
	"amara-go/internal/relay"
	"amara-go/internal/service"
	"amara-go/pkg/log"
	"amara-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 实时连接。
type ChatHandler struct {
	hub            *relay.Hub
	messageService service.MessageService
	jwtManager     *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(hub *relay.Hub, messageService service.MessageService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		hub:            hub,
		messageService: messageService,
		jwtManager:     jwtManager,
	}
}

// Handle 处理一个传入的 WebSocket 连接。
// 握手时验证外部身份服务签发的会话令牌，之后进入事件读循环。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	session := relay.NewWSSession(fmt.Sprintf("%p", conn), conn)
	defer h.hub.Disconnect(session)

	log.Infof("WebSocket 连接已建立，用户: %s", claims.UserID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var env relay.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// 非法帧按无操作处理，不回包
			log.Warnf("无法解析 WebSocket 事件: %v", err)
			continue
		}

		switch env.Event {
		case relay.EventJoinChat:
			h.handleJoin(session, env.Data)
		case relay.EventSendMessage:
			// 每个入站消息独立处理，慢的落库/补全调用不阻塞读循环
			go h.handleSend(c.Request.Context(), env.Data)
		default:
			log.Warnf("收到未知事件类型: %s", env.Event)
		}
	}
}

func (h *ChatHandler) handleJoin(session relay.Session, data json.RawMessage) {
	var payload relay.JoinChatPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ChatID == "" {
		log.Warnf("join_chat 载荷非法: %v", err)
		return
	}
	h.hub.Join(session, payload.ChatID)
	log.Infof("连接 %s 加入房间 %s", session.ID(), payload.ChatID)
}

func (h *ChatHandler) handleSend(ctx context.Context, data json.RawMessage) {
	var payload relay.SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warnf("send_message 载荷非法: %v", err)
		return
	}

	err := h.messageService.Send(ctx, payload.ChatID, payload.UserID, payload.Content, model.ChatType(payload.ChatType))
	if err != nil {
		// 校验失败与落库失败均不向客户端回包，仅表现为没有广播
		log.Warnf("消息投递失败, chat=%s: %v", payload.ChatID, err)
	}
}

// Health 返回存活探针响应。
func Health(c *gin.Context) {
	c.String(http.StatusOK, "Amara backend is alive!")
}
