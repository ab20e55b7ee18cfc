package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"amara-go/internal/model"
	"amara-go/internal/relay"
	"amara-go/internal/repository"
	"amara-go/pkg/events"
	"amara-go/pkg/kafka"
	"amara-go/pkg/log"
)

// 入站消息校验失败的错误。对客户端不回包，只体现为没有广播。
var (
	ErrEmptyContent    = errors.New("message content is empty")
	ErrInvalidChatID   = errors.New("chat id is required")
	ErrInvalidAuthorID = errors.New("author id is required")
	ErrInvalidChatType = errors.New("unknown chat type")
)

// Broadcaster 是消息管道对房间注册表的最小依赖。
type Broadcaster interface {
	Broadcast(chatID string, payload interface{})
}

// MessageService 定义了消息投递管道：校验、落库、广播，
// 以及私聊会话中的 AI 回复续接。
type MessageService interface {
	Send(ctx context.Context, chatID, userID, content string, chatType model.ChatType) error
}

type messageService struct {
	messageRepo repository.MessageRepository
	companion   CompanionService
	hub         Broadcaster
	producer    kafka.EventProducer // 可为 nil（事件流未启用）

	// 每个会话一把锁，保证同一会话内广播顺序与落库顺序一致
	chatLocks sync.Map
}

// NewMessageService 创建一个新的 MessageService 实例。
func NewMessageService(messageRepo repository.MessageRepository, companion CompanionService, hub Broadcaster, producer kafka.EventProducer) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		companion:   companion,
		hub:         hub,
		producer:    producer,
	}
}

// Send 处理一条入站人类消息。
// 先落库后广播；落库失败则中止且不广播，不重试。
// PRIVATE_AI 会话在人类消息确认落库并广播之后，同步请求 AI 回复，
// 以同样的"先落库后广播"规则投递；第二阶段的失败不回收已广播的人类消息。
func (s *messageService) Send(ctx context.Context, chatID, userID, content string, chatType model.ChatType) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	if chatID == "" {
		return ErrInvalidChatID
	}
	if userID == "" {
		return ErrInvalidAuthorID
	}
	if !chatType.Valid() {
		return ErrInvalidChatType
	}

	userMsg := &model.Message{
		ChatID:  chatID,
		UserID:  userID,
		Content: content,
	}
	if err := s.persistAndBroadcast(ctx, userMsg); err != nil {
		log.Errorf("保存用户消息失败, chat=%s: %v", chatID, err)
		return err
	}
	s.publishEvent(userMsg)

	// 私聊会话：人类消息确认后才请求补全，保证人类消息严格先于 AI 回复广播
	if chatType == model.ChatTypePrivateAI {
		reply := s.companion.Respond(ctx, chatID, userID, content)

		aiMsg := &model.Message{
			ChatID:      chatID,
			UserID:      model.AIUserID,
			Content:     reply,
			Synthesized: true,
		}
		if err := s.persistAndBroadcast(ctx, aiMsg); err != nil {
			// 人类消息已投递成功，这里只记录，不向上传播
			log.Errorf("保存 AI 回复失败, chat=%s: %v", chatID, err)
		} else {
			s.publishEvent(aiMsg)
		}
	}

	return nil
}

// persistAndBroadcast 以会话级互斥保证落库顺序即广播顺序。
// 广播是落库确认之后的尽力而为动作，永远不反向依赖。
func (s *messageService) persistAndBroadcast(ctx context.Context, msg *model.Message) error {
	muVal, _ := s.chatLocks.LoadOrStore(msg.ChatID, &sync.Mutex{})
	mu := muVal.(*sync.Mutex)

	mu.Lock()
	defer mu.Unlock()

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return err
	}

	s.hub.Broadcast(msg.ChatID, relay.ServerEvent{
		Event: relay.EventReceiveMessage,
		Data:  msg,
	})
	return nil
}

// publishEvent 把落库消息投递到下游事件流，失败只记日志。
func (s *messageService) publishEvent(msg *model.Message) {
	if s.producer == nil {
		return
	}
	ev := events.MessageEvent{
		MessageID:   msg.ID,
		ChatID:      msg.ChatID,
		UserID:      msg.UserID,
		Synthesized: msg.Synthesized,
		CreatedAt:   msg.CreatedAt,
	}
	if err := s.producer.ProduceMessageEvent(context.Background(), ev); err != nil {
		log.Warnf("发布消息事件失败, message=%d: %v", msg.ID, err)
	}
}
