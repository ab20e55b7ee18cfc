// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"amara-go/internal/model"
	"amara-go/internal/repository"
	"amara-go/pkg/llm"
	"amara-go/pkg/log"
)

// 私聊对话的降级文案。对话在用户视角永远不报错，
// 任何失败都转换为固定的致歉回复。
const (
	companionFallback        = "I'm sorry, I'm unable to respond at the moment."
	companionHistoryFallback = "I'm having trouble recalling our conversation right now."
)

// companionSystemPrompt 是一对一私聊的固定人设框架。
const companionSystemPrompt = "You are Amara, an empathetic AI relationship wellness companion. " +
	"You are in a private, one-on-one conversation. Be supportive, insightful, and encouraging. " +
	"Never be judgmental. Keep your responses concise and conversational."

// CompanionService 定义了一对一 AI 对话的编排接口。
type CompanionService interface {
	// Respond 为一条新的用户消息生成一次 AI 回复。
	// 永不失败：任何错误都以固定的降级文案返回。
	// 回复的落库与广播由调用方（消息管道）负责。
	Respond(ctx context.Context, chatID, userID, newContent string) string
}

type companionService struct {
	messageRepo repository.MessageRepository
	llmClient   llm.Client
	window      int
}

// NewCompanionService 创建一个新的 CompanionService 实例。
func NewCompanionService(messageRepo repository.MessageRepository, llmClient llm.Client, window int) CompanionService {
	if window <= 0 {
		window = 10
	}
	return &companionService{
		messageRepo: messageRepo,
		llmClient:   llmClient,
		window:      window,
	}
}

// Respond 读取有界历史窗口，拼装署名对话稿并请求一次补全。
func (s *companionService) Respond(ctx context.Context, chatID, userID, newContent string) string {
	history, err := s.messageRepo.FindRecent(ctx, chatID, s.window)
	if err != nil {
		log.Errorf("加载私聊历史失败, chat=%s: %v", chatID, err)
		return companionHistoryFallback
	}

	prompt := s.buildPrompt(history, userID, newContent)

	reply, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		log.Errorf("私聊补全调用失败, chat=%s: %v", chatID, err)
		return companionFallback
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return companionFallback
	}
	return reply
}

// buildPrompt 将历史窗口渲染为逐行署名的对话稿并附上新消息。
// 历史已按时间升序返回，直接按序渲染。
func (s *companionService) buildPrompt(history []model.Message, userID, newContent string) string {
	var transcript strings.Builder
	for _, msg := range history {
		speaker := "You"
		if model.IsAIAuthor(msg.UserID) {
			speaker = "Amara"
		}
		transcript.WriteString(fmt.Sprintf("%s: %s\n", speaker, msg.Content))
	}

	return fmt.Sprintf("%s\nHere is the recent conversation history:\n%sYou: %s\nAmara:",
		companionSystemPrompt, transcript.String(), newContent)
}
