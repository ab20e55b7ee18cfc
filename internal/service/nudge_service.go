package service

import (
	"context"
	"fmt"
	"strings"

	"amara-go/internal/model"
	"amara-go/internal/relay"
	"amara-go/internal/repository"
	"amara-go/pkg/events"
	"amara-go/pkg/kafka"
	"amara-go/pkg/llm"
	"amara-go/pkg/log"
)

// emptyHistoryPlaceholder 在会话暂无消息时充当上下文占位。
const emptyHistoryPlaceholder = "No recent messages."

// nudgeSystemPrompt 是跨会话分析的固定框架。
// 隐私边界完全由这段提示加上内容选择逻辑保证：
// 写入共享会话的只会是模型的合成输出，绝不会是私聊原文。
// 这是策略级的尽力而为约束，不是硬性隔离。
const nudgeSystemPrompt = "System Role: You are Amara, a relationship therapist AI. " +
	"Your goal is to promote empathy and healthy communication. " +
	"You MUST NOT reveal secrets or specific details from private chats. " +
	"Instead, you must synthesize the underlying emotions or themes and transform them into a gentle, " +
	"forward-looking nudge, question, or affirmation for the couple's main chat. " +
	"The message should be short, under 25 words. " +
	"If you analyze the context and no nudge is necessary or appropriate right now, " +
	"you MUST output the single word 'NULL'."

// nudgeTaskPrompt 是提示末尾的任务指令与示例。
const nudgeTaskPrompt = `Task: Based on your analysis of all three contexts, generate one short, helpful, and subtle message to post in the couple's chat. The message should be positive and encourage interaction.
Examples of good nudges:
- "What's one thing you appreciate about each other today?"
- "This might be a good time to talk about plans for the weekend."
- "Remembering to assume the best in each other can make a big difference."
- "It seems like you're both working hard. What's a small way you could support each other right now?"

Generate the nudge now. If no nudge is needed, remember to output only 'NULL'.`

// NudgeService 定义了单个配对的跨会话分析与注入。
type NudgeService interface {
	// Run 对一个配对执行一次完整的分析流程。
	// 配对未就绪（三个会话没建齐）是正常的静默跳过，不算失败；
	// 补全失败同样静默跳过，只有发现阶段的读失败会返回错误。
	Run(ctx context.Context, coupleID string) error
	// RunAll 枚举全部配对并逐一执行 Run，单个配对的失败相互隔离。
	RunAll(ctx context.Context)
}

type nudgeService struct {
	chatRepo    repository.ChatRepository
	messageRepo repository.MessageRepository
	llmClient   llm.Client
	hub         Broadcaster
	producer    kafka.EventProducer
	window      int
}

// NewNudgeService 创建一个新的 NudgeService 实例。
func NewNudgeService(chatRepo repository.ChatRepository, messageRepo repository.MessageRepository, llmClient llm.Client, hub Broadcaster, producer kafka.EventProducer, window int) NudgeService {
	if window <= 0 {
		window = 15
	}
	return &nudgeService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		llmClient:   llmClient,
		hub:         hub,
		producer:    producer,
		window:      window,
	}
}

// Run 依次执行发现、校验、采集、组装、生成、注入六步，
// 任一前置条件不满足即终止。
func (s *nudgeService) Run(ctx context.Context, coupleID string) error {
	log.Infof("[NudgeEngine] 开始分析配对: %s", coupleID)

	// 1. 发现：取配对名下全部会话
	chats, err := s.chatRepo.FindByCoupleID(ctx, coupleID)
	if err != nil {
		return fmt.Errorf("failed to discover chats for couple %s: %w", coupleID, err)
	}

	// 2. 校验：一个 COUPLE 会话 + 至少两个 PRIVATE_AI 会话
	var coupleChat *model.Chat
	var privateChats []model.Chat
	for i := range chats {
		switch chats[i].ChatType {
		case model.ChatTypeCouple:
			if coupleChat == nil {
				coupleChat = &chats[i]
			}
		case model.ChatTypePrivateAI:
			privateChats = append(privateChats, chats[i])
		}
	}
	if coupleChat == nil || len(privateChats) < 2 {
		// 配对尚未完成引导，属正常状态而非失败
		log.Infof("[NudgeEngine] 配对 %s 的三个会话尚未建齐，跳过", coupleID)
		return nil
	}

	// 3. 采集：三个会话各取一个有界窗口
	coupleHistory := s.collectContext(ctx, coupleChat.ID)
	partnerAHistory := s.collectContext(ctx, privateChats[0].ID)
	partnerBHistory := s.collectContext(ctx, privateChats[1].ID)

	// 4. 组装
	prompt := s.buildPrompt(coupleHistory, partnerAHistory, partnerBHistory)

	// 5. 生成：失败只记日志，不向调度器上抛
	response, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		log.Errorf("[NudgeEngine] 配对 %s 补全调用失败: %v", coupleID, err)
		return nil
	}

	// 6. 判定与注入
	nudgeText := strings.TrimSpace(response)
	if nudgeText == "" || strings.EqualFold(nudgeText, "NULL") {
		log.Infof("[NudgeEngine] 配对 %s 本轮无需注入", coupleID)
		return nil
	}

	nudgeMsg := &model.Message{
		ChatID:      coupleChat.ID,
		UserID:      model.AIUserID,
		Content:     nudgeText,
		Synthesized: true,
	}
	if err := s.messageRepo.Create(ctx, nudgeMsg); err != nil {
		log.Errorf("[NudgeEngine] 配对 %s 注入消息落库失败: %v", coupleID, err)
		return nil
	}

	s.hub.Broadcast(coupleChat.ID, relay.ServerEvent{
		Event: relay.EventReceiveMessage,
		Data:  nudgeMsg,
	})
	if s.producer != nil {
		ev := events.MessageEvent{
			MessageID:   nudgeMsg.ID,
			ChatID:      nudgeMsg.ChatID,
			UserID:      nudgeMsg.UserID,
			Synthesized: true,
			CreatedAt:   nudgeMsg.CreatedAt,
		}
		if err := s.producer.ProduceMessageEvent(context.Background(), ev); err != nil {
			log.Warnf("[NudgeEngine] 发布消息事件失败, message=%d: %v", nudgeMsg.ID, err)
		}
	}

	log.Infof("[NudgeEngine] 已为配对 %s 注入: %q", coupleID, nudgeText)
	return nil
}

// collectContext 读取一个会话的有界窗口并拼成单个文本块。
// 读失败按空历史降级，不中断整个分析。
func (s *nudgeService) collectContext(ctx context.Context, chatID string) string {
	messages, err := s.messageRepo.FindRecent(ctx, chatID, s.window)
	if err != nil {
		log.Warnf("[NudgeEngine] 读取会话 %s 上下文失败，按空历史处理: %v", chatID, err)
		return emptyHistoryPlaceholder
	}
	if len(messages) == 0 {
		return emptyHistoryPlaceholder
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, msg.Content)
	}
	return strings.Join(lines, "\n")
}

// buildPrompt 组装三段式分析提示。两个私聊块被显式标注为
// "for your context ONLY"，禁止模型向共享会话透露其中细节。
func (s *nudgeService) buildPrompt(coupleHistory, partnerAHistory, partnerBHistory string) string {
	var b strings.Builder
	b.WriteString(nudgeSystemPrompt)
	b.WriteString("\n\nContext Block 1 (The Couple's shared conversation):\n---\n")
	b.WriteString(coupleHistory)
	b.WriteString("\n---\n\nContext Block 2 (Private thoughts from Partner A - for your context ONLY):\n---\n")
	b.WriteString(partnerAHistory)
	b.WriteString("\n---\n\nContext Block 3 (Private thoughts from Partner B - for your context ONLY):\n---\n")
	b.WriteString(partnerBHistory)
	b.WriteString("\n---\n\n")
	b.WriteString(nudgeTaskPrompt)
	return b.String()
}

// RunAll 枚举全部配对并逐一执行分析。
// 每个配对独立隔离：单个失败（包括 panic）只影响自身，
// 后续配对照常处理。供调度器作为整轮任务调用。
func (s *nudgeService) RunAll(ctx context.Context) {
	coupleIDs, err := s.chatRepo.DistinctCoupleIDs(ctx)
	if err != nil {
		log.Error("[NudgeEngine] 枚举配对失败", err)
		return
	}

	for _, coupleID := range coupleIDs {
		s.runIsolated(ctx, coupleID)
	}
	log.Infof("[NudgeEngine] 本轮分析完成，共 %d 个配对", len(coupleIDs))
}

func (s *nudgeService) runIsolated(ctx context.Context, coupleID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[NudgeEngine] 配对 %s 分析发生 panic: %v", coupleID, r)
		}
	}()

	if err := s.Run(ctx, coupleID); err != nil {
		log.Errorf("[NudgeEngine] 配对 %s 分析失败: %v", coupleID, err)
	}
}
