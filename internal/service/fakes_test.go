package service_test

import (
	"context"
	"sync"
	"time"

	"amara-go/internal/model"
	"amara-go/pkg/events"
)

// fakeMessageRepo 是 MessageRepository 的内存替身。
type fakeMessageRepo struct {
	mu      sync.Mutex
	nextID  uint
	created []model.Message
	history map[string][]model.Message

	createErr       error
	failSynthesized bool // 只让合成消息的落库失败
	recentErr       error
	recentCalls     []string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{history: make(map[string][]model.Message)}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil && (!r.failSynthesized || msg.Synthesized) {
		return r.createErr
	}
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = time.Now()
	r.created = append(r.created, *msg)
	r.history[msg.ChatID] = append(r.history[msg.ChatID], *msg)
	return nil
}

func (r *fakeMessageRepo) FindRecent(_ context.Context, chatID string, limit int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentCalls = append(r.recentCalls, chatID)
	if r.recentErr != nil {
		return nil, r.recentErr
	}
	msgs := r.history[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r *fakeMessageRepo) createdMessages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Message, len(r.created))
	copy(out, r.created)
	return out
}

// fakeChatRepo 是 ChatRepository 的内存替身。
type fakeChatRepo struct {
	chats   map[string][]model.Chat
	ids     []string
	findErr error
	idsErr  error
}

func (r *fakeChatRepo) FindByCoupleID(_ context.Context, coupleID string) ([]model.Chat, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.chats[coupleID], nil
}

func (r *fakeChatRepo) DistinctCoupleIDs(_ context.Context) ([]string, error) {
	if r.idsErr != nil {
		return nil, r.idsErr
	}
	return r.ids, nil
}

// fakeBroadcaster 按顺序记录每次广播。
type fakeBroadcaster struct {
	mu     sync.Mutex
	chats  []string
	events []interface{}
}

func (b *fakeBroadcaster) Broadcast(chatID string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats = append(b.chats, chatID)
	b.events = append(b.events, payload)
}

func (b *fakeBroadcaster) broadcasts() ([]string, []interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chats := make([]string, len(b.chats))
	copy(chats, b.chats)
	evs := make([]interface{}, len(b.events))
	copy(evs, b.events)
	return chats, evs
}

// fakeLLM 以函数字段模拟补全客户端。
type fakeLLM struct {
	mu       sync.Mutex
	prompts  []string
	generate func(prompt string) (string, error)
}

func (c *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	if c.generate != nil {
		return c.generate(prompt)
	}
	return "", nil
}

func (c *fakeLLM) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// fakeCompanion 返回固定回复。
type fakeCompanion struct {
	reply string
}

func (c *fakeCompanion) Respond(_ context.Context, _, _, _ string) string {
	return c.reply
}

// fakeProducer 记录发布的消息事件。
type fakeProducer struct {
	mu     sync.Mutex
	events []events.MessageEvent
	err    error
}

func (p *fakeProducer) ProduceMessageEvent(_ context.Context, ev events.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakeProducer) published() []events.MessageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.MessageEvent, len(p.events))
	copy(out, p.events)
	return out
}
