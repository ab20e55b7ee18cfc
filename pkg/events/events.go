// Package events defines the structure for message events published to Kafka.
package events

import "time"

// MessageEvent 是每条落库消息对应的一条下游事件。
// 仅用于分析/归档旁路，发布失败不影响消息投递。
type MessageEvent struct {
	MessageID   uint      `json:"message_id"`
	ChatID      string    `json:"chat_id"`
	UserID      string    `json:"user_id"`
	Synthesized bool      `json:"synthesized"`
	CreatedAt   time.Time `json:"created_at"`
}
