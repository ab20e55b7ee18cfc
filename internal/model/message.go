package model

import "time"

// AIUserID 是所有 AI 生成消息使用的保留作者身份。
// 它是一个固定的全局 UUID，与任何人类用户 id 都不会冲突；
// 客户端与 Nudge 分析都依据它来区分合成内容与人类内容。
const AIUserID = "amara-ai-7a8b9c0d-4e5f-6a7b-8c9d-0e1f2a3b4c5d"

// IsAIAuthor 判断给定作者 id 是否为保留的 AI 身份。
func IsAIAuthor(userID string) bool {
	return userID == AIUserID
}

// Message 定义了 messages 表的 ORM 模型。
// 同一会话内的消息按自增主键全序排列，与创建时间顺序一致。
type Message struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID      string    `gorm:"type:varchar(36);index;not null" json:"chatId"`
	UserID      string    `gorm:"type:varchar(64);not null" json:"userId"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Synthesized bool      `gorm:"not null;default:false" json:"synthesized"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}
