// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// ChatType 表示会话房间的类型。
type ChatType string

const (
	// ChatTypeCouple 是伴侣双方共享的会话。
	ChatTypeCouple ChatType = "COUPLE"
	// ChatTypePrivateAI 是单人与 AI 的私密会话。
	ChatTypePrivateAI ChatType = "PRIVATE_AI"
)

// Valid 校验会话类型是否为已知取值。
func (t ChatType) Valid() bool {
	return t == ChatTypeCouple || t == ChatTypePrivateAI
}

// Chat 定义了 chats 表的 ORM 模型。
// 会话由外部的配对引导流程创建，本服务只读不改。
// 每个 couple_id 下最终会存在一个 COUPLE 会话和两个 PRIVATE_AI 会话。
type Chat struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CoupleID  string    `gorm:"type:varchar(36);index;not null" json:"coupleId"`
	ChatType  ChatType  `gorm:"type:varchar(16);not null" json:"chatType"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chat) TableName() string {
	return "chats"
}
