package repository

import (
	"context"
	"fmt"

	"amara-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 接口定义了消息数据的持久化操作。
type MessageRepository interface {
	// Create 插入一条消息并回填服务端生成的 id 与创建时间。
	Create(ctx context.Context, msg *model.Message) error
	// FindRecent 返回指定会话最近的 limit 条消息，按创建顺序升序排列。
	FindRecent(ctx context.Context, chatID string, limit int) ([]model.Message, error)
}

// messageRepository 是 MessageRepository 接口的 GORM 实现。
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 在数据库中创建一条新的消息记录。
func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// FindRecent 取最近的 limit 条消息。主键自增与创建时间同序，
// 按 id 倒序取窗口再反转，得到连续且无空洞的按时间升序后缀。
func (r *messageRepository) FindRecent(ctx context.Context, chatID string, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages for chat %s: %w", chatID, err)
	}

	// 反转为时间升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
