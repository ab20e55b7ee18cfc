// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"amara-go/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ChatRepository 接口定义了会话数据的读取操作。
// 会话由外部引导流程写入，本服务内只读。
type ChatRepository interface {
	FindByCoupleID(ctx context.Context, coupleID string) ([]model.Chat, error)
	DistinctCoupleIDs(ctx context.Context) ([]string, error)
}

// chatCacheTTL 控制 couple -> chats 缓存的存活时间。
// 会话记录创建后不会变更，缓存只是为了让三个会话还没建齐的
// 配对尽快从"未就绪"转为可分析，TTL 不必太长。
const chatCacheTTL = 10 * time.Minute

// chatRepository 是 ChatRepository 的 GORM + Redis 实现。
type chatRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB, rdb *redis.Client) ChatRepository {
	return &chatRepository{db: db, rdb: rdb}
}

// FindByCoupleID 查询一个配对名下的全部会话，带 Redis 读穿缓存。
func (r *chatRepository) FindByCoupleID(ctx context.Context, coupleID string) ([]model.Chat, error) {
	cacheKey := fmt.Sprintf("couple:%s:chats", coupleID)

	if r.rdb != nil {
		if cached, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var chats []model.Chat
			if err := json.Unmarshal([]byte(cached), &chats); err == nil {
				return chats, nil
			}
			// 缓存内容损坏时直接回源
		}
	}

	var chats []model.Chat
	if err := r.db.WithContext(ctx).Where("couple_id = ?", coupleID).Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to find chats for couple %s: %w", coupleID, err)
	}

	// 三个会话建齐之前不写缓存，避免把"未就绪"状态缓存住
	if r.rdb != nil && len(chats) >= 3 {
		if data, err := json.Marshal(chats); err == nil {
			_ = r.rdb.Set(ctx, cacheKey, data, chatCacheTTL).Err()
		}
	}

	return chats, nil
}

// DistinctCoupleIDs 枚举至少拥有一条会话记录的全部配对 id。
func (r *chatRepository) DistinctCoupleIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Chat{}).
		Distinct("couple_id").
		Where("couple_id <> ''").
		Pluck("couple_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate couple ids: %w", err)
	}
	return ids, nil
}
