// Package relay 维护连接与会话房间的注册关系，并向房间成员广播事件。
package relay

import (
	"sync"

	"amara-go/pkg/log"
)

// Session 表示一条已建立的客户端连接。
// 以小接口抽象连接，Hub 自身不感知底层传输。
type Session interface {
	ID() string
	Send(v interface{}) error
}

// Hub 是进程内唯一的房间注册表，生命周期等于进程生命周期。
// 只有 Join / Disconnect / Broadcast 三个入口会触碰内部状态，
// 并发安全由读写锁保证。
type Hub struct {
	mu sync.RWMutex
	// rooms: chatID -> sessionID -> 连接
	rooms map[string]map[string]Session
	// membership: sessionID -> 已加入的 chatID 集合
	membership map[string]map[string]struct{}
	sessions   map[string]Session
}

// NewHub 创建一个新的 Hub 实例。
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[string]Session),
		membership: make(map[string]map[string]struct{}),
		sessions:   make(map[string]Session),
	}
}

// Join 把连接加入指定房间，幂等，无任何持久化副作用。
func (h *Hub) Join(s Session, chatID string) {
	if chatID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.ID()] = s

	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[string]Session)
		h.rooms[chatID] = room
	}
	room[s.ID()] = s

	joined, ok := h.membership[s.ID()]
	if !ok {
		joined = make(map[string]struct{})
		h.membership[s.ID()] = joined
	}
	joined[chatID] = struct{}{}
}

// Disconnect 移除连接及其全部房间成员关系，无消息副作用。
func (h *Hub) Disconnect(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for chatID := range h.membership[s.ID()] {
		if room, ok := h.rooms[chatID]; ok {
			delete(room, s.ID())
			if len(room) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	delete(h.membership, s.ID())
	delete(h.sessions, s.ID())
}

// Broadcast 向房间内当前的全部连接投递一个事件。
// 先在锁内拍快照再发送，避免慢连接阻塞注册表。
func (h *Hub) Broadcast(chatID string, payload interface{}) {
	h.mu.RLock()
	members := make([]Session, 0, len(h.rooms[chatID]))
	for _, s := range h.rooms[chatID] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		if err := s.Send(payload); err != nil {
			// 投递失败只记日志；连接生命周期由读循环负责
			log.Warnf("向连接 %s 广播失败: %v", s.ID(), err)
		}
	}
}

// RoomSize 返回房间当前的连接数。
func (h *Hub) RoomSize(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}
