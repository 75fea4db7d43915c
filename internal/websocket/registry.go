package websocket

import (
	"sync"
)

// Subscription 连接在房间内的订阅信息
type Subscription struct {
	ClientID string
	UserID   *uint
	RoomCode string
	PlayerID uint
}

// ConnectionRegistry 连接 -> (用户, 房间) 映射，按房间维护订阅组
//
// 同一用户可以有多条连接（多标签页），互不影响；玩家身份由 GamePlayer 决定而不是连接。
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Subscription         // clientID -> subscription
	rooms map[string]map[string]struct{} // roomCode -> clientIDs
}

// NewConnectionRegistry 创建连接注册表
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Subscription),
		rooms: make(map[string]map[string]struct{}),
	}
}

// Add 登记新连接，尚未订阅任何房间
func (r *ConnectionRegistry) Add(clientID string, userID *uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[clientID]; ok {
		return
	}
	r.conns[clientID] = &Subscription{ClientID: clientID, UserID: userID}
}

// Remove 移除连接及其房间订阅
func (r *ConnectionRegistry) Remove(clientID string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.conns[clientID]
	if !ok {
		return nil
	}
	removed := *sub
	r.leaveRoom(sub)
	delete(r.conns, clientID)
	return &removed
}

// Subscribe 订阅房间，已在其他房间时先退订
func (r *ConnectionRegistry) Subscribe(clientID, roomCode string, playerID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.conns[clientID]
	if !ok {
		return
	}
	if sub.RoomCode != "" && sub.RoomCode != roomCode {
		r.leaveRoom(sub)
	}
	sub.RoomCode = roomCode
	sub.PlayerID = playerID

	members := r.rooms[roomCode]
	if members == nil {
		members = make(map[string]struct{})
		r.rooms[roomCode] = members
	}
	members[clientID] = struct{}{}
}

// Unsubscribe 退订当前房间
func (r *ConnectionRegistry) Unsubscribe(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.conns[clientID]; ok {
		r.leaveRoom(sub)
	}
}

// leaveRoom 调用方需持有写锁
func (r *ConnectionRegistry) leaveRoom(sub *Subscription) {
	if sub.RoomCode == "" {
		return
	}
	if members, ok := r.rooms[sub.RoomCode]; ok {
		delete(members, sub.ClientID)
		if len(members) == 0 {
			delete(r.rooms, sub.RoomCode)
		}
	}
	sub.RoomCode = ""
	sub.PlayerID = 0
}

// Get 获取连接订阅信息的副本
func (r *ConnectionRegistry) Get(clientID string) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.conns[clientID]
	if !ok {
		return Subscription{}, false
	}
	return *sub, true
}

// RoomMembers 房间内订阅的连接ID
func (r *ConnectionRegistry) RoomMembers(roomCode string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomCode]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// RoomConnectionCount 房间当前订阅的连接数
func (r *ConnectionRegistry) RoomConnectionCount(roomCode string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomCode])
}

// Count 总连接数
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
