package game

import "sync"

type roomLock struct {
	mu   sync.RWMutex
	refs int
}

// RoomLocks 按房间码分配的读写锁，不同房间互不阻塞
type RoomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

// NewRoomLocks 创建房间锁表
func NewRoomLocks() *RoomLocks {
	return &RoomLocks{locks: make(map[string]*roomLock)}
}

func (r *RoomLocks) acquire(code string) *roomLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[code]
	if !ok {
		l = &roomLock{}
		r.locks[code] = l
	}
	l.refs++
	return l
}

func (r *RoomLocks) release(code string, l *roomLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, code)
	}
}

// Lock 获取房间写锁，返回解锁函数
func (r *RoomLocks) Lock(code string) func() {
	l := r.acquire(code)
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.release(code, l)
	}
}

// RLock 获取房间读锁，返回解锁函数
func (r *RoomLocks) RLock(code string) func() {
	l := r.acquire(code)
	l.mu.RLock()
	return func() {
		l.mu.RUnlock()
		r.release(code, l)
	}
}

// Size 当前持有或等待中的房间锁数量
func (r *RoomLocks) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
