package memory

import (
	"context"
	"sync"
)

// UnreadStore 内存版未读计数，结构与 Redis 实现一致：用户 -> 容器 -> 计数
type UnreadStore struct {
	mu     sync.Mutex
	counts map[string]map[string]int64

	// FailIncrement 非 nil 时 Increment 返回该错误
	FailIncrement error
}

// NewUnreadStore 创建内存未读计数
func NewUnreadStore() *UnreadStore {
	return &UnreadStore{counts: make(map[string]map[string]int64)}
}

// Increment 为每个用户在该容器下的未读数加一
func (u *UnreadStore) Increment(ctx context.Context, parentID string, userIDs []string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.FailIncrement != nil {
		return u.FailIncrement
	}
	for _, id := range userIDs {
		m := u.counts[id]
		if m == nil {
			m = make(map[string]int64)
			u.counts[id] = m
		}
		m[parentID]++
	}
	return nil
}

// Clear 清零某用户在该容器下的未读数
func (u *UnreadStore) Clear(ctx context.Context, parentID, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.counts[userID], parentID)
	return nil
}

// Counts 批量读取未读数，没有记录的容器返回 0
func (u *UnreadStore) Counts(ctx context.Context, userID string, parentIDs []string) (map[string]int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int64, len(parentIDs))
	for _, id := range parentIDs {
		out[id] = u.counts[userID][id]
	}
	return out, nil
}
