package chat

import (
	"sort"
	"sync"
)

// parentLocks 按容器加锁，同一容器的发送、加入、输入状态变化串行执行
// 不同容器互不影响；引用计数归零时回收锁对象
type parentLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newParentLocks() *parentLocks {
	return &parentLocks{locks: make(map[string]*refMutex)}
}

// Lock 返回解锁函数
func (p *parentLocks) Lock(parentID string) func() {
	p.mu.Lock()
	m := p.locks[parentID]
	if m == nil {
		m = &refMutex{}
		p.locks[parentID] = m
	}
	m.refs++
	p.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		p.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(p.locks, parentID)
		}
		p.mu.Unlock()
	}
}

// LockAll 按字典序依次加锁，避免多个容器同时加锁时死锁
func (p *parentLocks) LockAll(parentIDs []string) func() {
	ids := append([]string(nil), parentIDs...)
	sort.Strings(ids)
	unlocks := make([]func(), 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		unlocks = append(unlocks, p.Lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// size 当前持有或等待中的锁数量
func (p *parentLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
