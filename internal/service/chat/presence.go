package chat

import (
	"sort"
	"sync"
	"time"

	"course_chat_server/internal/model"
)

// typingEntry 一个 (容器, 用户) 的 Typing 状态
// gen 每次重置定时器时递增，过期回调携带旧 gen 时视为已失效
type typingEntry struct {
	who       model.Principal
	gen       uint64
	timer     *time.Timer
	expiresAt time.Time
}

// TypingTracker 正在输入状态表，只存内存
// 状态机：Idle -(start)-> Typing -(stop / 静默超时 / 退出 / 断开)-> Idle
type TypingTracker struct {
	mu       sync.Mutex
	quiet    time.Duration
	seq      uint64
	entries  map[string]map[string]*typingEntry // parentID -> userID -> entry
	onExpire func(parentID, userID string, gen uint64)
}

// NewTypingTracker quiet 为静默超时；onExpire 在定时器到期时于独立 goroutine 中调用
func NewTypingTracker(quiet time.Duration, onExpire func(parentID, userID string, gen uint64)) *TypingTracker {
	return &TypingTracker{
		quiet:    quiet,
		entries:  make(map[string]map[string]*typingEntry),
		onExpire: onExpire,
	}
}

// Start 进入或保持 Typing，每次都重置定时器
// 只有 Idle -> Typing 的转换返回 true，调用方据此决定是否广播
func (t *TypingTracker) Start(parentID string, who model.Principal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := t.entries[parentID]
	if users == nil {
		users = make(map[string]*typingEntry)
		t.entries[parentID] = users
	}
	e, existed := users[who.UserID]
	if existed {
		e.timer.Stop()
	} else {
		e = &typingEntry{who: who}
		users[who.UserID] = e
	}
	t.seq++
	gen := t.seq
	e.gen = gen
	e.expiresAt = time.Now().Add(t.quiet)
	userID := who.UserID
	e.timer = time.AfterFunc(t.quiet, func() {
		if t.onExpire != nil {
			t.onExpire(parentID, userID, gen)
		}
	})
	return !existed
}

// Stop 显式结束输入，原本处于 Typing 时返回 true
func (t *TypingTracker) Stop(parentID, userID string) (model.Principal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(parentID, userID, 0)
}

// Expire 定时器到期，gen 不是最新一代时忽略
func (t *TypingTracker) Expire(parentID, userID string, gen uint64) (model.Principal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(parentID, userID, gen)
}

func (t *TypingTracker) removeLocked(parentID, userID string, gen uint64) (model.Principal, bool) {
	users := t.entries[parentID]
	e, ok := users[userID]
	if !ok || (gen != 0 && e.gen != gen) {
		return model.Principal{}, false
	}
	e.timer.Stop()
	delete(users, userID)
	if len(users) == 0 {
		delete(t.entries, parentID)
	}
	return e.who, true
}

// IsTyping 用户在容器中是否处于 Typing
func (t *TypingTracker) IsTyping(parentID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[parentID][userID]
	return ok
}

// Typing 容器中正在输入的用户，按用户 ID 排序
func (t *TypingTracker) Typing(parentID string) []model.Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Participant, 0, len(t.entries[parentID]))
	for _, e := range t.entries[parentID] {
		out = append(out, model.Participant{UserID: e.who.UserID, Name: e.who.Name, Role: e.who.Role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Count 处于 Typing 的 (容器, 用户) 数量
func (t *TypingTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, users := range t.entries {
		n += len(users)
	}
	return n
}
