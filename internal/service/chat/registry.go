// Package chat 实现了课程聊天的核心服务层
// registry.go
// 核心职责：连接注册表
// 1. 维护 连接ID -> Session 映射
// 2. 维护 容器ID -> 已加入连接 的只读快照，扇出时无需持锁遍历
// 3. 注销连接时一次性移除其所有成员关系
package chat

import (
	"sync"

	"course_chat_server/internal/model"

	"github.com/gorilla/websocket"
)

// Registry 连接注册表
// parents 中的切片只整体替换不原地修改（写时复制），扇出拿到的快照不会被并发修改
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	parents  map[string][]*Session
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		parents:  make(map[string][]*Session),
	}
}

// Register 为已认证的主体创建会话，主体无效时不创建任何状态
func (r *Registry) Register(conn Conn, p model.Principal) (*Session, error) {
	if p.UserID == "" || !p.Role.Valid() {
		return nil, ErrUnauthenticated
	}
	s := newSession(conn, p)
	r.mu.Lock()
	r.sessions[conn.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Session 按连接 ID 查询会话
func (r *Registry) Session(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Join 将连接加入容器的扇出集合，重复加入返回 false
func (r *Registry) Join(connID, parentID string, kind model.ParentKind) (bool, error) {
	return r.join(connID, parentID, kind, false)
}

// JoinCatchUp 同 Join，但在会话进入扇出集合之前就开始暂存下行事件
// 调用方必须随后调用 finishCatchUp 或 abortCatchUp
func (r *Registry) JoinCatchUp(connID, parentID string, kind model.ParentKind) (bool, error) {
	return r.join(connID, parentID, kind, true)
}

func (r *Registry) join(connID, parentID string, kind model.ParentKind, catchUp bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return false, ErrUnauthenticated
	}
	if catchUp {
		s.beginCatchUp(parentID)
	}
	if !s.addParent(parentID, kind) {
		return false, nil
	}
	old := r.parents[parentID]
	next := make([]*Session, len(old), len(old)+1)
	copy(next, old)
	r.parents[parentID] = append(next, s)
	return true, nil
}

// Leave 退出容器，未加入时返回 false
func (r *Registry) Leave(connID, parentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok || !s.removeParent(parentID) {
		return false
	}
	r.dropLocked(parentID, connID)
	return true
}

// Unregister 移除会话及其全部成员关系，返回被移除的会话
func (r *Registry) Unregister(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, connID)
	for _, parentID := range s.Parents() {
		s.removeParent(parentID)
		r.dropLocked(parentID, connID)
	}
	return s, true
}

func (r *Registry) dropLocked(parentID, connID string) {
	old := r.parents[parentID]
	next := make([]*Session, 0, len(old))
	for _, s := range old {
		if s.ID() != connID {
			next = append(next, s)
		}
	}
	if len(next) == 0 {
		delete(r.parents, parentID)
		return
	}
	r.parents[parentID] = next
}

// Members 当前加入容器的连接快照
func (r *Registry) Members(parentID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parents[parentID]
}

// FanOut 投递给所有已加入容器的连接（exceptConnID 除外），返回成功投递数
// 投递失败（连接已断开或缓冲区满）直接跳过
func (r *Registry) FanOut(parentID string, msgID int64, payload []byte, exceptConnID string) int {
	delivered := 0
	for _, s := range r.Members(parentID) {
		if exceptConnID != "" && s.ID() == exceptConnID {
			continue
		}
		if s.deliver(parentID, msgID, payload) {
			delivered++
		}
	}
	return delivered
}

// UserJoined 用户是否有任一连接加入了该容器
func (r *Registry) UserJoined(parentID, userID string) bool {
	for _, s := range r.Members(parentID) {
		if s.Principal.UserID == userID {
			return true
		}
	}
	return false
}

// UserConnected 用户是否有在线连接
func (r *Registry) UserConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Principal.UserID == userID {
			return true
		}
	}
	return false
}

// Stats 在线连接数与有成员的容器数
func (r *Registry) Stats() (connections, parents int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.parents)
}

// CloseAll 关闭全部连接，用于进程退出
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		s.conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
