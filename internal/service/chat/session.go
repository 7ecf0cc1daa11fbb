package chat

import (
	"sort"
	"sync"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"
)

// Conn 一条客户端长连接的发送端，由 gateway 层实现
type Conn interface {
	ID() string
	// Send 非阻塞投递，缓冲区满或连接已关闭时返回错误
	Send(payload []byte) error
	Close(code int, reason string)
}

// pendingEvent 加入过程中暂存的下行事件
type pendingEvent struct {
	msgID   int64
	payload []byte
}

// Session 一条连接的会话状态，连接建立时创建，断开时销毁
type Session struct {
	conn      Conn
	Principal model.Principal

	mu        sync.Mutex
	joined    map[string]model.ParentKind
	seen      map[string]*seenIDs       // 已投递给该连接的消息 ID，只做精确去重
	pending   map[string][]pendingEvent // 正在补发历史的容器
}

// seenIDs 最近投递过的消息 ID 窗口，超出容量时淘汰最早的记录
// 多节点的雪花 ID 不保证按投递顺序递增，因此不能用最大 ID 判断重复
type seenIDs struct {
	ids  map[int64]struct{}
	ring []int64
	next int
}

func newSeenIDs(size int) *seenIDs {
	return &seenIDs{ids: make(map[int64]struct{}, size), ring: make([]int64, size)}
}

// add 记录 id，已存在时返回 false
func (w *seenIDs) add(id int64) bool {
	if _, ok := w.ids[id]; ok {
		return false
	}
	if old := w.ring[w.next]; old != 0 {
		delete(w.ids, old)
	}
	w.ring[w.next] = id
	w.next = (w.next + 1) % len(w.ring)
	w.ids[id] = struct{}{}
	return true
}

func newSession(conn Conn, p model.Principal) *Session {
	return &Session{
		conn:      conn,
		Principal: p,
		joined:    make(map[string]model.ParentKind),
		seen:      make(map[string]*seenIDs),
		pending:   make(map[string][]pendingEvent),
	}
}

// ID 连接 ID
func (s *Session) ID() string {
	return s.conn.ID()
}

// Joined 是否已加入容器
func (s *Session) Joined(parentID string) (model.ParentKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.joined[parentID]
	return kind, ok
}

// Parents 已加入的容器 ID，按字典序
func (s *Session) Parents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joined))
	for id := range s.joined {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reply 直接发给本连接，不经过扇出
func (s *Session) Reply(payload []byte) error {
	return s.conn.Send(payload)
}

func (s *Session) addParent(parentID string, kind model.ParentKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joined[parentID]; ok {
		return false
	}
	s.joined[parentID] = kind
	return true
}

func (s *Session) removeParent(parentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joined[parentID]; !ok {
		return false
	}
	delete(s.joined, parentID)
	delete(s.seen, parentID)
	delete(s.pending, parentID)
	return true
}

// beginCatchUp 之后到达的扇出事件先暂存，直到 finishCatchUp
func (s *Session) beginCatchUp(parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[parentID]; !ok {
		s.pending[parentID] = []pendingEvent{}
	}
}

// finishCatchUp 先发送加入回执，再按顺序放行暂存事件
// pageIDs 为回执中的消息 ID，暂存或之后到达的同 ID 消息不再单独投递
func (s *Session) finishCatchUp(parentID string, pageIDs []int64, ack []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.pending[parentID]
	delete(s.pending, parentID)
	seen := s.seenLocked(parentID)
	for _, id := range pageIDs {
		seen.add(id)
	}
	if err := s.conn.Send(ack); err != nil {
		return err
	}
	for _, ev := range queued {
		s.sendLocked(parentID, ev.msgID, ev.payload)
	}
	return nil
}

// abortCatchUp 加入失败时停止暂存；仍是成员（重复加入）时暂存事件照常投递
func (s *Session) abortCatchUp(parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued := s.pending[parentID]
	delete(s.pending, parentID)
	if _, ok := s.joined[parentID]; !ok {
		return
	}
	for _, ev := range queued {
		s.sendLocked(parentID, ev.msgID, ev.payload)
	}
}

// deliver 扇出到本连接；msgID 为 0 表示非消息事件（如正在输入）
func (s *Session) deliver(parentID string, msgID int64, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joined[parentID]; !ok {
		return false
	}
	if queued, ok := s.pending[parentID]; ok {
		s.pending[parentID] = append(queued, pendingEvent{msgID: msgID, payload: payload})
		return true
	}
	return s.sendLocked(parentID, msgID, payload)
}

func (s *Session) sendLocked(parentID string, msgID int64, payload []byte) bool {
	if msgID > 0 && !s.seenLocked(parentID).add(msgID) {
		return false
	}
	return s.conn.Send(payload) == nil
}

func (s *Session) seenLocked(parentID string) *seenIDs {
	w, ok := s.seen[parentID]
	if !ok {
		w = newSeenIDs(constants.SEEN_WINDOW)
		s.seen[parentID] = w
	}
	return w
}
