// Package chat 实现了课程聊天的核心服务层
// server.go
// 核心职责：聊天服务聚合结构和依赖注入
// 连接注册表、正在输入状态、扇出代理和存储在这里组装，对外提供连接生命周期与事件处理入口
package chat

import (
	"context"
	"time"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// Store 聊天核心依赖的持久化服务
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	ListRoomMembers(ctx context.Context, roomID string) ([]model.RoomMember, error)
	IsRoomMember(ctx context.Context, roomID, userID string) (bool, error)
	// SaveMessage 写入消息并更新容器的最后一条消息预览，两者原子完成
	SaveMessage(ctx context.Context, msg *model.Message, preview string) error
	// ListMessages 按 ID 倒序返回 before 之前（0 表示最新）的 limit 条
	ListMessages(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error)
	UpdateMessageStatus(ctx context.Context, parentID string, ids []int64, status model.MessageStatus) error
	MarkRead(ctx context.Context, parentID, readerID string) error
}

// TaskRunner 异步执行尽力而为的后台任务
type TaskRunner interface {
	Submit(task func())
}

// Options 聊天核心参数
type Options struct {
	TypingQuiet      time.Duration
	HistoryPageSize  int
	MaxContentLength int
}

func (o *Options) applyDefaults() {
	if o.TypingQuiet <= 0 {
		o.TypingQuiet = constants.TYPING_QUIET_MILLIS * time.Millisecond
	}
	if o.HistoryPageSize <= 0 {
		o.HistoryPageSize = constants.HISTORY_PAGE_SIZE
	}
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = constants.MAX_CONTENT_LENGTH
	}
}

// Server 聊天服务
type Server struct {
	store    Store
	unread   *UnreadAggregator
	registry *Registry
	typing   *TypingTracker
	locks    *parentLocks
	broker   Broker
	tasks    TaskRunner
	opts     Options
}

// NewServer 组装聊天服务；broker 需与 registry 指向同一注册表
func NewServer(store Store, unread *UnreadAggregator, registry *Registry, broker Broker, tasks TaskRunner, opts Options) *Server {
	opts.applyDefaults()
	s := &Server{
		store:    store,
		unread:   unread,
		registry: registry,
		locks:    newParentLocks(),
		broker:   broker,
		tasks:    tasks,
		opts:     opts,
	}
	s.typing = NewTypingTracker(opts.TypingQuiet, s.expireTyping)
	return s
}

// Registry 连接注册表
func (s *Server) Registry() *Registry {
	return s.registry
}

// Connect 为已通过身份校验的连接创建会话
func (s *Server) Connect(conn Conn, p model.Principal) (*Session, error) {
	sess, err := s.registry.Register(conn, p)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("连接已注册", zap.String("conn_id", conn.ID()), zap.String("user_id", p.UserID))
	return sess, nil
}

// Disconnect 注销连接并清除该用户在各容器中的输入状态
// 先锁住该连接加入的全部容器，注销与输入状态清理对同容器的其他事件是原子的
func (s *Server) Disconnect(connID string) {
	sess, ok := s.registry.Session(connID)
	if !ok {
		return
	}
	parents := sess.Parents()
	unlock := s.locks.LockAll(parents)
	defer unlock()

	s.registry.Unregister(connID)
	for _, parentID := range parents {
		s.clearTypingLocked(context.Background(), parentID, sess.Principal.UserID, "")
	}
	zap.L().Debug("连接已注销", zap.String("conn_id", connID), zap.String("user_id", sess.Principal.UserID), zap.Int("parents", len(parents)))
}

// Leave 退出容器，未加入时为空操作
func (s *Server) Leave(ctx context.Context, sess *Session, parentID string) error {
	if parentID == "" {
		return validationf("parentId 不能为空")
	}
	unlock := s.locks.Lock(parentID)
	defer unlock()
	if s.registry.Leave(sess.ID(), parentID) {
		s.clearTypingLocked(ctx, parentID, sess.Principal.UserID, sess.ID())
	}
	return nil
}

// MarkRead 清零未读并将对方消息标记为已读
func (s *Server) MarkRead(ctx context.Context, sess *Session, parentID string) error {
	kind, ok := sess.Joined(parentID)
	if !ok {
		return ErrNotJoined
	}
	s.markRead(ctx, parentID, kind, sess.Principal.UserID)
	return nil
}

func (s *Server) markRead(ctx context.Context, parentID string, kind model.ParentKind, userID string) {
	if err := s.unread.Clear(ctx, parentID, userID); err != nil {
		zap.L().Error("清除未读数失败", zap.String("parent_id", parentID), zap.String("user_id", userID), zap.Error(err))
	}
	if kind != model.KindConversation {
		return
	}
	s.tasks.Submit(func() {
		if err := s.store.MarkRead(context.Background(), parentID, userID); err != nil {
			zap.L().Warn("标记已读失败", zap.String("parent_id", parentID), zap.Error(err))
		}
	})
}

// Stats 运行时统计
type Stats struct {
	Connections int
	Parents     int
	Typing      int
}

func (s *Server) Stats() Stats {
	conns, parents := s.registry.Stats()
	return Stats{Connections: conns, Parents: parents, Typing: s.typing.Count()}
}

// Shutdown 关闭全部连接与扇出代理
func (s *Server) Shutdown() {
	s.registry.CloseAll()
	if err := s.broker.Close(); err != nil {
		zap.L().Error("关闭扇出代理失败", zap.Error(err))
	}
}

// target 鉴权通过的容器及其成员名单
type target struct {
	kind         model.ParentKind
	conversation *model.Conversation
	room         *model.Room
	roster       []model.Participant
}

// authorize 主体必须是会话的一方，或课程群的讲师/已报名学生
func (s *Server) authorize(ctx context.Context, p model.Principal, parentID string, kind model.ParentKind) (*target, error) {
	switch kind {
	case model.KindConversation:
		conv, err := s.store.GetConversation(ctx, parentID)
		if err != nil {
			return nil, persistenceError(err, "查询会话")
		}
		if !conv.HasParticipant(p.UserID) {
			return nil, ErrNotAuthorized
		}
		return &target{kind: kind, conversation: conv, roster: conv.Participants()}, nil
	case model.KindRoom:
		ok, err := s.store.IsRoomMember(ctx, parentID, p.UserID)
		if err != nil {
			return nil, persistenceError(err, "查询课程群成员")
		}
		if !ok {
			return nil, ErrNotAuthorized
		}
		room, err := s.store.GetRoom(ctx, parentID)
		if err != nil {
			return nil, persistenceError(err, "查询课程群")
		}
		members, err := s.store.ListRoomMembers(ctx, parentID)
		if err != nil {
			return nil, persistenceError(err, "查询课程群成员")
		}
		return &target{kind: kind, room: room, roster: room.Roster(members)}, nil
	default:
		return nil, validationf("未知容器类型 %q", kind)
	}
}

// Authorize 校验主体对容器的访问权并返回成员名单，HTTP 查询接口与事件处理共用同一套规则
func (s *Server) Authorize(ctx context.Context, p model.Principal, parentID string, kind model.ParentKind) ([]model.Participant, error) {
	t, err := s.authorize(ctx, p, parentID, kind)
	if err != nil {
		return nil, err
	}
	return t.roster, nil
}

// memberIDs 成员名单中的用户 ID
func (t *target) memberIDs() []string {
	out := make([]string, 0, len(t.roster))
	for _, p := range t.roster {
		out = append(out, p.UserID)
	}
	return out
}
