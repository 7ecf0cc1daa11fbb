// Package memory 提供进程内的存储实现
// 用于本地开发（storeDriver = "memory"）和单元测试，行为与 MySQL / MongoDB 实现保持一致
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/errorx"
	"course_chat_server/pkg/util/snowflake"
)

type conversationKey struct {
	studentID, instructorID, courseID string
}

// Store 内存版持久化服务
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	byTriple      map[conversationKey]string
	rooms         map[string]*model.Room
	roomByCourse  map[string]string
	members       map[string]map[string]model.RoomMember // roomID -> userID -> member
	messages      map[string][]model.Message             // parentID -> 按 ID 升序
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*model.Conversation),
		byTriple:      make(map[conversationKey]string),
		rooms:         make(map[string]*model.Room),
		roomByCourse:  make(map[string]string),
		members:       make(map[string]map[string]model.RoomMember),
		messages:      make(map[string][]model.Message),
	}
}

// ==================== 会话 ====================

// CreateOrGetConversation 按 (学生, 讲师, 课程) 获取会话，不存在则创建
func (s *Store) CreateOrGetConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conversationKey{conv.StudentID, conv.InstructorID, conv.CourseID}
	if id, ok := s.byTriple[key]; ok {
		existing := *s.conversations[id]
		return &existing, nil
	}
	created := *conv
	if created.ID == "" {
		created.ID = snowflake.GenerateIDString(constants.CONVERSATION_PREFIX)
	}
	now := time.Now()
	created.CreatedAt, created.UpdatedAt = now, now
	s.conversations[created.ID] = &created
	s.byTriple[key] = created.ID

	out := created
	return &out, nil
}

// GetConversation 按 ID 查询会话
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "会话 %s 不存在", id)
	}
	out := *c
	return &out, nil
}

// ListConversations 用户参与的所有会话，最近有消息的在前
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Conversation
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i].LastMessageAt, out[i].CreatedAt).After(lastActivity(out[j].LastMessageAt, out[j].CreatedAt)) })
	return out, nil
}

// ==================== 课程群 ====================

// EnsureRoom 按课程获取课程群，不存在则创建；已存在时更新标题、封面和讲师信息
func (s *Store) EnsureRoom(ctx context.Context, room *model.Room) (*model.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if id, ok := s.roomByCourse[room.CourseID]; ok {
		existing := s.rooms[id]
		existing.Title = room.Title
		existing.Thumbnail = room.Thumbnail
		existing.InstructorID = room.InstructorID
		existing.InstructorName = room.InstructorName
		existing.UpdatedAt = now
		out := *existing
		return &out, nil
	}
	created := *room
	if created.ID == "" {
		created.ID = snowflake.GenerateIDString(constants.ROOM_PREFIX)
	}
	created.CreatedAt, created.UpdatedAt = now, now
	s.rooms[created.ID] = &created
	s.roomByCourse[created.CourseID] = created.ID
	out := created
	return &out, nil
}

// GetRoom 按 ID 查询课程群
func (s *Store) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "课程群 %s 不存在", id)
	}
	out := *r
	return &out, nil
}

// GetRoomByCourse 按课程查询课程群
func (s *Store) GetRoomByCourse(ctx context.Context, courseID string) (*model.Room, error) {
	s.mu.RLock()
	id, ok := s.roomByCourse[courseID]
	s.mu.RUnlock()
	if !ok {
		return nil, errorx.Newf(errorx.CodeNotFound, "课程 %s 没有课程群", courseID)
	}
	return s.GetRoom(ctx, id)
}

// AddRoomMember 添加课程群成员，重复添加只更新昵称
func (s *Store) AddRoomMember(ctx context.Context, member *model.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[member.RoomID]; !ok {
		return errorx.Newf(errorx.CodeNotFound, "课程群 %s 不存在", member.RoomID)
	}
	set := s.members[member.RoomID]
	if set == nil {
		set = make(map[string]model.RoomMember)
		s.members[member.RoomID] = set
	}
	m := *member
	if old, ok := set[m.UserID]; ok {
		m.JoinedAt = old.JoinedAt
	} else if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	set[m.UserID] = m
	return nil
}

// ListRoomMembers 课程群学生成员，按加入时间排序
func (s *Store) ListRoomMembers(ctx context.Context, roomID string) ([]model.RoomMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RoomMember, 0, len(s.members[roomID]))
	for _, m := range s.members[roomID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// IsRoomMember 用户是否为课程群讲师或已报名学生
func (s *Store) IsRoomMember(ctx context.Context, roomID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return false, errorx.Newf(errorx.CodeNotFound, "课程群 %s 不存在", roomID)
	}
	if r.InstructorID == userID {
		return true, nil
	}
	_, ok = s.members[roomID][userID]
	return ok, nil
}

// ListRooms 用户所在的课程群（作为讲师或学生）
func (s *Store) ListRooms(ctx context.Context, userID string) ([]model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Room
	for id, r := range s.rooms {
		if _, ok := s.members[id][userID]; ok || r.InstructorID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i].LastMessageAt, out[i].CreatedAt).After(lastActivity(out[j].LastMessageAt, out[j].CreatedAt)) })
	return out, nil
}

// ==================== 消息 ====================

// SaveMessage 保存消息并更新所属容器的最后一条消息，两者同时成功或同时失败
func (s *Store) SaveMessage(ctx context.Context, msg *model.Message, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := msg.CreatedAt
	switch msg.ParentKind {
	case model.KindConversation:
		c, ok := s.conversations[msg.ParentID]
		if !ok {
			return errorx.Newf(errorx.CodeNotFound, "会话 %s 不存在", msg.ParentID)
		}
		c.LastMessage, c.LastMessageAt, c.UpdatedAt = preview, &at, at
	case model.KindRoom:
		r, ok := s.rooms[msg.ParentID]
		if !ok {
			return errorx.Newf(errorx.CodeNotFound, "课程群 %s 不存在", msg.ParentID)
		}
		r.LastMessage, r.LastMessageAt, r.UpdatedAt = preview, &at, at
	default:
		return errorx.Newf(errorx.CodeInvalidParam, "未知容器类型 %s", msg.ParentKind)
	}

	stored := *msg
	stored.Mentions = append([]string(nil), msg.Mentions...)
	list := s.messages[msg.ParentID]
	idx := sort.Search(len(list), func(i int) bool { return list[i].ID >= stored.ID })
	list = append(list, model.Message{})
	copy(list[idx+1:], list[idx:])
	list[idx] = stored
	s.messages[msg.ParentID] = list
	return nil
}

// ListMessages 返回 ID 小于 before（为 0 时不限）的最新 limit 条消息，按 ID 倒序
func (s *Store) ListMessages(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.messages[parentID]
	end := len(list)
	if before > 0 {
		end = sort.Search(len(list), func(i int) bool { return list[i].ID >= before })
	}
	out := make([]model.Message, 0, limit)
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// UpdateMessageStatus 批量更新投递状态，只允许状态前进
func (s *Store) UpdateMessageStatus(ctx context.Context, parentID string, ids []int64, status model.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	list := s.messages[parentID]
	for i := range list {
		if _, ok := want[list[i].ID]; ok && statusRank(list[i].Status) < statusRank(status) {
			list[i].Status = status
		}
	}
	return nil
}

// MarkRead 将会话中对方发来的消息标记为已读
func (s *Store) MarkRead(ctx context.Context, parentID, readerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.messages[parentID]
	for i := range list {
		if list[i].ParentKind == model.KindConversation && list[i].SenderID != readerID {
			list[i].Status = model.StatusRead
		}
	}
	return nil
}

// Messages 返回容器内全部消息的副本，供测试断言
func (s *Store) Messages(parentID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages[parentID]...)
}

func statusRank(s model.MessageStatus) int {
	switch s {
	case model.StatusDelivered:
		return 1
	case model.StatusRead:
		return 2
	default:
		return 0
	}
}

func lastActivity(last *time.Time, created time.Time) time.Time {
	if last != nil {
		return *last
	}
	return created
}
