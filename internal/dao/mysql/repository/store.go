package repository

import (
	"context"
	"time"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/errorx"
	"course_chat_server/pkg/util/snowflake"
)

// Store 将各 Repository 组合成聊天核心与查询服务需要的持久化接口
type Store struct {
	repos *Repositories
}

// NewStore 创建 MySQL 持久化服务
func NewStore(repos *Repositories) *Store {
	return &Store{repos: repos}
}

// CreateOrGetConversation 先查后插，插入冲突时再查一次，保证同一三元组只有一个会话
func (s *Store) CreateOrGetConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	existing, err := s.repos.Conversation.FindByTriple(ctx, conv.StudentID, conv.InstructorID, conv.CourseID)
	if err == nil {
		return existing, nil
	}
	if !errorx.IsNotFound(err) {
		return nil, err
	}

	created := *conv
	if created.ID == "" {
		created.ID = snowflake.GenerateIDString(constants.CONVERSATION_PREFIX)
	}
	if err := s.repos.Conversation.CreateIgnoreConflict(ctx, &created); err != nil {
		return nil, err
	}
	return s.repos.Conversation.FindByTriple(ctx, conv.StudentID, conv.InstructorID, conv.CourseID)
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return s.repos.Conversation.FindByID(ctx, id)
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return s.repos.Conversation.FindByParticipant(ctx, userID)
}

// EnsureRoom 按课程 upsert 课程群后回读，返回库中实际的课程群 ID
func (s *Store) EnsureRoom(ctx context.Context, room *model.Room) (*model.Room, error) {
	r := *room
	if r.ID == "" {
		r.ID = snowflake.GenerateIDString(constants.ROOM_PREFIX)
	}
	if err := s.repos.Room.Upsert(ctx, &r); err != nil {
		return nil, err
	}
	return s.repos.Room.FindByCourseID(ctx, room.CourseID)
}

func (s *Store) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return s.repos.Room.FindByID(ctx, id)
}

func (s *Store) GetRoomByCourse(ctx context.Context, courseID string) (*model.Room, error) {
	return s.repos.Room.FindByCourseID(ctx, courseID)
}

func (s *Store) ListRooms(ctx context.Context, userID string) ([]model.Room, error) {
	return s.repos.Room.FindByUser(ctx, userID)
}

func (s *Store) AddRoomMember(ctx context.Context, member *model.RoomMember) error {
	if _, err := s.repos.Room.FindByID(ctx, member.RoomID); err != nil {
		return err
	}
	m := *member
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return s.repos.RoomMember.Upsert(ctx, &m)
}

func (s *Store) ListRoomMembers(ctx context.Context, roomID string) ([]model.RoomMember, error) {
	return s.repos.RoomMember.FindByRoomID(ctx, roomID)
}

func (s *Store) IsRoomMember(ctx context.Context, roomID, userID string) (bool, error) {
	room, err := s.repos.Room.FindByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.InstructorID == userID {
		return true, nil
	}
	return s.repos.RoomMember.Exists(ctx, roomID, userID)
}

// SaveMessage 在同一事务中写入消息并更新容器预览
func (s *Store) SaveMessage(ctx context.Context, msg *model.Message, preview string) error {
	return s.repos.Transaction(ctx, func(tx *Repositories) error {
		if err := tx.Message.Create(ctx, msg); err != nil {
			return err
		}
		switch msg.ParentKind {
		case model.KindConversation:
			return tx.Conversation.UpdateLastMessage(ctx, msg.ParentID, preview, msg.CreatedAt)
		case model.KindRoom:
			return tx.Room.UpdateLastMessage(ctx, msg.ParentID, preview, msg.CreatedAt)
		default:
			return errorx.Newf(errorx.CodeInvalidParam, "未知容器类型 %s", msg.ParentKind)
		}
	})
}

func (s *Store) ListMessages(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error) {
	return s.repos.Message.FindPage(ctx, parentID, before, limit)
}

func (s *Store) UpdateMessageStatus(ctx context.Context, parentID string, ids []int64, status model.MessageStatus) error {
	return s.repos.Message.UpdateStatus(ctx, parentID, ids, status)
}

func (s *Store) MarkRead(ctx context.Context, parentID, readerID string) error {
	return s.repos.Message.MarkReadBy(ctx, parentID, readerID)
}
