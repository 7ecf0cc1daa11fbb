package conversation

import (
	"context"

	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/errorx"
	"course_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// Store 私聊持久化
type Store interface {
	CreateOrGetConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	GetRoomByCourse(ctx context.Context, courseID string) (*model.Room, error)
	ListRoomMembers(ctx context.Context, roomID string) ([]model.RoomMember, error)
}

// UnreadFiller 为列表填充未读数
type UnreadFiller interface {
	FillConversations(ctx context.Context, userID string, convs []model.Conversation) error
}

// conversationService 私聊业务逻辑实现
type conversationService struct {
	store  Store
	unread UnreadFiller
}

// NewConversationService 构造函数，注入所有依赖
func NewConversationService(store Store, unread UnreadFiller) *conversationService {
	return &conversationService{store: store, unread: unread}
}

// List 未读数读取失败时仍返回列表，计数为 0
func (s *conversationService) List(ctx context.Context, p model.Principal) ([]model.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	if err := s.unread.FillConversations(ctx, p.UserID, convs); err != nil {
		zap.L().Warn("读取私聊未读数失败", zap.String("user_id", p.UserID), zap.Error(err))
	}
	return convs, nil
}

// Open 调用方必须是其中一方且角色匹配；并发调用返回同一个私聊
// 讲师必须是该课程的讲师，学生必须已报名，双方昵称取自课程群记录
func (s *conversationService) Open(ctx context.Context, p model.Principal, req request.OpenConversationRequest) (*model.Conversation, error) {
	switch {
	case p.Role == model.RoleStudent && p.UserID == req.StudentID:
	case p.Role == model.RoleInstructor && p.UserID == req.InstructorID:
	default:
		return nil, errorx.New(errorx.CodeForbidden, "只能打开自己参与的私聊")
	}
	if req.StudentID == req.InstructorID {
		return nil, errorx.New(errorx.CodeInvalidParam, "学生与讲师不能是同一人")
	}

	room, err := s.store.GetRoomByCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if room.InstructorID != req.InstructorID {
		return nil, errorx.New(errorx.CodeForbidden, "该讲师不是这门课程的讲师")
	}
	student, err := s.enrolled(ctx, room.ID, req.StudentID)
	if err != nil {
		return nil, err
	}

	conv, err := s.store.CreateOrGetConversation(ctx, &model.Conversation{
		ID:             snowflake.GenerateIDString(constants.CONVERSATION_PREFIX),
		StudentID:      student.UserID,
		StudentName:    student.Name,
		InstructorID:   room.InstructorID,
		InstructorName: room.InstructorName,
		CourseID:       req.CourseID,
	})
	if err != nil {
		zap.L().Error("获取或创建私聊失败",
			zap.String("student_id", req.StudentID),
			zap.String("instructor_id", req.InstructorID),
			zap.String("course_id", req.CourseID),
			zap.Error(err),
		)
		return nil, err
	}
	return conv, nil
}

// enrolled 学生在课程群中的成员记录，未报名返回 Forbidden
func (s *conversationService) enrolled(ctx context.Context, roomID, studentID string) (*model.RoomMember, error) {
	members, err := s.store.ListRoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].UserID == studentID {
			return &members[i], nil
		}
	}
	return nil, errorx.New(errorx.CodeForbidden, "该学生未报名这门课程")
}
