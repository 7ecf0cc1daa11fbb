package room

import (
	"context"
	"time"

	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// Store 课程群持久化
type Store interface {
	EnsureRoom(ctx context.Context, room *model.Room) (*model.Room, error)
	GetRoomByCourse(ctx context.Context, courseID string) (*model.Room, error)
	ListRooms(ctx context.Context, userID string) ([]model.Room, error)
	AddRoomMember(ctx context.Context, member *model.RoomMember) error
}

// UnreadFiller 为列表填充未读数
type UnreadFiller interface {
	FillRooms(ctx context.Context, userID string, rooms []model.Room) error
}

// Authorizer 成员资格校验，返回成员名单
type Authorizer interface {
	Authorize(ctx context.Context, p model.Principal, parentID string, kind model.ParentKind) ([]model.Participant, error)
}

type roomService struct {
	store  Store
	unread UnreadFiller
	access Authorizer
}

func NewRoomService(store Store, unread UnreadFiller, access Authorizer) *roomService {
	return &roomService{store: store, unread: unread, access: access}
}

func (s *roomService) List(ctx context.Context, p model.Principal) ([]model.Room, error) {
	rooms, err := s.store.ListRooms(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	if err := s.unread.FillRooms(ctx, p.UserID, rooms); err != nil {
		zap.L().Warn("读取课程群未读数失败", zap.String("user_id", p.UserID), zap.Error(err))
	}
	return rooms, nil
}

func (s *roomService) Roster(ctx context.Context, p model.Principal, roomID string) ([]model.Participant, error) {
	return s.access.Authorize(ctx, p, roomID, model.KindRoom)
}

// Ensure 课程已有群时更新标题、封面与讲师
func (s *roomService) Ensure(ctx context.Context, courseID string, req request.EnsureRoomRequest) (*model.Room, error) {
	room, err := s.store.EnsureRoom(ctx, &model.Room{
		ID:             snowflake.GenerateIDString(constants.ROOM_PREFIX),
		CourseID:       courseID,
		Title:          req.Title,
		Thumbnail:      req.Thumbnail,
		InstructorID:   req.InstructorID,
		InstructorName: req.InstructorName,
	})
	if err != nil {
		zap.L().Error("同步课程群失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	zap.L().Info("课程群已同步", zap.String("course_id", courseID), zap.String("room_id", room.ID))
	return room, nil
}

// Enroll 课程没有课程群时返回 NotFound
func (s *roomService) Enroll(ctx context.Context, courseID string, req request.EnrollmentRequest) error {
	room, err := s.store.GetRoomByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	return s.store.AddRoomMember(ctx, &model.RoomMember{
		RoomID:   room.ID,
		UserID:   req.UserID,
		Name:     req.Name,
		JoinedAt: time.Now(),
	})
}
