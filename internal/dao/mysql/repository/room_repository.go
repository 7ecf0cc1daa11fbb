package repository

import (
	"context"
	"time"

	"course_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository 创建课程群 Repository
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询课程群 id=%s", id)
	}
	return &room, nil
}

func (r *roomRepository) FindByCourseID(ctx context.Context, courseID string) (*model.Room, error) {
	var room model.Room
	if err := r.db.WithContext(ctx).Where("course_id = ?", courseID).First(&room).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询课程群 course=%s", courseID)
	}
	return &room, nil
}

func (r *roomRepository) FindByUser(ctx context.Context, userID string) ([]model.Room, error) {
	var rooms []model.Room
	sub := r.db.Model(&model.RoomMember{}).Select("room_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("instructor_id = ? OR id IN (?)", userID, sub).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询课程群列表 user=%s", userID)
	}
	return rooms, nil
}

func (r *roomRepository) Upsert(ctx context.Context, room *model.Room) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "thumbnail", "instructor_id", "instructor_name", "updated_at"}),
	}).Create(room).Error
	return wrapDBErrorf(err, "保存课程群 course=%s", room.CourseID)
}

func (r *roomRepository) UpdateLastMessage(ctx context.Context, id, preview string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Room{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_message":    preview,
		"last_message_at": at,
		"updated_at":      at,
	})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "更新课程群预览 id=%s", id)
	}
	if res.RowsAffected == 0 {
		return wrapDBErrorf(gorm.ErrRecordNotFound, "更新课程群预览 id=%s", id)
	}
	return nil
}

type roomMemberRepository struct {
	db *gorm.DB
}

// NewRoomMemberRepository 创建课程群成员 Repository
func NewRoomMemberRepository(db *gorm.DB) RoomMemberRepository {
	return &roomMemberRepository{db: db}
}

func (r *roomMemberRepository) FindByRoomID(ctx context.Context, roomID string) ([]model.RoomMember, error) {
	var members []model.RoomMember
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("joined_at ASC, user_id ASC").Find(&members).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询课程群成员 room=%s", roomID)
	}
	return members, nil
}

func (r *roomMemberRepository) Exists(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.RoomMember{}).Where("room_id = ? AND user_id = ?", roomID, userID).Count(&count).Error; err != nil {
		return false, wrapDBErrorf(err, "查询课程群成员 room=%s user=%s", roomID, userID)
	}
	return count > 0, nil
}

func (r *roomMemberRepository) Upsert(ctx context.Context, member *model.RoomMember) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(member).Error
	return wrapDBErrorf(err, "保存课程群成员 room=%s user=%s", member.RoomID, member.UserID)
}
