package model

import "time"

// Room 课程群聊，每门课程一个
// 成员名单由课程服务维护（讲师 + 已报名学生）
type Room struct {
	ID             string     `gorm:"column:id;primaryKey;type:varchar(32)" bson:"_id" json:"id"`
	CourseID       string     `gorm:"column:course_id;uniqueIndex;type:varchar(64);not null" bson:"course_id" json:"courseId"`
	Title          string     `gorm:"column:title;type:varchar(128);not null;default:''" bson:"title" json:"title"`
	Thumbnail      string     `gorm:"column:thumbnail;type:varchar(255);not null;default:''" bson:"thumbnail" json:"thumbnail"`
	InstructorID   string     `gorm:"column:instructor_id;index;type:varchar(64);not null" bson:"instructor_id" json:"instructorId"`
	InstructorName string     `gorm:"column:instructor_name;type:varchar(64);not null;default:''" bson:"instructor_name" json:"instructorName"`
	LastMessage    string     `gorm:"column:last_message;type:varchar(512);not null;default:''" bson:"last_message" json:"lastMessage"`
	LastMessageAt  *time.Time `gorm:"column:last_message_at" bson:"last_message_at,omitempty" json:"lastMessageAt,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" bson:"updated_at" json:"updatedAt"`

	UnreadCount int64 `gorm:"-" bson:"-" json:"unreadCount"`
}

// TableName 指定表名
func (Room) TableName() string {
	return "room"
}

// RoomMember 课程群中的学生成员（讲师记录在 Room 上）
type RoomMember struct {
	ID       uint      `gorm:"column:id;primaryKey;autoIncrement" bson:"-" json:"-"`
	RoomID   string    `gorm:"column:room_id;uniqueIndex:uk_room_member,priority:1;type:varchar(32);not null" bson:"room_id" json:"roomId"`
	UserID   string    `gorm:"column:user_id;uniqueIndex:uk_room_member,priority:2;index;type:varchar(64);not null" bson:"user_id" json:"userId"`
	Name     string    `gorm:"column:name;type:varchar(64);not null;default:''" bson:"name" json:"name"`
	JoinedAt time.Time `gorm:"column:joined_at" bson:"joined_at" json:"joinedAt"`
}

// TableName 指定表名
func (RoomMember) TableName() string {
	return "room_member"
}

// Roster 讲师在前，其后为学生
func (r *Room) Roster(members []RoomMember) []Participant {
	roster := make([]Participant, 0, len(members)+1)
	roster = append(roster, Participant{UserID: r.InstructorID, Name: r.InstructorName, Role: RoleInstructor})
	for _, m := range members {
		if m.UserID == r.InstructorID {
			continue
		}
		roster = append(roster, Participant{UserID: m.UserID, Name: m.Name, Role: RoleStudent})
	}
	return roster
}
