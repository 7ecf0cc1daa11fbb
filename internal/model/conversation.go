package model

import "time"

// Conversation 学生与讲师围绕某门课程的私聊
// (student_id, instructor_id, course_id) 唯一，重复创建返回已有会话
type Conversation struct {
	ID             string     `gorm:"column:id;primaryKey;type:varchar(32)" bson:"_id" json:"id"`
	StudentID      string     `gorm:"column:student_id;uniqueIndex:uk_conversation_triple,priority:1;type:varchar(64);not null" bson:"student_id" json:"studentId"`
	StudentName    string     `gorm:"column:student_name;type:varchar(64);not null;default:''" bson:"student_name" json:"studentName"`
	InstructorID   string     `gorm:"column:instructor_id;uniqueIndex:uk_conversation_triple,priority:2;index;type:varchar(64);not null" bson:"instructor_id" json:"instructorId"`
	InstructorName string     `gorm:"column:instructor_name;type:varchar(64);not null;default:''" bson:"instructor_name" json:"instructorName"`
	CourseID       string     `gorm:"column:course_id;uniqueIndex:uk_conversation_triple,priority:3;type:varchar(64);not null" bson:"course_id" json:"courseId"`
	LastMessage    string     `gorm:"column:last_message;type:varchar(512);not null;default:''" bson:"last_message" json:"lastMessage"`
	LastMessageAt  *time.Time `gorm:"column:last_message_at" bson:"last_message_at,omitempty" json:"lastMessageAt,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" bson:"updated_at" json:"updatedAt"`

	// UnreadCount 当前查询者的未读数，读取时由未读计数存储填充
	UnreadCount int64 `gorm:"-" bson:"-" json:"unreadCount"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversation"
}

// HasParticipant 判断用户是否为会话的一方
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.StudentID == userID || c.InstructorID == userID)
}

// Participants 会话双方
func (c *Conversation) Participants() []Participant {
	return []Participant{
		{UserID: c.StudentID, Name: c.StudentName, Role: RoleStudent},
		{UserID: c.InstructorID, Name: c.InstructorName, Role: RoleInstructor},
	}
}

// Counterpart 返回会话中除 userID 以外的另一方
func (c *Conversation) Counterpart(userID string) string {
	if c.StudentID == userID {
		return c.InstructorID
	}
	return c.StudentID
}
