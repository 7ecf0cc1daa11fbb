// Package model 定义聊天子系统的实体模型
// 同一结构体同时带 gorm 与 bson 标签，供 MySQL 与 MongoDB 两种存储共用
package model

// Role 用户在课程中的角色
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleInstructor
}

// ParentKind 消息所属容器的类型
type ParentKind string

const (
	KindConversation ParentKind = "conversation" // 学生与讲师的一对一私聊
	KindRoom         ParentKind = "room"         // 课程群聊
)

// Valid 是否为已知容器类型
func (k ParentKind) Valid() bool {
	return k == KindConversation || k == KindRoom
}

// Principal 经身份校验后的连接主体
type Principal struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
}

// Participant 会话或课程群中的一名成员
type Participant struct {
	UserID string `json:"userId" bson:"user_id"`
	Name   string `json:"name" bson:"name"`
	Role   Role   `json:"role" bson:"role"`
}
