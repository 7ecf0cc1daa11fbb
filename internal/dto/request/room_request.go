package request

// RosterRequest 查询课程群成员名单
type RosterRequest struct {
	RoomID string `form:"room_id" binding:"required"`
}

// EnsureRoomRequest 课程服务在创建或更新课程时同步课程群
// 课程 ID 取自路径参数
type EnsureRoomRequest struct {
	Title          string `json:"title" binding:"required,max=128"`
	Thumbnail      string `json:"thumbnail" binding:"omitempty,max=255"`
	InstructorID   string `json:"instructorId" binding:"required,max=64"`
	InstructorName string `json:"instructorName" binding:"max=64"`
}

// EnrollmentRequest 学生报名后加入课程群
type EnrollmentRequest struct {
	UserID string `json:"userId" binding:"required,max=64"`
	Name   string `json:"name" binding:"max=64"`
}
