package request

// OpenConversationRequest 获取或创建学生与讲师在某门课程下的私聊，双方昵称以课程群记录为准
// 使用位置:
//   - internal/handler/conversation_handler.go: Open
//   - internal/service/conversation/service.go: Open
type OpenConversationRequest struct {
	InstructorID string `json:"instructorId" binding:"required,max=64"`
	StudentID    string `json:"studentId" binding:"required,max=64,nefield=InstructorID"`
	CourseID     string `json:"courseId" binding:"required,max=64"`
}
