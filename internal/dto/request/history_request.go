package request

// HistoryRequest 分页查询历史消息，before 为空时返回最新一页
// 使用位置:
//   - internal/handler/message_handler.go: History
type HistoryRequest struct {
	ParentID   string `form:"parent_id" binding:"required"`
	ParentKind string `form:"parent_kind" binding:"required,oneof=conversation room"`
	Before     int64  `form:"before" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=200"`
}
