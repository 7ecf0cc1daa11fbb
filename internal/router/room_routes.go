package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoomRoutes 课程群路由（需要认证）
func (rt *Router) RegisterRoomRoutes(rg *gin.RouterGroup) {
	roomGroup := rg.Group("/room")
	{
		roomGroup.GET("/list", rt.handlers.Room.List)     // 课程群列表（含未读数）
		roomGroup.GET("/roster", rt.handlers.Room.Roster) // 成员名单
	}
}

// RegisterInternalRoutes 课程服务回调（共享令牌）
func (rt *Router) RegisterInternalRoutes(rg *gin.RouterGroup) {
	courseGroup := rg.Group("/course/:courseId")
	{
		courseGroup.PUT("/room", rt.handlers.Internal.EnsureRoom)    // 课程创建或更新
		courseGroup.POST("/enrollment", rt.handlers.Internal.Enroll) // 学生报名
	}
}
