package chat

import (
	"context"
	"time"

	"course_chat_server/internal/model"

	"go.uber.org/zap"
)

// StartTyping 进入输入状态；只有从 Idle 转为 Typing 时才广播
func (s *Server) StartTyping(ctx context.Context, sess *Session, parentID string) error {
	if parentID == "" {
		return validationf("parentId 不能为空")
	}
	unlock := s.locks.Lock(parentID)
	defer unlock()
	if _, ok := sess.Joined(parentID); !ok {
		return ErrNotJoined
	}
	if s.typing.Start(parentID, sess.Principal) {
		s.publishTyping(ctx, parentID, sess.Principal, true, sess.ID())
	}
	return nil
}

// StopTyping 显式结束输入
func (s *Server) StopTyping(ctx context.Context, sess *Session, parentID string) error {
	if parentID == "" {
		return validationf("parentId 不能为空")
	}
	unlock := s.locks.Lock(parentID)
	defer unlock()
	if _, ok := sess.Joined(parentID); !ok {
		return ErrNotJoined
	}
	if who, ok := s.typing.Stop(parentID, sess.Principal.UserID); ok {
		s.publishTyping(ctx, parentID, who, false, sess.ID())
	}
	return nil
}

// expireTyping 静默超时回调，运行在定时器 goroutine 中
func (s *Server) expireTyping(parentID, userID string, gen uint64) {
	unlock := s.locks.Lock(parentID)
	defer unlock()
	if who, ok := s.typing.Expire(parentID, userID, gen); ok {
		zap.L().Debug("输入状态超时", zap.String("parent_id", parentID), zap.String("user_id", userID))
		s.publishTyping(context.Background(), parentID, who, false, "")
	}
}

// clearTypingLocked 用户在该容器已没有任何连接时结束其输入状态，调用方需持有容器锁
func (s *Server) clearTypingLocked(ctx context.Context, parentID, userID, exceptConnID string) {
	if s.registry.UserJoined(parentID, userID) {
		return
	}
	if who, ok := s.typing.Stop(parentID, userID); ok {
		s.publishTyping(ctx, parentID, who, false, exceptConnID)
	}
}

// publishTyping 广播 typing:update，仅跳过 exceptConnID 这一个连接
func (s *Server) publishTyping(ctx context.Context, parentID string, who model.Principal, typing bool, exceptConnID string) {
	payload, err := encode(EventTypingUpdate, TypingPayload{
		ParentID:    parentID,
		UserID:      who.UserID,
		DisplayName: who.Name,
		IsTyping:    typing,
	})
	if err != nil {
		zap.L().Error("序列化输入状态失败", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.broker.Publish(ctx, Delivery{ParentID: parentID, ExceptConn: exceptConnID, Payload: payload}); err != nil {
		zap.L().Error("广播输入状态失败", zap.String("parent_id", parentID), zap.Error(err))
	}
}
