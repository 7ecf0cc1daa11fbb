package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

// SendRequest 一次发送
type SendRequest struct {
	ParentID   string
	ParentKind model.ParentKind
	Content    string
	Mentions   []string
}

// Send 校验并投递一条消息
// 同一容器内串行：解析提及 -> 持久化（含最后一条消息预览）-> 未读数 -> 扇出
// 持久化失败时不做任何扇出，错误只返回给发送者
func (s *Server) Send(ctx context.Context, sess *Session, req SendRequest) (*model.Message, error) {
	content, err := s.validateSend(req)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(req.ParentID)
	defer unlock()

	if kind, ok := sess.Joined(req.ParentID); !ok || kind != req.ParentKind {
		return nil, ErrNotJoined
	}
	t, err := s.authorize(ctx, sess.Principal, req.ParentID, req.ParentKind)
	if err != nil {
		return nil, err
	}

	resolved := ResolveMentions(content, t.roster)
	sender := sess.Principal
	msg := &model.Message{
		ID:              snowflake.GenerateID(),
		ParentID:        req.ParentID,
		ParentKind:      req.ParentKind,
		SenderID:        sender.UserID,
		SenderName:      sender.Name,
		SenderRole:      sender.Role,
		Content:         content,
		RenderedContent: resolved.RenderedContent,
		Mentions:        mergeMentions(resolved.Mentions, req.Mentions, t.roster),
		Status:          model.StatusSent,
		CreatedAt:       time.Now(),
	}
	if msg.Mentions == nil {
		msg.Mentions = []string{}
	}

	if err := s.store.SaveMessage(ctx, msg, model.Preview(content, constants.PREVIEW_LENGTH)); err != nil {
		zap.L().Error("保存消息失败", zap.String("parent_id", req.ParentID), zap.String("user_id", sender.UserID), zap.Error(err))
		return nil, persistenceError(err, "保存消息")
	}

	// 未读数失败不回滚已持久化的消息，列表查询时以存储为准
	if err := s.unread.Increment(ctx, req.ParentID, t.memberIDs(), sender.UserID); err != nil {
		zap.L().Error("增加未读数失败", zap.String("parent_id", req.ParentID), zap.Error(err))
	}

	// 发送即视为停止输入
	if who, ok := s.typing.Stop(req.ParentID, sender.UserID); ok {
		s.publishTyping(ctx, req.ParentID, who, false, sess.ID())
	}

	payload, err := encode(newMessageEvent(req.ParentKind), MessagePayload{Message: msg})
	if err != nil {
		return msg, err
	}
	if err := s.broker.Publish(ctx, Delivery{ParentID: req.ParentID, MsgID: msg.ID, Payload: payload}); err != nil {
		zap.L().Error("扇出消息失败", zap.String("parent_id", req.ParentID), zap.Int64("message_id", msg.ID), zap.Error(err))
		return msg, err
	}

	if t.kind == model.KindConversation {
		s.markDelivered(msg, t.conversation.Counterpart(sender.UserID))
	}
	return msg, nil
}

func (s *Server) validateSend(req SendRequest) (string, error) {
	if req.ParentID == "" {
		return "", validationf("parentId 不能为空")
	}
	if !req.ParentKind.Valid() {
		return "", validationf("未知容器类型 %q", req.ParentKind)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return "", validationf("消息内容不能为空")
	}
	if n := utf8.RuneCountInString(content); n > s.opts.MaxContentLength {
		return "", validationf("消息内容过长：%d 字，上限 %d", n, s.opts.MaxContentLength)
	}
	return content, nil
}

// markDelivered 对方有连接正在查看该会话时，异步将消息推进到 delivered
func (s *Server) markDelivered(msg *model.Message, recipientID string) {
	if !s.registry.UserJoined(msg.ParentID, recipientID) {
		return
	}
	parentID, id := msg.ParentID, msg.ID
	s.tasks.Submit(func() {
		err := s.store.UpdateMessageStatus(context.Background(), parentID, []int64{id}, model.StatusDelivered)
		if err != nil {
			zap.L().Warn("更新投递状态失败", zap.String("parent_id", parentID), zap.Int64("message_id", id), zap.Error(err))
		}
	})
}
