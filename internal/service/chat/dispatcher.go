package chat

import (
	"context"
	"encoding/json"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// eventHandler 处理一种上行事件
type eventHandler func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error

// handlers 上行事件分发表
var handlers = map[string]eventHandler{
	EventConversationJoin: func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p ConversationPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return s.Join(ctx, sess, p.ConversationID, model.KindConversation, p.Limit)
	},
	EventConversationLeave: func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p ConversationPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return s.Leave(ctx, sess, p.ConversationID)
	},
	EventRoomJoin: func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p RoomPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return s.Join(ctx, sess, p.RoomID, model.KindRoom, p.Limit)
	},
	EventRoomLeave: func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p RoomPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return s.Leave(ctx, sess, p.RoomID)
	},
	EventMessageSend: sendHandler(model.KindConversation),
	EventRoomMessage: sendHandler(model.KindRoom),
	EventTypingStart: func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p ParentPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return s.StartTyping(ctx, sess, p.ParentID)
	},
	EventTypingStop: func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p ParentPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return s.StopTyping(ctx, sess, p.ParentID)
	},
	EventMessageRead: func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p ParentPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		return s.MarkRead(ctx, sess, p.ParentID)
	},
}

func sendHandler(kind model.ParentKind) eventHandler {
	return func(ctx context.Context, s *Server, sess *Session, data json.RawMessage) error {
		var p SendPayload
		if err := decode(data, &p); err != nil {
			return err
		}
		_, err := s.Send(ctx, sess, SendRequest{ParentID: p.ParentID, ParentKind: kind, Content: p.Content, Mentions: p.Mentions})
		return err
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return validationf("缺少 data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "data 格式错误")
	}
	return nil
}

// Handle 处理一条上行帧，失败只回给触发的连接
func (s *Server) Handle(ctx context.Context, sess *Session, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		s.replyError(sess, errorx.Wrap(err, errorx.CodeInvalidParam, "无法解析的事件"), "", "")
		return
	}
	h, ok := handlers[in.Event]
	if !ok {
		s.replyError(sess, ErrUnknownEvent, in.Event, in.Ref)
		return
	}
	if err := h(ctx, s, sess, in.Data); err != nil {
		zap.L().Warn("事件处理失败",
			zap.String("conn_id", sess.ID()),
			zap.String("user_id", sess.Principal.UserID),
			zap.String("event", in.Event),
			zap.String("kind", string(Kind(err))),
			zap.Error(err))
		s.replyError(sess, err, in.Event, in.Ref)
	}
}

func (s *Server) replyError(sess *Session, err error, event, ref string) {
	payload, encErr := encode(EventError, ErrorPayload{
		Code:  errorx.GetCode(err),
		Msg:   errorx.GetMsg(err),
		Event: event,
		Ref:   ref,
	})
	if encErr != nil {
		return
	}
	_ = sess.Reply(payload)
}
