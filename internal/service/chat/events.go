package chat

import (
	"encoding/json"
	"time"

	"course_chat_server/internal/model"
)

// 客户端 -> 服务端
const (
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventRoomJoin          = "room:join"
	EventRoomLeave         = "room:leave"
	EventMessageSend       = "message:send"
	EventRoomMessage       = "room:message"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventMessageRead       = "message:read"
)

// 服务端 -> 客户端
const (
	EventMessageNew         = "message:new"
	EventRoomMessageNew     = "room:message:new"
	EventTypingUpdate       = "typing:update"
	EventConversationJoined = "conversation:joined"
	EventRoomJoined         = "room:joined"
	EventError              = "error"
)

// Inbound 客户端上行事件信封，Ref 由客户端生成，出错时原样带回
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ref   string          `json:"ref,omitempty"`
}

// Outbound 服务端下行事件信封
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
	Ts    int64  `json:"ts"`
}

// --- 上行 payload ---

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
	Limit          int    `json:"limit,omitempty"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
	Limit  int    `json:"limit,omitempty"`
}

type SendPayload struct {
	ParentID string   `json:"parentId"`
	Content  string   `json:"content"`
	Mentions []string `json:"mentions,omitempty"`
}

type ParentPayload struct {
	ParentID string `json:"parentId"`
}

// --- 下行 payload ---

type MessagePayload struct {
	Message *model.Message `json:"message"`
}

type TypingPayload struct {
	ParentID    string `json:"parentId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsTyping    bool   `json:"isTyping"`
}

// JoinedPayload 加入成功后的补发数据，Messages 按时间升序
type JoinedPayload struct {
	ParentID   string              `json:"parentId"`
	ParentKind model.ParentKind    `json:"parentKind"`
	Messages   []model.Message     `json:"messages"`
	HasMore    bool                `json:"hasMore"`
	Roster     []model.Participant `json:"roster,omitempty"`
	Typing     []model.Participant `json:"typing"`
}

type ErrorPayload struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Event string `json:"event,omitempty"`
	Ref   string `json:"ref,omitempty"`
}

// encode 生成带时间戳的下行事件
func encode(event string, data any) ([]byte, error) {
	return json.Marshal(Outbound{Event: event, Data: data, Ts: time.Now().UnixMilli()})
}

// newMessageEvent 私聊与课程群使用不同的事件名
func newMessageEvent(kind model.ParentKind) string {
	if kind == model.KindRoom {
		return EventRoomMessageNew
	}
	return EventMessageNew
}

func joinedEvent(kind model.ParentKind) string {
	if kind == model.KindRoom {
		return EventRoomJoined
	}
	return EventConversationJoined
}
