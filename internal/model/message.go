package model

import (
	"time"
	"unicode/utf8"
)

// MessageStatus 私聊消息的投递状态，课程群消息恒为 sent
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Message 聊天消息，创建后内容不再修改
// ID 为雪花 ID，同一容器内按 ID 递增即按发送顺序
type Message struct {
	ID              int64         `gorm:"column:id;primaryKey;autoIncrement:false;index:idx_parent_message,priority:2" bson:"_id" json:"id,string"`
	ParentID        string        `gorm:"column:parent_id;index:idx_parent_message,priority:1;type:varchar(32);not null" bson:"parent_id" json:"parentId"`
	ParentKind      ParentKind    `gorm:"column:parent_kind;type:varchar(16);not null" bson:"parent_kind" json:"parentKind"`
	SenderID        string        `gorm:"column:sender_id;type:varchar(64);not null" bson:"sender_id" json:"senderId"`
	SenderName      string        `gorm:"column:sender_name;type:varchar(64);not null;default:''" bson:"sender_name" json:"senderName"`
	SenderRole      Role          `gorm:"column:sender_role;type:varchar(16);not null" bson:"sender_role" json:"senderRole"`
	Content         string        `gorm:"column:content;type:text;not null" bson:"content" json:"content"`
	RenderedContent string        `gorm:"column:rendered_content;type:text" bson:"rendered_content" json:"renderedContent"`
	Mentions        []string      `gorm:"column:mentions;serializer:json;type:json" bson:"mentions" json:"mentions"`
	Status          MessageStatus `gorm:"column:status;type:varchar(16);not null" bson:"status" json:"status"`
	CreatedAt       time.Time     `gorm:"column:created_at" bson:"created_at" json:"createdAt"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// Page 历史消息分页参数，Before 为 0 表示从最新一条开始
type Page struct {
	Before int64
	Limit  int
}

// HistoryPage 按时间升序排列的一页历史消息
type HistoryPage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

// Preview 截取最多 n 个字符作为会话列表预览
func Preview(content string, n int) string {
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return string(runes[:n])
}
