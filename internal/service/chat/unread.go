package chat

import (
	"context"

	"course_chat_server/internal/model"
)

// UnreadStore 未读计数存储（Redis 或内存）
type UnreadStore interface {
	Increment(ctx context.Context, parentID string, userIDs []string) error
	Clear(ctx context.Context, parentID, userID string) error
	Counts(ctx context.Context, userID string, parentIDs []string) (map[string]int64, error)
}

// UnreadAggregator 维护 用户 x 容器 的未读数
// 新消息时给除发送者外的成员加一，用户打开容器或发送已读时清零；列表查询直接读存储
type UnreadAggregator struct {
	store UnreadStore
}

func NewUnreadAggregator(store UnreadStore) *UnreadAggregator {
	return &UnreadAggregator{store: store}
}

// Increment 私聊时 members 为双方，课程群为全部成员，exceptUserID 为发送者
func (u *UnreadAggregator) Increment(ctx context.Context, parentID string, members []string, exceptUserID string) error {
	targets := make([]string, 0, len(members))
	for _, id := range members {
		if id != "" && id != exceptUserID {
			targets = append(targets, id)
		}
	}
	return u.store.Increment(ctx, parentID, targets)
}

func (u *UnreadAggregator) Clear(ctx context.Context, parentID, userID string) error {
	return u.store.Clear(ctx, parentID, userID)
}

func (u *UnreadAggregator) Counts(ctx context.Context, userID string, parentIDs []string) (map[string]int64, error) {
	return u.store.Counts(ctx, userID, parentIDs)
}

// FillConversations 为会话列表填充 userID 的未读数
func (u *UnreadAggregator) FillConversations(ctx context.Context, userID string, convs []model.Conversation) error {
	ids := make([]string, len(convs))
	for i := range convs {
		ids[i] = convs[i].ID
	}
	counts, err := u.store.Counts(ctx, userID, ids)
	if err != nil {
		return err
	}
	for i := range convs {
		convs[i].UnreadCount = counts[convs[i].ID]
	}
	return nil
}

// FillRooms 为课程群列表填充 userID 的未读数
func (u *UnreadAggregator) FillRooms(ctx context.Context, userID string, rooms []model.Room) error {
	ids := make([]string, len(rooms))
	for i := range rooms {
		ids[i] = rooms[i].ID
	}
	counts, err := u.store.Counts(ctx, userID, ids)
	if err != nil {
		return err
	}
	for i := range rooms {
		rooms[i].UnreadCount = counts[rooms[i].ID]
	}
	return nil
}
