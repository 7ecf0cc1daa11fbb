package redis

import (
	"context"
	"strconv"

	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/errorx"

	"github.com/redis/go-redis/v9"
)

// UnreadStore 每个用户一个 Hash：unread:{userId}，field 为容器 ID，value 为未读数
type UnreadStore struct {
	client *redis.Client
}

// NewUnreadStore 创建 Redis 未读计数存储
func NewUnreadStore(client *redis.Client) *UnreadStore {
	return &UnreadStore{client: client}
}

func unreadKey(userID string) string {
	return constants.UNREAD_KEY_PREFIX + userID
}

// Increment 给多个用户的同一容器未读数加一，一次往返完成
func (u *UnreadStore) Increment(ctx context.Context, parentID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := u.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, uid := range userIDs {
			pipe.HIncrBy(ctx, unreadKey(uid), parentID, 1)
		}
		return nil
	})
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "增加未读数 parent=%s", parentID)
	}
	return nil
}

// Clear 清零用户在某容器的未读数
func (u *UnreadStore) Clear(ctx context.Context, parentID, userID string) error {
	if err := u.client.HDel(ctx, unreadKey(userID), parentID).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "清除未读数 parent=%s user=%s", parentID, userID)
	}
	return nil
}

// Counts 批量读取未读数，不存在的容器记为 0
func (u *UnreadStore) Counts(ctx context.Context, userID string, parentIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	vals, err := u.client.HMGet(ctx, unreadKey(userID), parentIDs...).Result()
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "读取未读数 user=%s", userID)
	}
	for i, v := range vals {
		out[parentIDs[i]] = parseCount(v)
	}
	return out, nil
}

// parseCount HMGET 对不存在的 field 返回 nil，存在时为字符串
func parseCount(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
