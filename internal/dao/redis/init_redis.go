// Package redis 未读计数的 Redis 实现
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"course_chat_server/internal/config"

	"github.com/redis/go-redis/v9"
)

// Init 创建 Redis 客户端并检查连通性
func Init(ctx context.Context, c config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Host + ":" + strconv.Itoa(c.Port),
		Password: c.Password, // 无密码留空
		DB:       c.Db,

		// 连接池配置
		PoolSize:     50,
		MinIdleConns: 8,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
