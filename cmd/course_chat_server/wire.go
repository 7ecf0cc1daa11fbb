package main

import (
	"context"
	"fmt"

	"course_chat_server/internal/config"
	"course_chat_server/internal/dao/memory"
	"course_chat_server/internal/dao/mongodb"
	dao "course_chat_server/internal/dao/mysql"
	"course_chat_server/internal/dao/mysql/repository"
	myredis "course_chat_server/internal/dao/redis"
	"course_chat_server/internal/infrastructure/mq"
	"course_chat_server/internal/service"
	"course_chat_server/internal/service/chat"

	"go.uber.org/zap"
)

// openStore 按 chatConfig.storeDriver 选择持久化实现
func openStore(ctx context.Context, conf *config.Config) (service.Store, func(), error) {
	switch conf.StoreDriver {
	case "mysql":
		repos, err := dao.Init(conf.MysqlConfig)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewStore(repos), func() {}, nil
	case "mongo":
		store, err := mongodb.Init(ctx, conf.MongoConfig)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(context.Background()); err != nil {
				zap.L().Error("关闭 MongoDB 连接失败", zap.Error(err))
			}
		}, nil
	case "memory":
		zap.L().Warn("使用内存存储，重启后数据丢失")
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", conf.StoreDriver)
	}
}

// openUnread 按 chatConfig.unreadDriver 选择未读计数实现
func openUnread(ctx context.Context, conf *config.Config) (chat.UnreadStore, func(), error) {
	switch conf.UnreadDriver {
	case "redis":
		client, err := myredis.Init(ctx, conf.RedisConfig)
		if err != nil {
			return nil, nil, err
		}
		return myredis.NewUnreadStore(client), func() {
			if err := client.Close(); err != nil {
				zap.L().Error("关闭 Redis 连接失败", zap.Error(err))
			}
		}, nil
	case "memory":
		return memory.NewUnreadStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown unread driver %q", conf.UnreadDriver)
	}
}

// openBroker channel 模式直接向本机连接扇出；kafka 模式经 Kafka 广播到所有节点
func openBroker(conf *config.Config, registry *chat.Registry, nodeID string) (chat.Broker, error) {
	switch conf.MessageMode {
	case "channel":
		return chat.NewLocalBroker(registry), nil
	case "kafka":
		return chat.NewBusBroker(mq.NewKafkaBus(conf.KafkaConfig, nodeID), registry), nil
	default:
		return nil, fmt.Errorf("unknown message mode %q", conf.MessageMode)
	}
}
