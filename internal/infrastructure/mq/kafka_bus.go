// Package mq 基于 Kafka 的跨节点广播总线
// kafka_bus.go
// 核心职责：
// 1. 以容器 ID 作为消息 key 写入，同一容器的事件落到同一分区，保证顺序
// 2. 每个节点使用独立消费组，所有节点都能收到全部事件并向本地连接扇出
package mq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"course_chat_server/internal/config"
	"course_chat_server/pkg/errorx"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBus 实现 chat.Bus
type KafkaBus struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

// GroupID 节点消费组名
func GroupID(prefix, nodeID string) string {
	return fmt.Sprintf("%s-%s", prefix, nodeID)
}

// NewKafkaBus 创建写端和读端
// 写端同步等待 leader 确认，Publish 返回即表示已落盘到分区
func NewKafkaBus(c config.KafkaConfig, nodeID string) *KafkaBus {
	timeout := c.Timeout * time.Second
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(c.HostPort),
			Topic:                  c.ChatTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{c.HostPort},
			Topic:          c.ChatTopic,
			CommitInterval: timeout,
			GroupID:        GroupID(c.GroupPrefix, nodeID),
			StartOffset:    kafka.LastOffset,
		}),
	}
}

// Publish 写入一条事件
func (b *KafkaBus) Publish(ctx context.Context, key, value []byte) error {
	if err := b.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return errorx.Wrap(err, errorx.CodeBrokerError, "事件广播失败")
	}
	return nil
}

// Consume 阻塞读取直到 ctx 取消或读端关闭
// 单条处理失败不影响后续消息，读取出错时记录日志后继续
func (b *KafkaBus) Consume(ctx context.Context, handle func(key, value []byte)) error {
	for {
		m, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			// 读端关闭
			if errors.Is(err, io.EOF) {
				return nil
			}
			zap.L().Error("kafka read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		handle(m.Key, m.Value)
	}
}

// Close 关闭读写两端
func (b *KafkaBus) Close() error {
	var errs []error
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.reader.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CreateTopic 创建聊天 topic，已存在时 Kafka 返回错误，由调用方决定是否忽略
func CreateTopic(c config.KafkaConfig, partitions int) error {
	conn, err := kafka.Dial("tcp", c.HostPort)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeBrokerError, "连接 Kafka 失败")
	}
	defer conn.Close()
	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             c.ChatTopic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
}
