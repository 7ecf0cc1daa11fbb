// Package chat 实现了课程聊天的核心服务层
// broker.go
// 核心职责：定义扇出代理接口
// 单机模式直接投递给本节点连接；Kafka 模式经总线广播，每个节点再投递给自己的连接
package chat

import (
	"context"
	"encoding/json"

	"course_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// Delivery 一次扇出：发往某容器全部已加入连接的下行事件
type Delivery struct {
	ParentID   string          `json:"parentId"`
	MsgID      int64           `json:"msgId,string,omitempty"` // 消息事件为消息 ID，其余为 0
	ExceptConn string          `json:"exceptConn,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Broker 扇出代理
type Broker interface {
	// Publish 在容器锁内调用，同一容器的调用顺序即投递顺序
	Publish(ctx context.Context, d Delivery) error
	// Run 启动消费循环，ctx 取消时返回
	Run(ctx context.Context) error
	Close() error
}

// LocalBroker 单机模式，直接投递给本节点连接
type LocalBroker struct {
	registry *Registry
}

func NewLocalBroker(registry *Registry) *LocalBroker {
	return &LocalBroker{registry: registry}
}

func (b *LocalBroker) Publish(ctx context.Context, d Delivery) error {
	b.registry.FanOut(d.ParentID, d.MsgID, d.Payload, d.ExceptConn)
	return nil
}

func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBroker) Close() error { return nil }

// Bus 跨节点广播总线，由 mq 包基于 Kafka 实现
type Bus interface {
	// Publish 同步写入，key 相同的消息保证顺序
	Publish(ctx context.Context, key, value []byte) error
	// Consume 阻塞消费直到 ctx 取消
	Consume(ctx context.Context, handle func(key, value []byte)) error
	Close() error
}

// BusBroker Kafka 模式，以容器 ID 为 key 保证单容器内有序
// 本节点的连接同样通过消费总线收到事件，不做本地直投，避免重复
type BusBroker struct {
	bus      Bus
	registry *Registry
}

func NewBusBroker(bus Bus, registry *Registry) *BusBroker {
	return &BusBroker{bus: bus, registry: registry}
}

func (b *BusBroker) Publish(ctx context.Context, d Delivery) error {
	value, err := json.Marshal(d)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeBrokerError, "序列化扇出事件")
	}
	if err := b.bus.Publish(ctx, []byte(d.ParentID), value); err != nil {
		return errorx.Wrapf(err, errorx.CodeBrokerError, "发布扇出事件 parent=%s", d.ParentID)
	}
	return nil
}

func (b *BusBroker) Run(ctx context.Context) error {
	return b.bus.Consume(ctx, func(key, value []byte) {
		var d Delivery
		if err := json.Unmarshal(value, &d); err != nil {
			zap.L().Error("解析扇出事件失败", zap.ByteString("key", key), zap.Error(err))
			return
		}
		b.registry.FanOut(d.ParentID, d.MsgID, d.Payload, d.ExceptConn)
	})
}

func (b *BusBroker) Close() error {
	return b.bus.Close()
}
