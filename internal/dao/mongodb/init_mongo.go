// Package mongodb 基于 MongoDB 的持久化实现（storeDriver = "mongo"）
package mongodb

import (
	"context"
	"fmt"
	"time"

	"course_chat_server/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 集合名
const (
	conversationCollection = "conversations"
	roomCollection         = "rooms"
	roomMemberCollection   = "room_members"
	messageCollection      = "messages"
)

// Init 连接 MongoDB 并创建索引
func Init(ctx context.Context, c config.MongoConfig) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(c.DatabaseName)
	if err := ensureIndexes(connectCtx, db); err != nil {
		return nil, err
	}
	return NewStore(client, db), nil
}

// ensureIndexes 唯一索引保证会话三元组、课程群、群成员不重复
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		conversationCollection: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "instructor_id", Value: 1}, {Key: "course_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uk_conversation_triple"),
			},
			{Keys: bson.D{{Key: "instructor_id", Value: 1}}},
		},
		roomCollection: {
			{Keys: bson.D{{Key: "course_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "instructor_id", Value: 1}}},
		},
		roomMemberCollection: {
			{
				Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uk_room_member"),
			},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		messageCollection: {
			{Keys: bson.D{{Key: "parent_id", Value: 1}, {Key: "_id", Value: -1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
