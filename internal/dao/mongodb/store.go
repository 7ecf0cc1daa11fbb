package mongodb

import (
	"context"
	"errors"
	"time"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/errorx"
	"course_chat_server/pkg/util/snowflake"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store MongoDB 版持久化服务，方法语义与 MySQL 实现一致
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore 使用已连接的客户端创建存储
func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db}
}

// Close 断开连接
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// wrapMongoError 包装驱动错误
//   - ErrNoDocuments -> CodeNotFound
//   - 其他错误 -> CodeDBError
func wrapMongoError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errorx.Wrapf(err, errorx.CodeNotFound, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}

// ==================== 会话 ====================

// CreateOrGetConversation 以三元组为条件 upsert，$setOnInsert 只在首次创建时写入
// 并发 upsert 撞上唯一索引时回读已有文档
func (s *Store) CreateOrGetConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	filter := bson.M{"student_id": conv.StudentID, "instructor_id": conv.InstructorID, "course_id": conv.CourseID}
	id := conv.ID
	if id == "" {
		id = snowflake.GenerateIDString(constants.CONVERSATION_PREFIX)
	}
	now := time.Now()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":             id,
		"student_name":    conv.StudentName,
		"instructor_name": conv.InstructorName,
		"last_message":    "",
		"created_at":      now,
		"updated_at":      now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out model.Conversation
	err := s.coll(conversationCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		err = s.coll(conversationCollection).FindOne(ctx, filter).Decode(&out)
	}
	if err != nil {
		return nil, wrapMongoError(err, "获取或创建会话 student=%s instructor=%s course=%s", conv.StudentID, conv.InstructorID, conv.CourseID)
	}
	return &out, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var out model.Conversation
	if err := s.coll(conversationCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, wrapMongoError(err, "查询会话 %s", id)
	}
	return &out, nil
}

// ListConversations 用户参与的会话，按最近活动倒序
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	filter := bson.M{"$or": bson.A{bson.M{"student_id": userID}, bson.M{"instructor_id": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.coll(conversationCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapMongoError(err, "查询会话列表 user=%s", userID)
	}
	var out []model.Conversation
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapMongoError(err, "解码会话列表 user=%s", userID)
	}
	return out, nil
}

// ==================== 课程群 ====================

// EnsureRoom 按课程 upsert，已存在时刷新标题、封面与讲师
func (s *Store) EnsureRoom(ctx context.Context, room *model.Room) (*model.Room, error) {
	id := room.ID
	if id == "" {
		id = snowflake.GenerateIDString(constants.ROOM_PREFIX)
	}
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"title":           room.Title,
			"thumbnail":       room.Thumbnail,
			"instructor_id":   room.InstructorID,
			"instructor_name": room.InstructorName,
			"updated_at":      now,
		},
		"$setOnInsert": bson.M{"_id": id, "last_message": "", "created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out model.Room
	filter := bson.M{"course_id": room.CourseID}
	err := s.coll(roomCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		err = s.coll(roomCollection).FindOne(ctx, filter).Decode(&out)
	}
	if err != nil {
		return nil, wrapMongoError(err, "创建课程群 course=%s", room.CourseID)
	}
	return &out, nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var out model.Room
	if err := s.coll(roomCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, wrapMongoError(err, "查询课程群 %s", id)
	}
	return &out, nil
}

func (s *Store) GetRoomByCourse(ctx context.Context, courseID string) (*model.Room, error) {
	var out model.Room
	if err := s.coll(roomCollection).FindOne(ctx, bson.M{"course_id": courseID}).Decode(&out); err != nil {
		return nil, wrapMongoError(err, "查询课程群 course=%s", courseID)
	}
	return &out, nil
}

// ListRooms 用户作为讲师或学生所在的课程群
func (s *Store) ListRooms(ctx context.Context, userID string) ([]model.Room, error) {
	roomIDs, err := s.coll(roomMemberCollection).Distinct(ctx, "room_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, wrapMongoError(err, "查询用户课程群 user=%s", userID)
	}
	filter := bson.M{"$or": bson.A{bson.M{"instructor_id": userID}, bson.M{"_id": bson.M{"$in": roomIDs}}}}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.coll(roomCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapMongoError(err, "查询课程群列表 user=%s", userID)
	}
	var out []model.Room
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapMongoError(err, "解码课程群列表 user=%s", userID)
	}
	return out, nil
}

// AddRoomMember 重复添加只更新昵称
func (s *Store) AddRoomMember(ctx context.Context, member *model.RoomMember) error {
	if _, err := s.GetRoom(ctx, member.RoomID); err != nil {
		return err
	}
	joinedAt := member.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now()
	}
	filter := bson.M{"room_id": member.RoomID, "user_id": member.UserID}
	update := bson.M{
		"$set":         bson.M{"name": member.Name},
		"$setOnInsert": bson.M{"joined_at": joinedAt},
	}
	_, err := s.coll(roomMemberCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return wrapMongoError(err, "添加群成员 room=%s user=%s", member.RoomID, member.UserID)
	}
	return nil
}

func (s *Store) ListRoomMembers(ctx context.Context, roomID string) ([]model.RoomMember, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "user_id", Value: 1}})
	cur, err := s.coll(roomMemberCollection).Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, wrapMongoError(err, "查询群成员 room=%s", roomID)
	}
	var out []model.RoomMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapMongoError(err, "解码群成员 room=%s", roomID)
	}
	return out, nil
}

func (s *Store) IsRoomMember(ctx context.Context, roomID, userID string) (bool, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.InstructorID == userID {
		return true, nil
	}
	n, err := s.coll(roomMemberCollection).CountDocuments(ctx, bson.M{"room_id": roomID, "user_id": userID})
	if err != nil {
		return false, wrapMongoError(err, "查询群成员 room=%s user=%s", roomID, userID)
	}
	return n > 0, nil
}

// ==================== 消息 ====================

// SaveMessage 在事务中写入消息并更新容器预览
func (s *Store) SaveMessage(ctx context.Context, msg *model.Message, preview string) error {
	var parentColl string
	switch msg.ParentKind {
	case model.KindConversation:
		parentColl = conversationCollection
	case model.KindRoom:
		parentColl = roomCollection
	default:
		return errorx.Newf(errorx.CodeInvalidParam, "未知容器类型 %s", msg.ParentKind)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return wrapMongoError(err, "开启会话")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.coll(messageCollection).InsertOne(sc, msg); err != nil {
			return nil, err
		}
		res, err := s.coll(parentColl).UpdateOne(sc, bson.M{"_id": msg.ParentID}, bson.M{"$set": bson.M{
			"last_message":    preview,
			"last_message_at": msg.CreatedAt,
			"updated_at":      msg.CreatedAt,
		}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, mongo.ErrNoDocuments
		}
		return nil, nil
	})
	if err != nil {
		return wrapMongoError(err, "保存消息 parent=%s", msg.ParentID)
	}
	return nil
}

// ListMessages 按 ID 倒序返回 before 之前的 limit 条
func (s *Store) ListMessages(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error) {
	filter := bson.M{"parent_id": parentID}
	if before > 0 {
		filter["_id"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.coll(messageCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapMongoError(err, "查询消息 parent=%s before=%d", parentID, before)
	}
	out := make([]model.Message, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, wrapMongoError(err, "解码消息 parent=%s", parentID)
	}
	return out, nil
}

func (s *Store) UpdateMessageStatus(ctx context.Context, parentID string, ids []int64, status model.MessageStatus) error {
	if len(ids) == 0 {
		return nil
	}
	filter := bson.M{"parent_id": parentID, "_id": bson.M{"$in": ids}}
	if status == model.StatusDelivered {
		filter["status"] = model.StatusSent
	}
	if _, err := s.coll(messageCollection).UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": status}}); err != nil {
		return wrapMongoError(err, "更新消息状态 parent=%s", parentID)
	}
	return nil
}

func (s *Store) MarkRead(ctx context.Context, parentID, readerID string) error {
	filter := bson.M{
		"parent_id":   parentID,
		"parent_kind": model.KindConversation,
		"sender_id":   bson.M{"$ne": readerID},
		"status":      bson.M{"$ne": model.StatusRead},
	}
	if _, err := s.coll(messageCollection).UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": model.StatusRead}}); err != nil {
		return wrapMongoError(err, "标记已读 parent=%s reader=%s", parentID, readerID)
	}
	return nil
}
