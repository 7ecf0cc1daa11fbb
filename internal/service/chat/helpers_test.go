package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"course_chat_server/internal/dao/memory"
	"course_chat_server/internal/model"
	"course_chat_server/pkg/errorx"

	"github.com/stretchr/testify/require"
)

var connSeq atomic.Int64

// fakeConn 记录下行帧的测试连接
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []frame
	closed bool
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Ts    int64           `json:"ts"`
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("W%d", connSeq.Add(1))}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// events 指定事件名的全部帧
func (c *fakeConn) events(name string) []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []frame
	for _, f := range c.frames {
		if f.Event == name {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func messagesOf(t *testing.T, frames []frame) []model.Message {
	t.Helper()
	out := make([]model.Message, 0, len(frames))
	for _, f := range frames {
		var p struct {
			Message model.Message `json:"message"`
		}
		require.NoError(t, json.Unmarshal(f.Data, &p))
		out = append(out, p.Message)
	}
	return out
}

func typingOf(t *testing.T, frames []frame) []TypingPayload {
	t.Helper()
	out := make([]TypingPayload, 0, len(frames))
	for _, f := range frames {
		var p TypingPayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		out = append(out, p)
	}
	return out
}

func joinedOf(t *testing.T, f frame) JoinedPayload {
	t.Helper()
	var p JoinedPayload
	require.NoError(t, json.Unmarshal(f.Data, &p))
	return p
}

// syncRunner 同步执行后台任务，便于断言
type syncRunner struct{}

func (syncRunner) Submit(task func()) { task() }

// faultyStore 包装内存存储，saveErr 非 nil 时 SaveMessage 失败且不产生任何写入
type faultyStore struct {
	*memory.Store
	saveErr error
}

func (s *faultyStore) SaveMessage(ctx context.Context, msg *model.Message, preview string) error {
	if s.saveErr != nil {
		return errorx.Wrap(s.saveErr, errorx.CodeDBError, "保存消息")
	}
	return s.Store.SaveMessage(ctx, msg, preview)
}

// fixture 课程 course-go：讲师 Ivy，学生 Sam、Sue；Sam 与 Ivy 有一个私聊
type fixture struct {
	srv    *Server
	store  *memory.Store
	faults *faultyStore
	unread *memory.UnreadStore
	room   *model.Room
	conv   *model.Conversation

	ivy, sam, sue, eve model.Principal
}

func newFixture(t *testing.T, quiet time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:  memory.NewStore(),
		unread: memory.NewUnreadStore(),
		ivy:    model.Principal{UserID: "U-ivy", Role: model.RoleInstructor, Name: "Ivy"},
		sam:    model.Principal{UserID: "U-sam", Role: model.RoleStudent, Name: "Sam Lee"},
		sue:    model.Principal{UserID: "U-sue", Role: model.RoleStudent, Name: "Sue"},
		eve:    model.Principal{UserID: "U-eve", Role: model.RoleStudent, Name: "Eve"},
	}
	f.faults = &faultyStore{Store: f.store}
	registry := NewRegistry()
	f.srv = NewServer(f.faults, NewUnreadAggregator(f.unread), registry, NewLocalBroker(registry), syncRunner{}, Options{TypingQuiet: quiet})

	room, err := f.store.EnsureRoom(ctx, &model.Room{CourseID: "course-go", Title: "Go 入门", InstructorID: f.ivy.UserID, InstructorName: f.ivy.Name})
	require.NoError(t, err)
	require.NoError(t, f.store.AddRoomMember(ctx, &model.RoomMember{RoomID: room.ID, UserID: f.sam.UserID, Name: f.sam.Name}))
	require.NoError(t, f.store.AddRoomMember(ctx, &model.RoomMember{RoomID: room.ID, UserID: f.sue.UserID, Name: f.sue.Name}))
	f.room = room

	conv, err := f.store.CreateOrGetConversation(ctx, &model.Conversation{
		StudentID: f.sam.UserID, StudentName: f.sam.Name,
		InstructorID: f.ivy.UserID, InstructorName: f.ivy.Name,
		CourseID: "course-go",
	})
	require.NoError(t, err)
	f.conv = conv
	return f
}

// connect 建立连接并可选地加入容器
func (f *fixture) connect(t *testing.T, p model.Principal) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	sess, err := f.srv.Connect(conn, p)
	require.NoError(t, err)
	return sess, conn
}

func (f *fixture) joinRoom(t *testing.T, p model.Principal) (*Session, *fakeConn) {
	t.Helper()
	sess, conn := f.connect(t, p)
	require.NoError(t, f.srv.Join(context.Background(), sess, f.room.ID, model.KindRoom, 0))
	return sess, conn
}

func (f *fixture) joinConversation(t *testing.T, p model.Principal) (*Session, *fakeConn) {
	t.Helper()
	sess, conn := f.connect(t, p)
	require.NoError(t, f.srv.Join(context.Background(), sess, f.conv.ID, model.KindConversation, 0))
	return sess, conn
}

func (f *fixture) unreadOf(t *testing.T, userID, parentID string) int64 {
	t.Helper()
	counts, err := f.unread.Counts(context.Background(), userID, []string{parentID})
	require.NoError(t, err)
	return counts[parentID]
}
