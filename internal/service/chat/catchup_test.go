package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"course_chat_server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinReplaysLatestPageAscending(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinRoom(t, f.sam)

	var sent []int64
	for i := 0; i < 5; i++ {
		m, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		sent = append(sent, m.ID)
	}

	sueSess, sueConn := f.connect(t, f.sue)
	require.NoError(t, f.srv.Join(ctx, sueSess, f.room.ID, model.KindRoom, 3))

	acks := sueConn.events(EventRoomJoined)
	require.Len(t, acks, 1)
	joined := joinedOf(t, acks[0])
	assert.Equal(t, f.room.ID, joined.ParentID)
	assert.True(t, joined.HasMore)
	require.Len(t, joined.Messages, 3)
	assert.Equal(t, sent[2:], []int64{joined.Messages[0].ID, joined.Messages[1].ID, joined.Messages[2].ID})

	// 名单：讲师在前
	require.Len(t, joined.Roster, 3)
	assert.Equal(t, f.ivy.UserID, joined.Roster[0].UserID)

	// 之后的扇出紧接在回放之后，不重复不遗漏
	next, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "m5"})
	require.NoError(t, err)
	live := messagesOf(t, sueConn.events(EventRoomMessageNew))
	require.Len(t, live, 1)
	assert.Equal(t, next.ID, live[0].ID)
	assert.Greater(t, live[0].ID, joined.Messages[2].ID)
}

func TestJoinConversationAckHasNoRoster(t *testing.T) {
	f := newFixture(t, time.Second)
	_, conn := f.joinConversation(t, f.ivy)

	acks := conn.events(EventConversationJoined)
	require.Len(t, acks, 1)
	joined := joinedOf(t, acks[0])
	assert.Equal(t, model.KindConversation, joined.ParentKind)
	assert.Empty(t, joined.Messages)
	assert.False(t, joined.HasMore)
	assert.Nil(t, joined.Roster)
}

func TestJoinTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	sess, conn := f.joinRoom(t, f.sam)
	require.NoError(t, f.srv.Join(ctx, sess, f.room.ID, model.KindRoom, 0))

	assert.Len(t, f.srv.Registry().Members(f.room.ID), 1)
	assert.Len(t, conn.events(EventRoomJoined), 2)

	otherSess, _ := f.joinRoom(t, f.sue)
	_, err := f.srv.Send(ctx, otherSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "once"})
	require.NoError(t, err)
	assert.Len(t, conn.events(EventRoomMessageNew), 1)
}

func TestJoinClampsLimit(t *testing.T) {
	f := newFixture(t, time.Second)
	assert.Equal(t, 50, f.srv.pageLimit(0))
	assert.Equal(t, 10, f.srv.pageLimit(10))
	assert.Equal(t, 200, f.srv.pageLimit(10000))
}

func TestCatchUpBuffersConcurrentDeliveries(t *testing.T) {
	f := newFixture(t, time.Second)
	sess, conn := f.connect(t, f.sue)
	// 成为成员的同时开始暂存，之间没有可直接投递的窗口
	_, err := f.srv.Registry().JoinCatchUp(sess.ID(), f.room.ID, model.KindRoom)
	require.NoError(t, err)

	// 回执前到达：10 已包含在回放里，11 为新消息
	f.srv.Registry().FanOut(f.room.ID, 10, mustEncode(t, EventRoomMessageNew, 10), "")
	f.srv.Registry().FanOut(f.room.ID, 11, mustEncode(t, EventRoomMessageNew, 11), "")
	assert.Empty(t, conn.frames)

	ack := mustEncode(t, EventRoomJoined, JoinedPayload{ParentID: f.room.ID, ParentKind: model.KindRoom})
	require.NoError(t, sess.finishCatchUp(f.room.ID, []int64{8, 10}, ack))

	require.Len(t, conn.frames, 2)
	assert.Equal(t, EventRoomJoined, conn.frames[0].Event)
	assert.Equal(t, EventRoomMessageNew, conn.frames[1].Event)

	// 同一条消息再次到达被丢弃
	f.srv.Registry().FanOut(f.room.ID, 11, mustEncode(t, EventRoomMessageNew, 11), "")
	f.srv.Registry().FanOut(f.room.ID, 10, mustEncode(t, EventRoomMessageNew, 10), "")
	assert.Len(t, conn.events(EventRoomMessageNew), 1)

	// ID 更小但未投递过的消息（其它节点生成）照常投递
	f.srv.Registry().FanOut(f.room.ID, 9, mustEncode(t, EventRoomMessageNew, 9), "")
	assert.Len(t, conn.events(EventRoomMessageNew), 2)
}

func TestAbortCatchUpFlushesForExistingMember(t *testing.T) {
	f := newFixture(t, time.Second)
	sess, conn := f.joinRoom(t, f.sue)
	conn.reset()

	_, err := f.srv.Registry().JoinCatchUp(sess.ID(), f.room.ID, model.KindRoom)
	require.NoError(t, err)
	f.srv.Registry().FanOut(f.room.ID, 7, mustEncode(t, EventRoomMessageNew, 7), "")
	assert.Empty(t, conn.frames)

	sess.abortCatchUp(f.room.ID)
	assert.Len(t, conn.events(EventRoomMessageNew), 1)
}

// racingStore 读取历史时模拟消费协程投递一条已持久化的消息和一条新消息
type racingStore struct {
	Store
	registry *Registry
	fresh    []byte
	once     sync.Once
}

func (s *racingStore) ListMessages(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error) {
	rows, err := s.Store.ListMessages(ctx, parentID, before, limit)
	s.once.Do(func() {
		for _, m := range rows {
			msg := m
			payload, _ := encode(EventRoomMessageNew, MessagePayload{Message: &msg})
			s.registry.FanOut(parentID, m.ID, payload, "")
		}
		s.registry.FanOut(parentID, 1, s.fresh, "")
	})
	return rows, err
}

func TestJoinDuringConcurrentFanOutHasNoDuplicate(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinRoom(t, f.sam)
	sent, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "earlier"})
	require.NoError(t, err)

	registry := f.srv.Registry()
	store := &racingStore{Store: f.store, registry: registry, fresh: mustEncode(t, EventRoomMessageNew, MessagePayload{Message: &model.Message{ID: 1, Content: "fresh"}})}
	srv := NewServer(store, NewUnreadAggregator(f.unread), registry, NewLocalBroker(registry), syncRunner{}, Options{TypingQuiet: time.Second})

	sueSess, sueConn := f.connect(t, f.sue)
	require.NoError(t, srv.Join(ctx, sueSess, f.room.ID, model.KindRoom, 0))

	require.Len(t, sueConn.frames, 2)
	assert.Equal(t, EventRoomJoined, sueConn.frames[0].Event)
	joined := joinedOf(t, sueConn.frames[0])
	require.Len(t, joined.Messages, 1)
	assert.Equal(t, sent.ID, joined.Messages[0].ID)

	live := messagesOf(t, sueConn.events(EventRoomMessageNew))
	require.Len(t, live, 1)
	assert.Equal(t, "fresh", live[0].Content)
}

func mustEncode(t *testing.T, event string, data any) []byte {
	t.Helper()
	b, err := encode(event, data)
	require.NoError(t, err)
	return b
}

func TestHistoryPaging(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinConversation(t, f.sam)
	var ids []int64
	for i := 0; i < 5; i++ {
		m, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.conv.ID, ParentKind: model.KindConversation, Content: "x"})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	page, err := History(ctx, f.store, f.conv.ID, model.Page{Limit: 2})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[3], page.Messages[0].ID)
	assert.Equal(t, ids[4], page.Messages[1].ID)

	page, err = History(ctx, f.store, f.conv.ID, model.Page{Before: ids[1], Limit: 2})
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, ids[0], page.Messages[0].ID)
}
