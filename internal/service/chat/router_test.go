package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"course_chat_server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomMentionScenario(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	samSess, samConn := f.joinRoom(t, f.sam)
	_, ivyConn := f.joinRoom(t, f.ivy)
	_, sueConn := f.joinRoom(t, f.sue)

	msg, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "@Ivy please help"})
	require.NoError(t, err)

	for _, conn := range []*fakeConn{ivyConn, sueConn} {
		got := messagesOf(t, conn.events(EventRoomMessageNew))
		require.Len(t, got, 1)
		assert.Equal(t, "@Ivy please help", got[0].Content)
		assert.Equal(t, []string{f.ivy.UserID}, got[0].Mentions)
		assert.Equal(t, "@[Ivy](U-ivy) please help", got[0].RenderedContent)
		assert.Equal(t, msg.ID, got[0].ID)
	}
	// 发送者自己的连接也会收到
	assert.Len(t, samConn.events(EventRoomMessageNew), 1)
	assert.Empty(t, ivyConn.events(EventMessageNew))

	room, err := f.store.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, "@Ivy please help", room.LastMessage)

	assert.Equal(t, int64(1), f.unreadOf(t, f.sue.UserID, f.room.ID))
	assert.Equal(t, int64(1), f.unreadOf(t, f.ivy.UserID, f.room.ID))
	assert.Equal(t, int64(0), f.unreadOf(t, f.sam.UserID, f.room.ID))
}

func TestUnmatchedMentionStillDelivers(t *testing.T) {
	f := newFixture(t, time.Second)
	samSess, _ := f.joinRoom(t, f.sam)
	_, sueConn := f.joinRoom(t, f.sue)

	_, err := f.srv.Send(context.Background(), samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "@NoSuchUser hello"})
	require.NoError(t, err)

	got := messagesOf(t, sueConn.events(EventRoomMessageNew))
	require.Len(t, got, 1)
	assert.Equal(t, "@NoSuchUser hello", got[0].Content)
	assert.Equal(t, "@NoSuchUser hello", got[0].RenderedContent)
	assert.Empty(t, got[0].Mentions)
}

func TestUnreadCountsUntilOpened(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinConversation(t, f.sam)

	const n = 7
	for i := 0; i < n; i++ {
		_, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.conv.ID, ParentKind: model.KindConversation, Content: "question"})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(n), f.unreadOf(t, f.ivy.UserID, f.conv.ID))
	assert.Equal(t, int64(0), f.unreadOf(t, f.sam.UserID, f.conv.ID))

	f.joinConversation(t, f.ivy)
	assert.Equal(t, int64(0), f.unreadOf(t, f.ivy.UserID, f.conv.ID))

	// 打开会话后对方消息变为已读
	for _, m := range f.store.Messages(f.conv.ID) {
		assert.Equal(t, model.StatusRead, m.Status)
	}
}

func TestMessageReadClearsUnread(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	ivySess, _ := f.joinRoom(t, f.ivy)
	samSess, _ := f.joinRoom(t, f.sam)

	_, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "hi"})
	require.NoError(t, err)
	require.Equal(t, int64(1), f.unreadOf(t, f.ivy.UserID, f.room.ID))

	require.NoError(t, f.srv.MarkRead(ctx, ivySess, f.room.ID))
	assert.Equal(t, int64(0), f.unreadOf(t, f.ivy.UserID, f.room.ID))
}

func TestPersistenceFailureHasNoSideEffects(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, samConn := f.joinRoom(t, f.sam)
	_, sueConn := f.joinRoom(t, f.sue)

	f.faults.saveErr = errors.New("disk full")
	_, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "lost"})
	require.Error(t, err)
	assert.Equal(t, KindPersistence, Kind(err))

	assert.Empty(t, sueConn.events(EventRoomMessageNew))
	assert.Empty(t, samConn.events(EventRoomMessageNew))
	assert.Equal(t, int64(0), f.unreadOf(t, f.sue.UserID, f.room.ID))

	room, err := f.store.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Empty(t, room.LastMessage)
	assert.Nil(t, room.LastMessageAt)
}

func TestUnreadFailureDoesNotBlockDelivery(t *testing.T) {
	f := newFixture(t, time.Second)
	samSess, _ := f.joinRoom(t, f.sam)
	_, sueConn := f.joinRoom(t, f.sue)

	f.unread.FailIncrement = errors.New("redis down")
	_, err := f.srv.Send(context.Background(), samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "still here"})
	require.NoError(t, err)
	assert.Len(t, sueConn.events(EventRoomMessageNew), 1)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinRoom(t, f.sam)

	cases := []struct {
		name string
		req  SendRequest
		kind ErrorKind
	}{
		{"空内容", SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "   \n"}, KindValidation},
		{"缺少容器", SendRequest{ParentKind: model.KindRoom, Content: "hi"}, KindValidation},
		{"未知类型", SendRequest{ParentID: f.room.ID, ParentKind: "channel", Content: "hi"}, KindValidation},
		{"过长", SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: strings.Repeat("字", 4001)}, KindValidation},
		{"未加入", SendRequest{ParentID: f.conv.ID, ParentKind: model.KindConversation, Content: "hi"}, KindNotAuthorized},
		{"类型不符", SendRequest{ParentID: f.room.ID, ParentKind: model.KindConversation, Content: "hi"}, KindNotAuthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.srv.Send(ctx, samSess, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, Kind(err))
		})
	}
	assert.Empty(t, f.store.Messages(f.room.ID))
}

func TestSendTrimsContent(t *testing.T) {
	f := newFixture(t, time.Second)
	samSess, _ := f.joinRoom(t, f.sam)
	msg, err := f.srv.Send(context.Background(), samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
}

func TestRevokedMemberCannotSend(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	sess, _ := f.connect(t, f.eve)

	err := f.srv.Join(ctx, sess, f.room.ID, model.KindRoom, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAuthorized))
	assert.Empty(t, f.srv.Registry().Members(f.room.ID))

	err = f.srv.Join(ctx, sess, f.conv.ID, model.KindConversation, 0)
	assert.Equal(t, KindNotAuthorized, Kind(err))

	err = f.srv.Join(ctx, sess, "C-missing", model.KindConversation, 0)
	assert.Equal(t, KindNotFound, Kind(err))
}

// 同一容器的并发发送：所有观察者看到的顺序一致，且与持久化顺序一致
func TestConcurrentSendsKeepPersistOrder(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinRoom(t, f.sam)
	sueSess, _ := f.joinRoom(t, f.sue)
	_, ivyConn := f.joinRoom(t, f.ivy)

	const perSender = 40
	var wg sync.WaitGroup
	for _, sess := range []*Session{samSess, sueSess} {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := f.srv.Send(ctx, sess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "msg"})
				assert.NoError(t, err)
			}
		}(sess)
	}
	wg.Wait()

	got := messagesOf(t, ivyConn.events(EventRoomMessageNew))
	stored := f.store.Messages(f.room.ID)
	require.Len(t, got, 2*perSender)
	require.Len(t, stored, 2*perSender)
	for i := range got {
		assert.Equal(t, stored[i].ID, got[i].ID)
		if i > 0 {
			assert.Greater(t, got[i].ID, got[i-1].ID)
		}
	}
	assert.Equal(t, int64(2*perSender), f.unreadOf(t, f.ivy.UserID, f.room.ID))
}

func TestDirectMessageDelivered(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinConversation(t, f.sam)

	offline, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.conv.ID, ParentKind: model.KindConversation, Content: "anyone?"})
	require.NoError(t, err)

	_, ivyConn := f.joinConversation(t, f.ivy)
	online, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.conv.ID, ParentKind: model.KindConversation, Content: "there you are"})
	require.NoError(t, err)

	require.Len(t, ivyConn.events(EventMessageNew), 1)
	status := map[int64]model.MessageStatus{}
	for _, m := range f.store.Messages(f.conv.ID) {
		status[m.ID] = m.Status
	}
	assert.Equal(t, model.StatusRead, status[offline.ID])
	assert.Equal(t, model.StatusDelivered, status[online.ID])
}

func TestLeaveStopsFanOut(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	samSess, _ := f.joinRoom(t, f.sam)
	sueSess, sueConn := f.joinRoom(t, f.sue)

	require.NoError(t, f.srv.Leave(ctx, sueSess, f.room.ID))
	require.NoError(t, f.srv.Leave(ctx, sueSess, f.room.ID))

	_, err := f.srv.Send(ctx, samSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "bye"})
	require.NoError(t, err)
	assert.Empty(t, sueConn.events(EventRoomMessageNew))

	_, err = f.srv.Send(ctx, sueSess, SendRequest{ParentID: f.room.ID, ParentKind: model.KindRoom, Content: "wait"})
	assert.Equal(t, KindNotAuthorized, Kind(err))
}
