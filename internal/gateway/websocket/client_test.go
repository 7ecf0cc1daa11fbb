package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"course_chat_server/internal/dao/memory"
	"course_chat_server/internal/model"
	"course_chat_server/internal/service/chat"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlineRunner struct{}

func (inlineRunner) Submit(task func()) { task() }

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type harness struct {
	srv  *chat.Server
	room *model.Room
	url  string
}

// newHarness 启动一个 HTTP 服务，?user= 指定连接主体
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	room, err := store.EnsureRoom(ctx, &model.Room{CourseID: "c1", Title: "Go", InstructorID: "U-ivy", InstructorName: "Ivy"})
	require.NoError(t, err)
	require.NoError(t, store.AddRoomMember(ctx, &model.RoomMember{RoomID: room.ID, UserID: "U-sam", Name: "Sam"}))

	registry := chat.NewRegistry()
	srv := chat.NewServer(store, chat.NewUnreadAggregator(memory.NewUnreadStore()), registry,
		chat.NewLocalBroker(registry), inlineRunner{}, chat.Options{TypingQuiet: time.Minute})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users := map[string]model.Principal{
			"sam": {UserID: "U-sam", Role: model.RoleStudent, Name: "Sam"},
			"ivy": {UserID: "U-ivy", Role: model.RoleInstructor, Name: "Ivy"},
		}
		p, ok := users[r.URL.Query().Get("user")]
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = ServeWS(w, r, srv, p, 16)
	}))
	t.Cleanup(ts.Close)
	return &harness{srv: srv, room: room, url: "ws" + strings.TrimPrefix(ts.URL, "http")}
}

func (h *harness) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(h.url+"?user="+user, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(map[string]any{"event": event, "data": data}))
}

// next 读取下一个指定事件，跳过其它事件
func next(t *testing.T, ws *websocket.Conn, event string) frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, ws.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func TestWebSocketRoomRoundTrip(t *testing.T) {
	h := newHarness(t)
	sam := h.dial(t, "sam")
	ivy := h.dial(t, "ivy")

	send(t, sam, chat.EventRoomJoin, map[string]any{"roomId": h.room.ID})
	next(t, sam, chat.EventRoomJoined)
	send(t, ivy, chat.EventRoomJoin, map[string]any{"roomId": h.room.ID})
	joined := next(t, ivy, chat.EventRoomJoined)

	var ack chat.JoinedPayload
	require.NoError(t, json.Unmarshal(joined.Data, &ack))
	assert.Len(t, ack.Roster, 2)

	send(t, sam, chat.EventRoomMessage, map[string]any{"parentId": h.room.ID, "content": "hi @Ivy"})
	got := next(t, ivy, chat.EventRoomMessageNew)

	var payload struct {
		Message model.Message `json:"message"`
	}
	require.NoError(t, json.Unmarshal(got.Data, &payload))
	assert.Equal(t, "U-sam", payload.Message.SenderID)
	assert.Equal(t, []string{"U-ivy"}, payload.Message.Mentions)
	assert.Equal(t, "hi @[Ivy](U-ivy)", payload.Message.RenderedContent)

	// 发送者也收到自己的消息
	next(t, sam, chat.EventRoomMessageNew)
}

func TestWebSocketErrorEvent(t *testing.T) {
	h := newHarness(t)
	sam := h.dial(t, "sam")
	require.NoError(t, sam.WriteMessage(websocket.TextMessage, []byte(`{"event":"room:dance","ref":"x1"}`)))

	f := next(t, sam, chat.EventError)
	var e chat.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &e))
	assert.Equal(t, "x1", e.Ref)
	assert.Equal(t, "room:dance", e.Event)
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	h := newHarness(t)
	sam := h.dial(t, "sam")
	send(t, sam, chat.EventRoomJoin, map[string]any{"roomId": h.room.ID})
	next(t, sam, chat.EventRoomJoined)
	require.Equal(t, 1, h.srv.Stats().Connections)

	require.NoError(t, sam.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = sam.Close()

	require.Eventually(t, func() bool {
		return h.srv.Stats().Connections == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.srv.Registry().Members(h.room.ID))
}

func TestUnauthenticatedHandshakeRejected(t *testing.T) {
	h := newHarness(t)
	_, resp, err := websocket.DefaultDialer.Dial(h.url+"?user=eve", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, h.srv.Stats().Connections)
}

// 对端不读且未启动写协程，缓冲满时 Send 立即返回并异步发出关闭帧
func TestSlowConsumerClosedWithoutBlockingSender(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(ts.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	var ws *websocket.Conn
	select {
	case ws = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade timed out")
	}
	client := NewClient(ws, "U-sam", 1)

	started := time.Now()
	require.NoError(t, client.Send([]byte(`{"event":"a"}`)))
	assert.ErrorIs(t, client.Send([]byte(`{"event":"b"}`)), errBufferFull)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.ErrorIs(t, client.Send([]byte(`{"event":"c"}`)), errClosed)

	select {
	case <-client.done:
	default:
		t.Fatal("client not marked closed")
	}

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = peer.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
