package chat

import (
	"fmt"
	"sync"
	"testing"

	"course_chat_server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var student = model.Principal{UserID: "U1", Role: model.RoleStudent, Name: "A"}

func TestRegisterRejectsUnresolvedPrincipal(t *testing.T) {
	r := NewRegistry()
	for _, p := range []model.Principal{{}, {UserID: "U1"}, {UserID: "U1", Role: "admin"}} {
		_, err := r.Register(newFakeConn(), p)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}
	conns, _ := r.Stats()
	assert.Zero(t, conns)
}

func TestJoinLeaveIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn()
	_, err := r.Register(conn, student)
	require.NoError(t, err)

	added, err := r.Join(conn.ID(), "R1", model.KindRoom)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = r.Join(conn.ID(), "R1", model.KindRoom)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, r.Members("R1"), 1)

	assert.True(t, r.Leave(conn.ID(), "R1"))
	assert.False(t, r.Leave(conn.ID(), "R1"))
	assert.Empty(t, r.Members("R1"))

	_, err = r.Join("W-unknown", "R1", model.KindRoom)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestFanOutSkipsExcludedAndClosed(t *testing.T) {
	r := NewRegistry()
	a, b, c := newFakeConn(), newFakeConn(), newFakeConn()
	for _, conn := range []*fakeConn{a, b, c} {
		_, err := r.Register(conn, student)
		require.NoError(t, err)
		_, err = r.Join(conn.ID(), "R1", model.KindRoom)
		require.NoError(t, err)
	}
	c.Close(1000, "gone")

	payload := mustEncode(t, EventTypingUpdate, TypingPayload{ParentID: "R1"})
	assert.Equal(t, 1, r.FanOut("R1", 0, payload, a.ID()))
	assert.Empty(t, a.events(EventTypingUpdate))
	assert.Len(t, b.events(EventTypingUpdate), 1)
}

func TestSnapshotUnaffectedByLaterLeave(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn(), newFakeConn()
	for _, conn := range []*fakeConn{a, b} {
		_, err := r.Register(conn, student)
		require.NoError(t, err)
		_, err = r.Join(conn.ID(), "R1", model.KindRoom)
		require.NoError(t, err)
	}
	snapshot := r.Members("R1")
	r.Leave(a.ID(), "R1")
	assert.Len(t, snapshot, 2)
	assert.Len(t, r.Members("R1"), 1)
}

func TestUnregisterDropsAllMemberships(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn()
	sess, err := r.Register(conn, student)
	require.NoError(t, err)
	for _, id := range []string{"C1", "R1", "R2"} {
		_, err := r.Join(conn.ID(), id, model.KindRoom)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"C1", "R1", "R2"}, sess.Parents())

	removed, ok := r.Unregister(conn.ID())
	require.True(t, ok)
	assert.Same(t, sess, removed)
	assert.Empty(t, sess.Parents())
	for _, id := range []string{"C1", "R1", "R2"} {
		assert.Empty(t, r.Members(id))
		assert.False(t, r.UserJoined(id, student.UserID))
	}
	assert.False(t, r.UserConnected(student.UserID))
	conns, parents := r.Stats()
	assert.Zero(t, conns)
	assert.Zero(t, parents)
}

// 扇出与加入/退出并发执行时不会 panic 或丢失成员
func TestConcurrentJoinAndFanOut(t *testing.T) {
	r := NewRegistry()
	payload := mustEncode(t, EventTypingUpdate, TypingPayload{ParentID: "R1"})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := newFakeConn()
			p := model.Principal{UserID: fmt.Sprintf("U%d", i), Role: model.RoleStudent}
			if _, err := r.Register(conn, p); !assert.NoError(t, err) {
				return
			}
			for j := 0; j < 50; j++ {
				_, _ = r.Join(conn.ID(), "R1", model.KindRoom)
				r.FanOut("R1", 0, payload, "")
				if j%2 == 0 {
					r.Leave(conn.ID(), "R1")
				}
			}
			_, _ = r.Join(conn.ID(), "R1", model.KindRoom)
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.Members("R1"), 20)
}

func TestParentLocks(t *testing.T) {
	locks := newParentLocks()
	unlock := locks.LockAll([]string{"b", "a", "b"})
	assert.Equal(t, 2, locks.size())
	unlock()
	assert.Zero(t, locks.size())

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer locks.Lock("p")()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, locks.size())
}
