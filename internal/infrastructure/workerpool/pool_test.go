package workerpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmitRunsAllTasks(t *testing.T) {
	p := New(4, 8)
	var n int64
	for i := 0; i < 100; i++ {
		p.Submit(func() { atomic.AddInt64(&n, 1) })
	}
	p.Close()
	assert.EqualValues(t, 100, atomic.LoadInt64(&n))
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	p := New(1, 4)
	var n int64
	p.Submit(func() { panic("boom") })
	p.Submit(func() { atomic.AddInt64(&n, 1) })
	p.Close()
	assert.EqualValues(t, 1, atomic.LoadInt64(&n))
}

func TestSubmitAfterCloseRunsInline(t *testing.T) {
	p := New(1, 1)
	p.Close()
	ran := false
	p.Submit(func() { ran = true })
	assert.True(t, ran)
}
