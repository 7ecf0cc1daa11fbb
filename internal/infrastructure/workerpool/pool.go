// Package workerpool 提供固定数量协程的异步任务池
// 用于消息投递状态回写等不影响主流程的后台任务
package workerpool

import (
	"sync"

	"go.uber.org/zap"
)

// Pool 异步任务池
// 队列满时降级为同步执行，保证任务不丢
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// New 启动 workerNum 个 worker，队列长度 queueSize
func New(workerNum, queueSize int) *Pool {
	if workerNum <= 0 {
		workerNum = 1
	}
	p := &Pool{tasks: make(chan func(), queueSize)}
	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	zap.L().Info("worker pool started", zap.Int("workers", workerNum), zap.Int("buffer", queueSize))
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

// run 单个任务 panic 不影响 worker 继续消费
func (p *Pool) run(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("worker task panic", zap.Any("recover", rec))
		}
	}()
	task()
}

// Submit 提交异步任务
func (p *Pool) Submit(task func()) {
	if task == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.run(task)
		return
	}
	select {
	case p.tasks <- task:
	default:
		zap.L().Warn("worker pool queue full, executing synchronously")
		p.run(task)
	}
}

// Close 停止接收新任务并等待队列中的任务执行完毕
func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
