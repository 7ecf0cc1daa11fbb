// Package scheduler 周期性后台任务
package scheduler

import (
	"time"

	"course_chat_server/internal/service/chat"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StatsSource 提供运行时统计，由 *chat.Server 实现
type StatsSource interface {
	Stats() chat.Stats
}

// Scheduler 定时记录连接、容器和正在输入的数量
type Scheduler struct {
	cron   *cron.Cron
	source StatsSource
	nodeID string
}

func NewScheduler(source StatsSource, nodeID string) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		source: source,
		nodeID: nodeID,
	}
}

// Start 注册任务并启动；expr 为 cron 表达式或 @every 1m 这样的描述符
func (s *Scheduler) Start(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.logStats); err != nil {
		return err
	}
	s.cron.Start()
	zap.L().Info("scheduler started", zap.String("stats_cron", expr))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.L().Info("scheduler stopped")
}

func (s *Scheduler) logStats() {
	st := s.source.Stats()
	zap.L().Info("chat stats",
		zap.String("node_id", s.nodeID),
		zap.Int("connections", st.Connections),
		zap.Int("parents", st.Parents),
		zap.Int("typing", st.Typing),
	)
}
