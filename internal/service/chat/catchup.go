package chat

import (
	"context"

	"course_chat_server/internal/model"
	"course_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// Join 加入会话或课程群，并回放最近的历史消息
// 在容器锁内完成 加入扇出集合并开始暂存 -> 读取历史 -> 发送回执，回执与之后扇出的消息之间无缺口、无重复
// 重复加入不改变成员关系，但仍会返回一份最新的历史
func (s *Server) Join(ctx context.Context, sess *Session, parentID string, kind model.ParentKind, limit int) error {
	if parentID == "" {
		return validationf("parentId 不能为空")
	}
	limit = s.pageLimit(limit)

	unlock := s.locks.Lock(parentID)
	defer unlock()

	t, err := s.authorize(ctx, sess.Principal, parentID, kind)
	if err != nil {
		return err
	}
	if joinedKind, ok := sess.Joined(parentID); ok && joinedKind != kind {
		return validationf("容器 %s 的类型为 %s", parentID, joinedKind)
	}
	// 回执发出前到达的扇出事件（Kafka 模式下由消费协程投递）先暂存
	added, err := s.registry.JoinCatchUp(sess.ID(), parentID, kind)
	if err != nil {
		return err
	}
	page, err := s.latestPage(ctx, parentID, limit)
	if err != nil {
		if added {
			s.registry.Leave(sess.ID(), parentID)
		}
		sess.abortCatchUp(parentID)
		return persistenceError(err, "读取历史消息")
	}

	joined := JoinedPayload{
		ParentID:   parentID,
		ParentKind: kind,
		Messages:   page.Messages,
		HasMore:    page.HasMore,
		Typing:     s.typing.Typing(parentID),
	}
	if kind == model.KindRoom {
		joined.Roster = t.roster
	}
	ack, err := encode(joinedEvent(kind), joined)
	if err != nil {
		sess.abortCatchUp(parentID)
		return err
	}
	pageIDs := make([]int64, 0, len(page.Messages))
	for _, m := range page.Messages {
		pageIDs = append(pageIDs, m.ID)
	}
	if err := sess.finishCatchUp(parentID, pageIDs, ack); err != nil {
		zap.L().Warn("发送加入回执失败", zap.String("conn_id", sess.ID()), zap.String("parent_id", parentID), zap.Error(err))
	}

	s.markRead(ctx, parentID, kind, sess.Principal.UserID)
	zap.L().Debug("加入容器", zap.String("conn_id", sess.ID()), zap.String("parent_id", parentID), zap.String("kind", string(kind)), zap.Int("history", len(page.Messages)))
	return nil
}

// latestPage 最近 limit 条，按时间升序；多取一条判断是否还有更早的消息
func (s *Server) latestPage(ctx context.Context, parentID string, limit int) (model.HistoryPage, error) {
	return History(ctx, s.store, parentID, model.Page{Limit: limit})
}

func (s *Server) pageLimit(limit int) int {
	if limit <= 0 {
		return s.opts.HistoryPageSize
	}
	if limit > constants.HISTORY_PAGE_MAX {
		return constants.HISTORY_PAGE_MAX
	}
	return limit
}

// HistoryReader 只读历史消息
type HistoryReader interface {
	ListMessages(ctx context.Context, parentID string, before int64, limit int) ([]model.Message, error)
}

// History 读取 page.Before 之前的一页消息并转为升序，HTTP 历史查询与加入回放共用
func History(ctx context.Context, store HistoryReader, parentID string, page model.Page) (model.HistoryPage, error) {
	rows, err := store.ListMessages(ctx, parentID, page.Before, page.Limit+1)
	if err != nil {
		return model.HistoryPage{}, err
	}
	hasMore := len(rows) > page.Limit
	if hasMore {
		rows = rows[:page.Limit]
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if rows == nil {
		rows = []model.Message{}
	}
	return model.HistoryPage{Messages: rows, HasMore: hasMore}, nil
}
