package message

import (
	"context"

	"course_chat_server/internal/dto/request"
	"course_chat_server/internal/model"
	"course_chat_server/internal/service/chat"
	"course_chat_server/pkg/constants"
	"course_chat_server/pkg/errorx"
)

// Authorizer 成员资格校验
type Authorizer interface {
	Authorize(ctx context.Context, p model.Principal, parentID string, kind model.ParentKind) ([]model.Participant, error)
}

type messageService struct {
	store  chat.HistoryReader
	access Authorizer
}

func NewMessageService(store chat.HistoryReader, access Authorizer) *messageService {
	return &messageService{store: store, access: access}
}

// History 与加入时的回放使用同一分页规则，结果按时间升序
func (s *messageService) History(ctx context.Context, p model.Principal, req request.HistoryRequest) (model.HistoryPage, error) {
	kind := model.ParentKind(req.ParentKind)
	if !kind.Valid() {
		return model.HistoryPage{}, errorx.Newf(errorx.CodeInvalidParam, "未知容器类型 %q", req.ParentKind)
	}
	if _, err := s.access.Authorize(ctx, p, req.ParentID, kind); err != nil {
		return model.HistoryPage{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = constants.HISTORY_PAGE_SIZE
	}
	if limit > constants.HISTORY_PAGE_MAX {
		limit = constants.HISTORY_PAGE_MAX
	}
	page, err := chat.History(ctx, s.store, req.ParentID, model.Page{Before: req.Before, Limit: limit})
	if err != nil {
		return model.HistoryPage{}, errorx.Wrap(err, errorx.CodeDBError, "读取历史消息失败")
	}
	return page, nil
}
