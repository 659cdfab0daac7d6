package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"sudooom.im.talk/internal/cache"
	apperrors "sudooom.im.talk/internal/errors"
	"sudooom.im.talk/internal/model"
)

// TalkListService 会话列表
type TalkListService struct {
	store    TalkListStore
	members  Membership
	previews PreviewStore
	unread   UnreadStore
	presence PresenceChecker
	logger   *slog.Logger
	now      func() time.Time
}

// NewTalkListService 创建会话列表服务
func NewTalkListService(store TalkListStore, members Membership, previews PreviewStore, unread UnreadStore, presence PresenceChecker) *TalkListService {
	return &TalkListService{
		store:    store,
		members:  members,
		previews: previews,
		unread:   unread,
		presence: presence,
		logger:   slog.Default(),
		now:      now,
	}
}

type summaryItem struct {
	summary model.ConversationSummary
	sortAt  time.Time
}

// Build 构建用户的会话列表，按最后活动时间倒序。
// 资料一次批量查询；预览、未读、在线状态各一次批量读取，缓存不可用时降级为默认值。
func (s *TalkListService) Build(ctx context.Context, ownerId int64) ([]model.ConversationSummary, error) {
	entries, err := s.store.ListActive(ctx, ownerId)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if len(entries) == 0 {
		return []model.ConversationSummary{}, nil
	}

	var userIds, groupIds []int64
	conversations := make([]string, len(entries))
	for i, e := range entries {
		if e.TalkType == model.TalkTypePrivate {
			userIds = append(userIds, e.ReceiverId)
		} else {
			groupIds = append(groupIds, e.ReceiverId)
		}
		conversations[i] = cache.ConversationKey(e.TalkType, ownerId, e.ReceiverId)
	}

	profiles, err := s.members.Profiles(ctx, ownerId, userIds, groupIds)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	previews, err := s.previews.ReadMany(ctx, conversations)
	if err != nil {
		s.logger.Warn("Failed to read previews", "userId", ownerId, "error", err)
		previews = nil
	}

	unread, err := s.unread.ReadMany(ctx, ownerId, userIds)
	if err != nil {
		s.logger.Warn("Failed to read unread counts", "userId", ownerId, "error", err)
		unread = nil
	}

	online := s.presence.OnlineSet(ctx, userIds)

	items := make([]summaryItem, len(entries))
	for i, e := range entries {
		sum := model.ConversationSummary{
			Id:         e.Id,
			TalkType:   e.TalkType,
			ReceiverId: e.ReceiverId,
			IsTop:      e.IsTop,
			IsDisturb:  e.IsDisturb,
			MsgText:    model.PlaceholderText,
			UpdatedAt:  model.DefaultUpdatedAt,
		}
		sortAt := defaultTime()
		if !e.UpdatedAt.IsZero() {
			sum.UpdatedAt = e.UpdatedAt.Format(model.TimeLayout)
			sortAt = e.UpdatedAt
		}

		if p, ok := profiles[e.TalkType][e.ReceiverId]; ok {
			sum.Name = p.Name
			sum.Avatar = p.Avatar
			sum.RemarkName = p.Remark
		}

		if e.TalkType == model.TalkTypePrivate {
			sum.UnreadNum = unread[e.ReceiverId]
			sum.IsOnline = online[e.ReceiverId]
		}

		if last, ok := previews[conversations[i]]; ok {
			sum.MsgText = last.Text
			if t, err := time.ParseInLocation(model.TimeLayout, last.CreatedAt, time.Local); err == nil {
				sum.UpdatedAt = last.CreatedAt
				sortAt = t
			}
		}

		items[i] = summaryItem{summary: sum, sortAt: sortAt}
	}

	slices.SortStableFunc(items, func(a, b summaryItem) int {
		return b.sortAt.Compare(a.sortAt)
	})

	result := make([]model.ConversationSummary, len(items))
	for i, item := range items {
		result[i] = item.summary
	}
	return result, nil
}

// Create 主动打开会话，已存在则重置置顶、免打扰和删除标记
func (s *TalkListService) Create(ctx context.Context, ownerId, receiverId int64, talkType model.TalkType) (*model.TalkListEntry, error) {
	if err := (model.Envelope{SenderId: ownerId, ReceiverId: receiverId, TalkType: talkType}).Validate(); err != nil {
		return nil, err
	}

	ok, err := s.members.IsMember(ctx, ownerId, receiverId, talkType)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if !ok {
		return nil, apperrors.ErrNotMember
	}

	entry, err := s.store.Create(ctx, ownerId, talkType, receiverId, s.now())
	if err != nil {
		return nil, apperrors.ErrWriteFailure.Wrap(err)
	}
	return entry, nil
}

// Top 置顶/取消置顶，记录不存在返回 false
func (s *TalkListService) Top(ctx context.Context, ownerId, listId int64, top bool) (bool, error) {
	ok, err := s.store.SetTop(ctx, ownerId, listId, top, s.now())
	if err != nil {
		return false, apperrors.ErrWriteFailure.Wrap(err)
	}
	return ok, nil
}

// Delete 删除会话，记录不存在返回 false
func (s *TalkListService) Delete(ctx context.Context, ownerId, listId int64) (bool, error) {
	ok, err := s.store.Delete(ctx, ownerId, listId, s.now())
	if err != nil {
		return false, apperrors.ErrWriteFailure.Wrap(err)
	}
	return ok, nil
}

// DeleteByType 按会话对象删除
func (s *TalkListService) DeleteByType(ctx context.Context, ownerId, receiverId int64, talkType model.TalkType) (bool, error) {
	ok, err := s.store.DeleteByType(ctx, ownerId, talkType, receiverId, s.now())
	if err != nil {
		return false, apperrors.ErrWriteFailure.Wrap(err)
	}
	return ok, nil
}

// Disturb 设置免打扰，状态未变化或记录不存在返回 false
func (s *TalkListService) Disturb(ctx context.Context, ownerId, receiverId int64, talkType model.TalkType, disturb bool) (bool, error) {
	ok, err := s.store.SetDisturb(ctx, ownerId, talkType, receiverId, disturb, s.now())
	if err != nil {
		return false, apperrors.ErrWriteFailure.Wrap(err)
	}
	return ok, nil
}

func defaultTime() time.Time {
	t, _ := time.ParseInLocation(model.TimeLayout, model.DefaultUpdatedAt, time.Local)
	return t
}
