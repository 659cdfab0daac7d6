package service

import (
	"context"
	"time"

	"sudooom.im.talk/internal/model"
	"sudooom.im.talk/internal/snowflake"
	"sudooom.im.talk/pkg/proto"
)

// EventPublisher 新消息事件发布
type EventPublisher interface {
	PublishTalkEvent(ctx context.Context, event *proto.TalkEvent) error
}

// PreviewStore 会话预览缓存
type PreviewStore interface {
	Save(ctx context.Context, conversation string, msg model.LastMessage) error
	ReadMany(ctx context.Context, conversations []string) (map[string]model.LastMessage, error)
}

// UnreadStore 私聊未读计数
type UnreadStore interface {
	Increment(ctx context.Context, recipientId, senderId int64) (int64, error)
	ReadMany(ctx context.Context, recipientId int64, senderIds []int64) (map[int64]int64, error)
}

// Membership 好友/群成员与资料查询
type Membership interface {
	ActiveMemberCount(ctx context.Context, groupId int64) (int, error)
	IsMember(ctx context.Context, userId, targetId int64, talkType model.TalkType) (bool, error)
	Profiles(ctx context.Context, ownerId int64, userIds, groupIds []int64) (map[model.TalkType]map[int64]model.Profile, error)
}

// PresenceChecker 批量在线状态
type PresenceChecker interface {
	OnlineSet(ctx context.Context, userIds []int64) map[int64]bool
}

// IDGenerator 消息 ID 生成
type IDGenerator interface {
	Generate() snowflake.ID
}

// TalkListStore 会话列表存储
type TalkListStore interface {
	ListActive(ctx context.Context, userId int64) ([]model.TalkListEntry, error)
	Create(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64, at time.Time) (*model.TalkListEntry, error)
	SetTop(ctx context.Context, userId, listId int64, top bool, at time.Time) (bool, error)
	Delete(ctx context.Context, userId, listId int64, at time.Time) (bool, error)
	DeleteByType(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64, at time.Time) (bool, error)
	SetDisturb(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64, disturb bool, at time.Time) (bool, error)
}

// now 数据库时间精度为微秒
func now() time.Time {
	return time.Now().Truncate(time.Microsecond)
}
