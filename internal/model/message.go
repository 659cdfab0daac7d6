package model

import (
	"fmt"
	"time"

	apperrors "sudooom.im.talk/internal/errors"
)

// TalkType 会话类型
type TalkType int

const (
	TalkTypePrivate TalkType = 1 // 私聊
	TalkTypeGroup   TalkType = 2 // 群聊
)

func (t TalkType) Valid() bool {
	return t == TalkTypePrivate || t == TalkTypeGroup
}

func (t TalkType) String() string {
	switch t {
	case TalkTypePrivate:
		return "private"
	case TalkTypeGroup:
		return "group"
	default:
		return fmt.Sprintf("talk_type(%d)", int(t))
	}
}

// MessageKind 消息类型
type MessageKind int

const (
	MessageKindText MessageKind = 1 // 文本
	MessageKindFile MessageKind = 2 // 文件/图片/音视频
	MessageKindCode MessageKind = 4 // 代码块
	MessageKindVote MessageKind = 5 // 投票
)

func (k MessageKind) String() string {
	switch k {
	case MessageKindText:
		return "text"
	case MessageKindFile:
		return "file"
	case MessageKindCode:
		return "code"
	case MessageKindVote:
		return "vote"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Envelope 发送方声明的消息头
type Envelope struct {
	SenderId   int64       `json:"sender_id"`
	ReceiverId int64       `json:"receiver_id"`
	TalkType   TalkType    `json:"talk_type"`
	Kind       MessageKind `json:"msg_type"`
}

// Validate 校验消息头
func (e Envelope) Validate() error {
	if e.SenderId <= 0 || e.ReceiverId <= 0 {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("sender %d receiver %d", e.SenderId, e.ReceiverId))
	}
	if !e.TalkType.Valid() {
		return apperrors.ErrUnsupportedTalkType.Wrap(fmt.Errorf("talk type %d", e.TalkType))
	}
	if e.TalkType == TalkTypePrivate && e.SenderId == e.ReceiverId {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("private talk to self"))
	}
	return nil
}

// Message 消息记录（talk_records），提交后不可变
type Message struct {
	Id         int64       `json:"id"`
	UserId     int64       `json:"user_id"`
	ReceiverId int64       `json:"receiver_id"`
	TalkType   TalkType    `json:"talk_type"`
	Kind       MessageKind `json:"msg_type"`
	Content    string      `json:"content,omitempty"`
	IsRevoke   bool        `json:"is_revoke"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
