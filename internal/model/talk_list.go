package model

import "time"

const (
	// TimeLayout 列表与预览缓存使用的时间格式
	TimeLayout = "2006-01-02 15:04:05"

	// DefaultUpdatedAt 无任何时间信息时的兜底时间
	DefaultUpdatedAt = "2020-01-01 00:00:00"

	// PlaceholderText 无缓存消息时的预览文本
	PlaceholderText = "......"
)

// TalkListEntry 会话列表记录（talk_list），(user_id, talk_type, receiver_id) 唯一
type TalkListEntry struct {
	Id         int64     `json:"id"`
	UserId     int64     `json:"user_id"`
	TalkType   TalkType  `json:"talk_type"`
	ReceiverId int64     `json:"receiver_id"`
	IsTop      bool      `json:"is_top"`
	IsDisturb  bool      `json:"is_disturb"`
	IsDelete   bool      `json:"is_delete"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConversationSummary 会话列表展示项
type ConversationSummary struct {
	Id         int64    `json:"id"`
	TalkType   TalkType `json:"talk_type"`
	ReceiverId int64    `json:"receiver_id"`
	Avatar     string   `json:"avatar"`
	Name       string   `json:"name"`        // 对方昵称/群名称
	RemarkName string   `json:"remark_name"` // 好友备注
	UnreadNum  int64    `json:"unread_num"`
	IsOnline   bool     `json:"is_online"`
	IsTop      bool     `json:"is_top"`
	IsDisturb  bool     `json:"is_disturb"`
	MsgText    string   `json:"msg_text"`
	UpdatedAt  string   `json:"updated_at"`
}

// LastMessage 会话最后一条消息预览（Redis）
type LastMessage struct {
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Profile 用户或群的展示信息
type Profile struct {
	Id     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Remark string `json:"remark,omitempty"`
}
