package proto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ============== 上行消息 (Access -> Talk) ==============

// UpstreamMessage 上行消息封装
type UpstreamMessage struct {
	AccessNodeId string          `json:"AccessNodeId"`
	ConnId       int64           `json:"ConnId"`
	Payload      UpstreamPayload `json:"Payload"`
}

// UpstreamPayload 上行消息载荷，只有一个字段非空
type UpstreamPayload struct {
	TalkMessage      *TalkMessage      `json:"TalkMessage,omitempty"`
	VoteAnswer       *VoteAnswer       `json:"VoteAnswer,omitempty"`
	ConversationRead *ConversationRead `json:"ConversationRead,omitempty"`
	TalkListRequest  *TalkListRequest  `json:"TalkListRequest,omitempty"`
	UserOnline       *UserOnline       `json:"UserOnline,omitempty"`
	UserOffline      *UserOffline      `json:"UserOffline,omitempty"`
	ServerHeartbeat  *ServerHeartbeat  `json:"ServerHeartbeat,omitempty"`
}

// TalkMessage 发送消息，Body 的结构由 MsgType 决定
type TalkMessage struct {
	ClientMsgId string          `json:"ClientMsgId"`
	SenderId    int64           `json:"SenderId"`
	ReceiverId  int64           `json:"ReceiverId"`
	TalkType    int             `json:"TalkType"`
	MsgType     int             `json:"MsgType"`
	Body        json.RawMessage `json:"Body"`
}

// VoteAnswer 投票作答
type VoteAnswer struct {
	ClientMsgId string   `json:"ClientMsgId"`
	UserId      int64    `json:"UserId"`
	RecordId    int64    `json:"RecordId"`
	Options     []string `json:"Options"`
}

// ConversationRead 会话已读
type ConversationRead struct {
	UserId   int64 `json:"UserId"`
	SenderId int64 `json:"SenderId"`
}

// TalkListRequest 拉取会话列表
type TalkListRequest struct {
	UserId int64 `json:"UserId"`
}

// UserOnline 用户上线事件
type UserOnline struct {
	UserId   int64  `json:"UserId"`
	Platform string `json:"Platform"`
}

// UserOffline 用户下线事件
type UserOffline struct {
	UserId int64 `json:"UserId"`
}

// ServerHeartbeat 连接节点心跳
type ServerHeartbeat struct {
	Timestamp int64 `json:"Timestamp"`
}

// ============== 事件 (Talk -> 订阅方) ==============

// EventTalk 新消息事件名
const EventTalk = "event_talk"

// TalkEvent 新消息通知，只携带定位消息所需的字段
type TalkEvent struct {
	EventId    string `json:"event_id"`
	Event      string `json:"event"`
	SenderId   int64  `json:"sender_id"`
	ReceiverId int64  `json:"receiver_id"`
	TalkType   int    `json:"talk_type"`
	RecordId   int64  `json:"record_id"`
	Timestamp  int64  `json:"timestamp"`
}

// NewTalkEvent 创建新消息事件
func NewTalkEvent(senderId, receiverId int64, talkType int, recordId int64) *TalkEvent {
	return &TalkEvent{
		EventId:    uuid.NewString(),
		Event:      EventTalk,
		SenderId:   senderId,
		ReceiverId: receiverId,
		TalkType:   talkType,
		RecordId:   recordId,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// ============== 下行消息 (Talk -> Access) ==============

// DownstreamMessage 下行消息封装
type DownstreamMessage struct {
	ConnId  int64             `json:"ConnId"`
	Payload DownstreamPayload `json:"Payload"`
}

// DownstreamPayload 下行消息载荷
type DownstreamPayload struct {
	Ack      *Ack      `json:"Ack,omitempty"`
	Error    *Error    `json:"Error,omitempty"`
	TalkList *TalkList `json:"TalkList,omitempty"`
}

// Ack 处理成功确认
type Ack struct {
	ClientMsgId string `json:"ClientMsgId"`
	RecordId    int64  `json:"RecordId,omitempty"`
	Closed      bool   `json:"Closed,omitempty"`
	Timestamp   int64  `json:"Timestamp"`
}

// Error 处理失败
type Error struct {
	ClientMsgId string `json:"ClientMsgId"`
	Code        int    `json:"Code"`
	Message     string `json:"Message"`
}

// TalkList 会话列表
type TalkList struct {
	UserId int64           `json:"UserId"`
	Items  json.RawMessage `json:"Items"`
}
