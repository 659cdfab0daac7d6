package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	apperrors "sudooom.im.talk/internal/errors"
	"sudooom.im.talk/internal/metrics"
	"sudooom.im.talk/internal/model"
	"sudooom.im.talk/pkg/proto"
)

// MessageCreator 消息写入
type MessageCreator interface {
	Create(ctx context.Context, env model.Envelope, ext model.Extension) (*model.Message, error)
}

// VoteSubmitter 投票作答
type VoteSubmitter interface {
	SubmitAnswer(ctx context.Context, voterId, recordId int64, selected []string) (*model.VoteResult, error)
}

// TalkListBuilder 会话列表
type TalkListBuilder interface {
	Build(ctx context.Context, ownerId int64) ([]model.ConversationSummary, error)
}

// UnreadResetter 会话已读
type UnreadResetter interface {
	Reset(ctx context.Context, recipientId, senderId int64) error
}

// PresenceRegistrar 连接节点上报的在线状态
type PresenceRegistrar interface {
	Heartbeat(ctx context.Context, instanceId string) error
	Connect(ctx context.Context, instanceId string, userId int64) error
	Disconnect(ctx context.Context, instanceId string, userId int64) error
}

// DownstreamPublisher 回复 Access 节点
type DownstreamPublisher interface {
	PublishToAccess(accessNodeId string, message *proto.DownstreamMessage) error
}

// TalkHandler 上行消息处理器实现
type TalkHandler struct {
	messages  MessageCreator
	votes     VoteSubmitter
	talkList  TalkListBuilder
	unread    UnreadResetter
	presence  PresenceRegistrar
	publisher DownstreamPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewTalkHandler 创建上行消息处理器
func NewTalkHandler(
	messages MessageCreator,
	votes VoteSubmitter,
	talkList TalkListBuilder,
	unread UnreadResetter,
	presence PresenceRegistrar,
	publisher DownstreamPublisher,
	m *metrics.Metrics,
) *TalkHandler {
	return &TalkHandler{
		messages:  messages,
		votes:     votes,
		talkList:  talkList,
		unread:    unread,
		presence:  presence,
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default(),
	}
}

// HandleTalkMessage 写入消息并回复 ACK
func (h *TalkHandler) HandleTalkMessage(ctx context.Context, msg *proto.TalkMessage, accessNodeId string, connId int64) {
	env := model.Envelope{
		SenderId:   msg.SenderId,
		ReceiverId: msg.ReceiverId,
		TalkType:   model.TalkType(msg.TalkType),
		Kind:       model.MessageKind(msg.MsgType),
	}

	ext, err := decodeExtension(env.Kind, msg.Body)
	if err != nil {
		h.replyError(accessNodeId, connId, msg.ClientMsgId, "talk", err)
		return
	}

	created, err := h.messages.Create(ctx, env, ext)
	if err != nil {
		h.replyError(accessNodeId, connId, msg.ClientMsgId, "talk", err)
		return
	}

	h.observe("talk", nil)
	h.reply(accessNodeId, &proto.DownstreamMessage{
		ConnId: connId,
		Payload: proto.DownstreamPayload{Ack: &proto.Ack{
			ClientMsgId: msg.ClientMsgId,
			RecordId:    created.Id,
			Timestamp:   created.CreatedAt.UnixMilli(),
		}},
	})
}

// HandleVoteAnswer 提交投票
func (h *TalkHandler) HandleVoteAnswer(ctx context.Context, answer *proto.VoteAnswer, accessNodeId string, connId int64) {
	result, err := h.votes.SubmitAnswer(ctx, answer.UserId, answer.RecordId, answer.Options)
	if err != nil {
		h.replyError(accessNodeId, connId, answer.ClientMsgId, "vote", err)
		return
	}

	h.observe("vote", nil)
	h.reply(accessNodeId, &proto.DownstreamMessage{
		ConnId: connId,
		Payload: proto.DownstreamPayload{Ack: &proto.Ack{
			ClientMsgId: answer.ClientMsgId,
			RecordId:    answer.RecordId,
			Closed:      result.Closed,
			Timestamp:   time.Now().UnixMilli(),
		}},
	})
}

// HandleConversationRead 清空未读
func (h *TalkHandler) HandleConversationRead(ctx context.Context, event *proto.ConversationRead) {
	err := h.unread.Reset(ctx, event.UserId, event.SenderId)
	h.observe("read", err)
	if err != nil {
		h.logger.Error("Failed to reset unread", "userId", event.UserId, "senderId", event.SenderId, "error", err)
		return
	}
	h.logger.Debug("Conversation marked read", "userId", event.UserId, "senderId", event.SenderId)
}

// HandleTalkListRequest 返回会话列表
func (h *TalkHandler) HandleTalkListRequest(ctx context.Context, req *proto.TalkListRequest, accessNodeId string, connId int64) {
	items, err := h.talkList.Build(ctx, req.UserId)
	if err != nil {
		h.replyError(accessNodeId, connId, "", "list", err)
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		h.replyError(accessNodeId, connId, "", "list", err)
		return
	}

	h.observe("list", nil)
	h.reply(accessNodeId, &proto.DownstreamMessage{
		ConnId:  connId,
		Payload: proto.DownstreamPayload{TalkList: &proto.TalkList{UserId: req.UserId, Items: data}},
	})
}

// HandleUserOnline 用户连接到 Access 节点
func (h *TalkHandler) HandleUserOnline(ctx context.Context, event *proto.UserOnline, accessNodeId string) {
	err := h.presence.Connect(ctx, accessNodeId, event.UserId)
	h.observe("online", err)
	if err != nil {
		h.logger.Error("Failed to register session", "userId", event.UserId, "accessNodeId", accessNodeId, "error", err)
		return
	}
	h.logger.Info("User online", "userId", event.UserId, "accessNodeId", accessNodeId, "platform", event.Platform)
}

// HandleUserOffline 用户断开
func (h *TalkHandler) HandleUserOffline(ctx context.Context, event *proto.UserOffline, accessNodeId string) {
	err := h.presence.Disconnect(ctx, accessNodeId, event.UserId)
	h.observe("offline", err)
	if err != nil {
		h.logger.Error("Failed to remove session", "userId", event.UserId, "accessNodeId", accessNodeId, "error", err)
		return
	}
	h.logger.Info("User offline", "userId", event.UserId, "accessNodeId", accessNodeId)
}

// HandleServerHeartbeat Access 节点心跳
func (h *TalkHandler) HandleServerHeartbeat(ctx context.Context, _ *proto.ServerHeartbeat, accessNodeId string) {
	err := h.presence.Heartbeat(ctx, accessNodeId)
	h.observe("heartbeat", err)
	if err != nil {
		h.logger.Warn("Failed to record heartbeat", "accessNodeId", accessNodeId, "error", err)
	}
}

func (h *TalkHandler) reply(accessNodeId string, msg *proto.DownstreamMessage) {
	if accessNodeId == "" {
		return
	}
	if err := h.publisher.PublishToAccess(accessNodeId, msg); err != nil {
		h.logger.Error("Failed to reply", "accessNodeId", accessNodeId, "error", err)
	}
}

func (h *TalkHandler) replyError(accessNodeId string, connId int64, clientMsgId, kind string, err error) {
	h.observe(kind, err)
	h.logger.Warn("Upstream request failed",
		"type", kind,
		"clientMsgId", clientMsgId,
		"code", apperrors.GetCode(err),
		"error", err)

	h.reply(accessNodeId, &proto.DownstreamMessage{
		ConnId: connId,
		Payload: proto.DownstreamPayload{Error: &proto.Error{
			ClientMsgId: clientMsgId,
			Code:        apperrors.GetCode(err),
			Message:     apperrors.GetMessage(err),
		}},
	})
}

func (h *TalkHandler) observe(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.metrics.UpstreamMessagesHandled.WithLabelValues(kind, result).Inc()
}

// decodeExtension 按消息类型解码消息体
func decodeExtension(kind model.MessageKind, body json.RawMessage) (model.Extension, error) {
	var ext model.Extension
	var err error
	switch kind {
	case model.MessageKindText:
		var b model.TextBody
		err = json.Unmarshal(body, &b)
		ext = b
	case model.MessageKindCode:
		var b model.CodeBody
		err = json.Unmarshal(body, &b)
		ext = b
	case model.MessageKindFile:
		var b model.FileBody
		err = json.Unmarshal(body, &b)
		ext = b
	case model.MessageKindVote:
		var b model.VoteBody
		err = json.Unmarshal(body, &b)
		ext = b
	default:
		return nil, apperrors.ErrInvalidParams.Wrap(fmt.Errorf("unknown message kind %d", kind))
	}
	if err != nil {
		return nil, apperrors.ErrInvalidParams.Wrap(err)
	}
	return ext, nil
}
