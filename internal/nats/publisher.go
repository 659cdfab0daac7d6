package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sudooom.im.talk/pkg/proto"
)

// TalkPublisher 事件与下行消息发布器
type TalkPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewTalkPublisher 创建发布器
func NewTalkPublisher(nc *nats.Conn) *TalkPublisher {
	return &TalkPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// PublishTalkEvent 发布新消息事件，at-most-once
func (p *TalkPublisher) PublishTalkEvent(ctx context.Context, event *proto.TalkEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.nc.Publish(SubjectTalkEvent, data); err != nil {
		return err
	}

	p.logger.Debug("Published talk event",
		"eventId", event.EventId,
		"recordId", event.RecordId)
	return nil
}

// PublishToAccess 推送消息到指定 Access 节点
func (p *TalkPublisher) PublishToAccess(accessNodeId string, message *proto.DownstreamMessage) error {
	subject := BuildAccessDownstreamSubject(accessNodeId)
	data, err := json.Marshal(message)
	if err != nil {
		p.logger.Error("Failed to marshal message", "error", err)
		return err
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish to access", "accessNodeId", accessNodeId, "error", err)
		return err
	}

	p.logger.Debug("Published message to access node", "accessNodeId", accessNodeId, "subject", subject)
	return nil
}
