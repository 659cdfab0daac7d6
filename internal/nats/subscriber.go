package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"sudooom.im.talk/pkg/proto"
)

// MessageHandler 上行消息处理器
type MessageHandler interface {
	HandleTalkMessage(ctx context.Context, msg *proto.TalkMessage, accessNodeId string, connId int64)
	HandleVoteAnswer(ctx context.Context, answer *proto.VoteAnswer, accessNodeId string, connId int64)
	HandleConversationRead(ctx context.Context, event *proto.ConversationRead)
	HandleTalkListRequest(ctx context.Context, req *proto.TalkListRequest, accessNodeId string, connId int64)
	HandleUserOnline(ctx context.Context, event *proto.UserOnline, accessNodeId string)
	HandleUserOffline(ctx context.Context, event *proto.UserOffline, accessNodeId string)
	HandleServerHeartbeat(ctx context.Context, event *proto.ServerHeartbeat, accessNodeId string)
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	WorkerCount int // Worker 数量
	BufferSize  int // 消息缓冲区大小
}

// MessageSubscriber 上行消息订阅器
type MessageSubscriber struct {
	nc           *nats.Conn
	handler      MessageHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

// NewMessageSubscriber 创建消息订阅器
func NewMessageSubscriber(nc *nats.Conn, handler MessageHandler, config SubscriberConfig) *MessageSubscriber {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 100
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}

	return &MessageSubscriber{
		nc:      nc,
		handler: handler,
		logger:  slog.Default(),
		config:  config,
	}
}

// Start 启动 Worker Pool 并以队列组订阅上行消息
func (s *MessageSubscriber) Start(ctx context.Context) error {
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	sub, err := s.nc.QueueSubscribe(SubjectTalkUpstream, QueueGroupTalk, func(msg *nats.Msg) {
		select {
		case s.msgChan <- msg:
		default:
			s.logger.Warn("Message buffer full, dropping message", "bufferSize", s.config.BufferSize)
		}
	})
	if err != nil {
		cancel()
		s.wg.Wait()
		return err
	}

	s.subscription = sub
	s.logger.Info("NATS subscriber started",
		"subject", SubjectTalkUpstream,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

func (s *MessageSubscriber) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgChan:
			if !ok {
				return
			}
			s.handleUpstreamMessage(ctx, msg.Data)
		}
	}
}

// handleUpstreamMessage 解码并分发上行消息
func (s *MessageSubscriber) handleUpstreamMessage(ctx context.Context, data []byte) {
	var message proto.UpstreamMessage
	if err := json.Unmarshal(data, &message); err != nil {
		s.logger.Error("Failed to unmarshal message", "error", err)
		return
	}

	nodeId := message.AccessNodeId
	connId := message.ConnId
	p := message.Payload

	switch {
	case p.TalkMessage != nil:
		s.handler.HandleTalkMessage(ctx, p.TalkMessage, nodeId, connId)
	case p.VoteAnswer != nil:
		s.handler.HandleVoteAnswer(ctx, p.VoteAnswer, nodeId, connId)
	case p.ConversationRead != nil:
		s.handler.HandleConversationRead(ctx, p.ConversationRead)
	case p.TalkListRequest != nil:
		s.handler.HandleTalkListRequest(ctx, p.TalkListRequest, nodeId, connId)
	case p.UserOnline != nil:
		s.handler.HandleUserOnline(ctx, p.UserOnline, nodeId)
	case p.UserOffline != nil:
		s.handler.HandleUserOffline(ctx, p.UserOffline, nodeId)
	case p.ServerHeartbeat != nil:
		s.handler.HandleServerHeartbeat(ctx, p.ServerHeartbeat, nodeId)
	default:
		s.logger.Warn("Empty upstream payload", "accessNodeId", nodeId)
	}
}

// Stop 停止订阅并等待 worker 退出
func (s *MessageSubscriber) Stop() error {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	s.wg.Wait()

	s.logger.Info("NATS subscriber stopped")
	return nil
}

// GetBufferUsage 获取缓冲区使用情况
func (s *MessageSubscriber) GetBufferUsage() (current int, capacity int) {
	if s.msgChan == nil {
		return 0, 0
	}
	return len(s.msgChan), cap(s.msgChan)
}
