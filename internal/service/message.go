package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"

	"sudooom.im.talk/internal/cache"
	apperrors "sudooom.im.talk/internal/errors"
	"sudooom.im.talk/internal/metrics"
	"sudooom.im.talk/internal/model"
	"sudooom.im.talk/internal/repository"
	"sudooom.im.talk/pkg/proto"
)

const (
	sideEffectTimeout   = 5 * time.Second
	sideEffectWorkers   = 16
	sideEffectQueueSize = 1024
)

// sideEffect 一条已提交消息的通知与缓存更新
type sideEffect struct {
	msg     *model.Message
	preview string
}

// MessageService 消息写入：消息与扩展同事务提交，提交后异步通知并更新缓存
type MessageService struct {
	db        repository.DB
	messages  *repository.MessageRepository
	talkList  *repository.TalkListRepository
	members   Membership
	ids       IDGenerator
	publisher EventPublisher
	previews  PreviewStore
	unread    UnreadStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	// 同一会话的副作用固定落在同一队列，按提交顺序执行
	effects   []chan sideEffect
	pending   sync.WaitGroup
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// NewMessageService 创建消息服务
func NewMessageService(
	db repository.DB,
	members Membership,
	ids IDGenerator,
	publisher EventPublisher,
	previews PreviewStore,
	unread UnreadStore,
	m *metrics.Metrics,
) *MessageService {
	s := &MessageService{
		db:        db,
		messages:  repository.NewMessageRepository(db),
		talkList:  repository.NewTalkListRepository(db),
		members:   members,
		ids:       ids,
		publisher: publisher,
		previews:  previews,
		unread:    unread,
		metrics:   m,
		logger:    slog.Default(),
		now:       now,
		effects:   make([]chan sideEffect, sideEffectWorkers),
	}
	for i := range s.effects {
		s.effects[i] = make(chan sideEffect, sideEffectQueueSize)
		s.workers.Add(1)
		go s.effectWorker(s.effects[i])
	}
	return s
}

// Create 写入一条消息。
// 失败时整个事务回滚并返回 ErrWriteFailure；提交后的通知与缓存失败只记录日志。
func (s *MessageService) Create(ctx context.Context, env model.Envelope, ext model.Extension) (*model.Message, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if err := model.CheckExtension(env.Kind, ext); err != nil {
		return nil, err
	}

	var answerNum int
	if _, ok := ext.(model.VoteBody); ok {
		if env.TalkType != model.TalkTypeGroup {
			return nil, apperrors.ErrUnsupportedTalkType.Wrap(fmt.Errorf("vote requires group talk"))
		}
		n, err := s.members.ActiveMemberCount(ctx, env.ReceiverId)
		if err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		answerNum = n
	}

	at := s.now()
	msg := &model.Message{
		Id:         s.ids.Generate().Int64(),
		UserId:     env.SenderId,
		ReceiverId: env.ReceiverId,
		TalkType:   env.TalkType,
		Kind:       env.Kind,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if text, ok := ext.(model.TextBody); ok {
		msg.Content = text.Content
	}

	err := repository.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		messages := s.messages.WithTx(tx)
		if err := messages.Create(ctx, msg); err != nil {
			return err
		}
		if err := s.createExtension(ctx, messages, msg, ext, answerNum); err != nil {
			return err
		}
		return s.touchTalkList(ctx, s.talkList.WithTx(tx), msg)
	})
	if err != nil {
		s.logger.Error("Failed to create message",
			"senderId", env.SenderId,
			"receiverId", env.ReceiverId,
			"kind", env.Kind.String(),
			"error", err)
		return nil, apperrors.ErrWriteFailure.Wrap(err)
	}

	s.metrics.MessagesCreated.WithLabelValues(msg.Kind.String()).Inc()
	s.logger.Debug("Message created",
		"recordId", msg.Id,
		"senderId", msg.UserId,
		"kind", msg.Kind.String())

	s.afterCommit(msg, ext.Preview())
	return msg, nil
}

// CreateText 文本消息
func (s *MessageService) CreateText(ctx context.Context, senderId, receiverId int64, talkType model.TalkType, content string) (*model.Message, error) {
	return s.Create(ctx, envelope(senderId, receiverId, talkType, model.MessageKindText), model.TextBody{Content: content})
}

// CreateCode 代码块消息
func (s *MessageService) CreateCode(ctx context.Context, senderId, receiverId int64, talkType model.TalkType, body model.CodeBody) (*model.Message, error) {
	return s.Create(ctx, envelope(senderId, receiverId, talkType, model.MessageKindCode), body)
}

// CreateFile 文件消息
func (s *MessageService) CreateFile(ctx context.Context, senderId, receiverId int64, talkType model.TalkType, body model.FileBody) (*model.Message, error) {
	return s.Create(ctx, envelope(senderId, receiverId, talkType, model.MessageKindFile), body)
}

// CreateVote 群投票消息
func (s *MessageService) CreateVote(ctx context.Context, senderId, groupId int64, body model.VoteBody) (*model.Message, error) {
	return s.Create(ctx, envelope(senderId, groupId, model.TalkTypeGroup, model.MessageKindVote), body)
}

// Wait 等待所有提交后副作用完成
func (s *MessageService) Wait() {
	s.pending.Wait()
}

// Close 执行完队列中的副作用后停止 worker，之后不可再写入消息
func (s *MessageService) Close() {
	s.closeOnce.Do(func() {
		for _, ch := range s.effects {
			close(ch)
		}
		s.workers.Wait()
	})
}

func (s *MessageService) createExtension(ctx context.Context, messages *repository.MessageRepository, msg *model.Message, ext model.Extension, answerNum int) error {
	switch body := ext.(type) {
	case model.TextBody:
		return nil
	case model.CodeBody:
		return messages.CreateCode(ctx, &model.CodeRecord{
			RecordId:  msg.Id,
			UserId:    msg.UserId,
			Lang:      body.Lang,
			Code:      body.Code,
			CreatedAt: msg.CreatedAt,
		})
	case model.FileBody:
		return messages.CreateFile(ctx, &model.FileRecord{
			RecordId:     msg.Id,
			UserId:       msg.UserId,
			Source:       body.Source,
			MediaType:    body.MediaType(),
			Suffix:       model.NormalizeSuffix(body.Suffix),
			Size:         body.Size,
			Path:         body.Path,
			OriginalName: body.OriginalName,
			CreatedAt:    msg.CreatedAt,
		})
	case model.VoteBody:
		return messages.CreateVote(ctx, &model.Vote{
			RecordId:     msg.Id,
			UserId:       msg.UserId,
			Title:        body.Title,
			AnswerMode:   body.AnswerMode,
			AnswerOption: model.AssignOptionLetters(body.Options),
			AnswerNum:    answerNum,
			Status:       model.VoteStatusOpen,
			CreatedAt:    msg.CreatedAt,
			UpdatedAt:    msg.CreatedAt,
		})
	default:
		return fmt.Errorf("unsupported extension %T", ext)
	}
}

// touchTalkList 发送方、私聊接收方、群内所有成员的会话被刷新
func (s *MessageService) touchTalkList(ctx context.Context, talkList *repository.TalkListRepository, msg *model.Message) error {
	if err := talkList.Touch(ctx, msg.UserId, msg.TalkType, msg.ReceiverId, msg.CreatedAt); err != nil {
		return err
	}
	if msg.TalkType == model.TalkTypePrivate {
		return talkList.Touch(ctx, msg.ReceiverId, msg.TalkType, msg.UserId, msg.CreatedAt)
	}
	return talkList.TouchGroupMembers(ctx, msg.ReceiverId, msg.CreatedAt)
}

// afterCommit 按会话入队，队列满时阻塞调用方
func (s *MessageService) afterCommit(msg *model.Message, preview string) {
	conversation := cache.ConversationKey(msg.TalkType, msg.UserId, msg.ReceiverId)
	shard := xxhash.Sum64String(conversation) % uint64(len(s.effects))

	s.pending.Add(1)
	s.effects[shard] <- sideEffect{msg: msg, preview: preview}
}

func (s *MessageService) effectWorker(queue <-chan sideEffect) {
	defer s.workers.Done()
	for effect := range queue {
		s.applySideEffect(effect.msg, effect.preview)
		s.pending.Done()
	}
}

// applySideEffect 通知与缓存更新，失败不影响已提交的消息
func (s *MessageService) applySideEffect(msg *model.Message, preview string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	event := proto.NewTalkEvent(msg.UserId, msg.ReceiverId, int(msg.TalkType), msg.Id)
	if err := s.publisher.PublishTalkEvent(ctx, event); err != nil {
		s.sideEffectFailed(metrics.EffectPublish, msg, err)
	}

	conversation := cache.ConversationKey(msg.TalkType, msg.UserId, msg.ReceiverId)
	last := model.LastMessage{
		Text:      preview,
		CreatedAt: msg.CreatedAt.Format(model.TimeLayout),
	}
	if err := s.previews.Save(ctx, conversation, last); err != nil {
		s.sideEffectFailed(metrics.EffectLastMessage, msg, err)
	}

	if msg.TalkType == model.TalkTypePrivate {
		if _, err := s.unread.Increment(ctx, msg.ReceiverId, msg.UserId); err != nil {
			s.sideEffectFailed(metrics.EffectUnread, msg, err)
		}
	}
}

func (s *MessageService) sideEffectFailed(effect string, msg *model.Message, err error) {
	s.metrics.SideEffectFailures.WithLabelValues(effect).Inc()
	s.logger.Warn("Post-commit side effect failed",
		"effect", effect,
		"recordId", msg.Id,
		"error", err)
}

func envelope(senderId, receiverId int64, talkType model.TalkType, kind model.MessageKind) model.Envelope {
	return model.Envelope{
		SenderId:   senderId,
		ReceiverId: receiverId,
		TalkType:   talkType,
		Kind:       kind,
	}
}
