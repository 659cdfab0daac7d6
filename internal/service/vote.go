package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "sudooom.im.talk/internal/errors"
	"sudooom.im.talk/internal/metrics"
	"sudooom.im.talk/internal/model"
	"sudooom.im.talk/internal/repository"
)

// VoteService 投票作答与统计
type VoteService struct {
	db         repository.DB
	votes      *repository.VoteRepository
	members    Membership
	maxRetries int
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewVoteService 创建投票服务，maxRetries 为序列化冲突的重试次数
func NewVoteService(db repository.DB, members Membership, maxRetries int, m *metrics.Metrics) *VoteService {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &VoteService{
		db:         db,
		votes:      repository.NewVoteRepository(db),
		members:    members,
		maxRetries: maxRetries,
		metrics:    m,
		logger:     slog.Default(),
		now:        now,
	}
}

// SubmitAnswer 提交作答。
// 已答人数每人只加 1，达到应答人数的那一次提交负责关闭投票。
func (s *VoteService) SubmitAnswer(ctx context.Context, voterId, recordId int64, selected []string) (*model.VoteResult, error) {
	if voterId <= 0 || recordId <= 0 {
		return nil, apperrors.ErrInvalidParams.Wrap(fmt.Errorf("voter %d record %d", voterId, recordId))
	}

	rec, err := s.findVote(ctx, recordId)
	if err != nil {
		return nil, err
	}

	ok, err := s.members.IsMember(ctx, voterId, rec.ReceiverId, rec.TalkType)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if !ok {
		return nil, apperrors.ErrNotMember
	}

	if rec.Status == model.VoteStatusClosed {
		return nil, apperrors.ErrVoteClosed
	}

	options, err := model.NormalizeAnswer(rec.AnswerMode, selected, rec.AnswerOption)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		result, err := s.submitOnce(ctx, rec, voterId, options)
		if err == nil {
			s.metrics.VoteAnswers.Inc()
			if result.JustClosed {
				s.metrics.VotesClosed.Inc()
				s.logger.Info("Vote closed",
					"recordId", recordId,
					"answeredNum", result.AnsweredNum)
			}
			return result, nil
		}

		switch {
		case errors.Is(err, repository.ErrVoteNotOpen):
			return nil, apperrors.ErrVoteClosed
		case repository.IsSerializationFailure(err) && attempt < s.maxRetries:
			s.metrics.VoteRetries.Inc()
			s.logger.Debug("Retrying vote submission", "recordId", recordId, "attempt", attempt+1)
			continue
		case repository.IsSerializationFailure(err):
			return nil, apperrors.ErrConcurrencyConflict.Wrap(err)
		default:
			s.logger.Error("Failed to submit vote",
				"recordId", recordId,
				"userId", voterId,
				"error", err)
			return nil, apperrors.ErrWriteFailure.Wrap(err)
		}
	}
}

// submitOnce 单条条件 UPDATE 完成计数与状态推导，再写入作答明细
func (s *VoteService) submitOnce(ctx context.Context, rec *model.VoteRecord, voterId int64, options []string) (*model.VoteResult, error) {
	var result *model.VoteResult
	err := repository.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		votes := s.votes.WithTx(tx)
		at := s.now()

		answered, expected, status, err := votes.IncrementAnswered(ctx, rec.Id, at)
		if err != nil {
			return err
		}
		if err := votes.CreateAnswers(ctx, rec.Id, voterId, options, at); err != nil {
			return err
		}

		closed := status == model.VoteStatusClosed
		result = &model.VoteResult{
			RecordId:    rec.RecordId,
			AnswerNum:   expected,
			AnsweredNum: answered,
			Closed:      closed,
			JustClosed:  closed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Statistics 按选项统计作答，未被选择的选项计 0
func (s *VoteService) Statistics(ctx context.Context, recordId int64) (*model.VoteStatistics, error) {
	rec, err := s.findVote(ctx, recordId)
	if err != nil {
		return nil, err
	}

	counts, err := s.votes.CountByOption(ctx, rec.Id)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	options := make(map[string]int, len(rec.AnswerOption))
	for letter := range rec.AnswerOption {
		options[letter] = counts[letter]
	}

	return &model.VoteStatistics{
		RecordId:    recordId,
		AnswerNum:   rec.AnswerNum,
		AnsweredNum: rec.AnsweredNum,
		Status:      rec.Status,
		Options:     options,
	}, nil
}

func (s *VoteService) findVote(ctx context.Context, recordId int64) (*model.VoteRecord, error) {
	rec, err := s.votes.FindRecord(ctx, recordId)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, apperrors.ErrRecordNotFound
		}
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	if rec.MessageKind != model.MessageKindVote || rec.Id == 0 {
		return nil, apperrors.ErrVoteNotFound
	}
	return rec, nil
}
