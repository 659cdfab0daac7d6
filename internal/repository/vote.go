package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sudooom.im.talk/internal/model"
)

// VoteRepository 投票仓库
type VoteRepository struct {
	db Querier
}

// NewVoteRepository 创建投票仓库
func NewVoteRepository(db Querier) *VoteRepository {
	return &VoteRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *VoteRepository) WithTx(tx pgx.Tx) *VoteRepository {
	return &VoteRepository{db: tx}
}

// FindRecord 查询消息及其投票扩展。
// 消息不存在返回 ErrMessageNotFound；消息存在但无投票扩展时 Vote.Id 为 0。
func (r *VoteRepository) FindRecord(ctx context.Context, recordId int64) (*model.VoteRecord, error) {
	query := `
		SELECT r.id, r.msg_type, r.receiver_id, r.talk_type,
		       v.id, v.user_id, v.title, v.answer_mode, v.answer_option,
		       v.answer_num, v.answered_num, v.status, v.created_at, v.updated_at
		FROM talk_records r
		LEFT JOIN talk_records_vote v ON v.record_id = r.id
		WHERE r.id = $1
	`

	var (
		rec         model.VoteRecord
		kind        int
		talkType    int
		voteId      *int64
		userId      *int64
		title       *string
		answerMode  *int
		options     []byte
		answerNum   *int
		answeredNum *int
		status      *int
		createdAt   *time.Time
		updatedAt   *time.Time
	)
	err := r.db.QueryRow(ctx, query, recordId).Scan(
		&rec.RecordId,
		&kind,
		&rec.ReceiverId,
		&talkType,
		&voteId,
		&userId,
		&title,
		&answerMode,
		&options,
		&answerNum,
		&answeredNum,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	rec.MessageKind = model.MessageKind(kind)
	rec.TalkType = model.TalkType(talkType)
	if voteId == nil {
		return &rec, nil
	}

	rec.Id = *voteId
	rec.UserId = deref(userId)
	rec.Title = deref(title)
	rec.AnswerMode = model.AnswerMode(deref(answerMode))
	rec.AnswerNum = deref(answerNum)
	rec.AnsweredNum = deref(answeredNum)
	rec.Status = model.VoteStatus(deref(status))
	rec.CreatedAt = deref(createdAt)
	rec.UpdatedAt = deref(updatedAt)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &rec.AnswerOption); err != nil {
			return nil, fmt.Errorf("decode answer_option: %w", err)
		}
	}
	return &rec, nil
}

// IncrementAnswered 已答人数 +1，并在同一条语句里由新值推导状态。
// 仅对未关闭的投票生效；已关闭返回 ErrVoteNotOpen。
func (r *VoteRepository) IncrementAnswered(ctx context.Context, voteId int64, at time.Time) (answered, expected int, status model.VoteStatus, err error) {
	query := `
		UPDATE talk_records_vote
		SET answered_num = answered_num + 1,
		    status = CASE WHEN answered_num + 1 >= answer_num THEN 1 ELSE 0 END,
		    updated_at = $2
		WHERE id = $1 AND status = 0
		RETURNING answered_num, answer_num, status
	`

	var st int
	err = r.db.QueryRow(ctx, query, voteId, at).Scan(&answered, &expected, &st)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, 0, ErrVoteNotOpen
		}
		return 0, 0, 0, fmt.Errorf("increment answered_num: %w", err)
	}
	return answered, expected, model.VoteStatus(st), nil
}

// CreateAnswers 写入作答明细，每个选项一行
func (r *VoteRepository) CreateAnswers(ctx context.Context, voteId, userId int64, options []string, at time.Time) error {
	query := `
		INSERT INTO talk_records_vote_answer (vote_id, user_id, option, created_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, opt := range options {
		if _, err := r.db.Exec(ctx, query, voteId, userId, opt, at); err != nil {
			return fmt.Errorf("insert talk_records_vote_answer: %w", err)
		}
	}
	return nil
}

// CountByOption 按选项统计作答
func (r *VoteRepository) CountByOption(ctx context.Context, voteId int64) (map[string]int, error) {
	query := `
		SELECT option, COUNT(*)
		FROM talk_records_vote_answer
		WHERE vote_id = $1
		GROUP BY option
	`
	rows, err := r.db.Query(ctx, query, voteId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			opt   string
			count int
		)
		if err := rows.Scan(&opt, &count); err != nil {
			return nil, err
		}
		counts[opt] = count
	}
	return counts, rows.Err()
}

// ListAnswers 查询作答明细
func (r *VoteRepository) ListAnswers(ctx context.Context, voteId int64) ([]model.VoteAnswer, error) {
	query := `
		SELECT id, vote_id, user_id, option, created_at
		FROM talk_records_vote_answer
		WHERE vote_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, voteId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.VoteAnswer
	for rows.Next() {
		var a model.VoteAnswer
		if err := rows.Scan(&a.Id, &a.VoteId, &a.UserId, &a.Option, &a.CreatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
