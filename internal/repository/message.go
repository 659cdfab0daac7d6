package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sudooom.im.talk/internal/model"
)

// MessageRepository 消息及扩展记录仓库
type MessageRepository struct {
	db Querier
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db Querier) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *MessageRepository) WithTx(tx pgx.Tx) *MessageRepository {
	return &MessageRepository{db: tx}
}

// Create 写入消息主记录，ID 由调用方预先分配
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO talk_records (id, user_id, receiver_id, talk_type, msg_type, content, is_revoke, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		msg.Id,
		msg.UserId,
		msg.ReceiverId,
		int(msg.TalkType),
		int(msg.Kind),
		msg.Content,
		msg.IsRevoke,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert talk_records: %w", err)
	}
	return nil
}

// CreateCode 写入代码块扩展
func (r *MessageRepository) CreateCode(ctx context.Context, code *model.CodeRecord) error {
	query := `
		INSERT INTO talk_records_code (record_id, user_id, code_lang, code, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		code.RecordId,
		code.UserId,
		code.Lang,
		code.Code,
		code.CreatedAt,
	).Scan(&code.Id)
	if err != nil {
		return fmt.Errorf("insert talk_records_code: %w", err)
	}
	return nil
}

// CreateFile 写入文件扩展
func (r *MessageRepository) CreateFile(ctx context.Context, file *model.FileRecord) error {
	query := `
		INSERT INTO talk_records_file (record_id, user_id, file_source, file_type, file_suffix, file_size, save_dir, original_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		file.RecordId,
		file.UserId,
		file.Source,
		int(file.MediaType),
		file.Suffix,
		file.Size,
		file.Path,
		file.OriginalName,
		file.CreatedAt,
	).Scan(&file.Id)
	if err != nil {
		return fmt.Errorf("insert talk_records_file: %w", err)
	}
	return nil
}

// CreateVote 写入投票扩展
func (r *MessageRepository) CreateVote(ctx context.Context, vote *model.Vote) error {
	options, err := json.Marshal(vote.AnswerOption)
	if err != nil {
		return fmt.Errorf("marshal answer_option: %w", err)
	}

	query := `
		INSERT INTO talk_records_vote (record_id, user_id, title, answer_mode, answer_option, answer_num, answered_num, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
		RETURNING id
	`
	err = r.db.QueryRow(ctx, query,
		vote.RecordId,
		vote.UserId,
		vote.Title,
		int(vote.AnswerMode),
		options,
		vote.AnswerNum,
		int(vote.Status),
		vote.CreatedAt,
		vote.UpdatedAt,
	).Scan(&vote.Id)
	if err != nil {
		return fmt.Errorf("insert talk_records_vote: %w", err)
	}
	return nil
}

// FindByID 根据 ID 查找消息
func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	query := `
		SELECT id, user_id, receiver_id, talk_type, msg_type, content, is_revoke, created_at, updated_at
		FROM talk_records WHERE id = $1
	`

	var (
		msg      model.Message
		talkType int
		kind     int
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&msg.Id,
		&msg.UserId,
		&msg.ReceiverId,
		&talkType,
		&kind,
		&msg.Content,
		&msg.IsRevoke,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	msg.TalkType = model.TalkType(talkType)
	msg.Kind = model.MessageKind(kind)
	return &msg, nil
}

// FindFile 查找文件扩展
func (r *MessageRepository) FindFile(ctx context.Context, recordId int64) (*model.FileRecord, error) {
	query := `
		SELECT id, record_id, user_id, file_source, file_type, file_suffix, file_size, save_dir, original_name, created_at
		FROM talk_records_file WHERE record_id = $1
	`

	var (
		file      model.FileRecord
		mediaType int
	)
	err := r.db.QueryRow(ctx, query, recordId).Scan(
		&file.Id,
		&file.RecordId,
		&file.UserId,
		&file.Source,
		&mediaType,
		&file.Suffix,
		&file.Size,
		&file.Path,
		&file.OriginalName,
		&file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	file.MediaType = model.MediaType(mediaType)
	return &file, nil
}

// FindCode 查找代码块扩展
func (r *MessageRepository) FindCode(ctx context.Context, recordId int64) (*model.CodeRecord, error) {
	query := `
		SELECT id, record_id, user_id, code_lang, code, created_at
		FROM talk_records_code WHERE record_id = $1
	`

	var code model.CodeRecord
	err := r.db.QueryRow(ctx, query, recordId).Scan(
		&code.Id,
		&code.RecordId,
		&code.UserId,
		&code.Lang,
		&code.Code,
		&code.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &code, nil
}
