package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sudooom.im.talk/internal/model"
)

// TalkListRepository 会话列表仓库
type TalkListRepository struct {
	db Querier
}

// NewTalkListRepository 创建会话列表仓库
func NewTalkListRepository(db Querier) *TalkListRepository {
	return &TalkListRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *TalkListRepository) WithTx(tx pgx.Tx) *TalkListRepository {
	return &TalkListRepository{db: tx}
}

// Touch 会话有新消息：不存在则创建；存在则恢复已删除并刷新时间，置顶/免打扰保持不变
func (r *TalkListRepository) Touch(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64, at time.Time) error {
	query := `
		INSERT INTO talk_list (user_id, talk_type, receiver_id, is_top, is_disturb, is_delete, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, FALSE, FALSE, $4, $4)
		ON CONFLICT (user_id, talk_type, receiver_id)
		DO UPDATE SET is_delete = FALSE, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, userId, int(talkType), receiverId, at); err != nil {
		return fmt.Errorf("touch talk_list: %w", err)
	}
	return nil
}

// TouchGroupMembers 群消息：为所有未退群成员刷新群会话
func (r *TalkListRepository) TouchGroupMembers(ctx context.Context, groupId int64, at time.Time) error {
	query := `
		INSERT INTO talk_list (user_id, talk_type, receiver_id, is_top, is_disturb, is_delete, created_at, updated_at)
		SELECT m.user_id, $2, m.group_id, FALSE, FALSE, FALSE, $3, $3
		FROM group_members m
		WHERE m.group_id = $1 AND m.is_quit = 0
		ON CONFLICT (user_id, talk_type, receiver_id)
		DO UPDATE SET is_delete = FALSE, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, groupId, int(model.TalkTypeGroup), at); err != nil {
		return fmt.Errorf("touch group talk_list: %w", err)
	}
	return nil
}

// Create 用户主动打开会话：不存在则创建；存在则重置置顶、免打扰和删除标记
func (r *TalkListRepository) Create(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64, at time.Time) (*model.TalkListEntry, error) {
	query := `
		INSERT INTO talk_list (user_id, talk_type, receiver_id, is_top, is_disturb, is_delete, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, FALSE, FALSE, $4, $4)
		ON CONFLICT (user_id, talk_type, receiver_id)
		DO UPDATE SET is_top = FALSE, is_disturb = FALSE, is_delete = FALSE, updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, talk_type, receiver_id, is_top, is_disturb, is_delete, created_at, updated_at
	`
	entry, err := scanEntry(r.db.QueryRow(ctx, query, userId, int(talkType), receiverId, at))
	if err != nil {
		return nil, fmt.Errorf("upsert talk_list: %w", err)
	}
	return entry, nil
}

// ListActive 获取用户未删除的会话，按更新时间倒序
func (r *TalkListRepository) ListActive(ctx context.Context, userId int64) ([]model.TalkListEntry, error) {
	query := `
		SELECT id, user_id, talk_type, receiver_id, is_top, is_disturb, is_delete, created_at, updated_at
		FROM talk_list
		WHERE user_id = $1 AND is_delete = FALSE
		ORDER BY updated_at DESC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.TalkListEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Find 按 (user_id, talk_type, receiver_id) 查找
func (r *TalkListRepository) Find(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64) (*model.TalkListEntry, error) {
	query := `
		SELECT id, user_id, talk_type, receiver_id, is_top, is_disturb, is_delete, created_at, updated_at
		FROM talk_list
		WHERE user_id = $1 AND talk_type = $2 AND receiver_id = $3
	`
	entry, err := scanEntry(r.db.QueryRow(ctx, query, userId, int(talkType), receiverId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTalkNotFound
		}
		return nil, err
	}
	return entry, nil
}

// SetTop 置顶/取消置顶
func (r *TalkListRepository) SetTop(ctx context.Context, userId, listId int64, top bool, at time.Time) (bool, error) {
	query := `UPDATE talk_list SET is_top = $3, updated_at = $4 WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, listId, userId, top, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete 逻辑删除会话
func (r *TalkListRepository) Delete(ctx context.Context, userId, listId int64, at time.Time) (bool, error) {
	query := `UPDATE talk_list SET is_delete = TRUE, updated_at = $3 WHERE id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, listId, userId, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByType 按会话对象逻辑删除
func (r *TalkListRepository) DeleteByType(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64, at time.Time) (bool, error) {
	query := `
		UPDATE talk_list SET is_delete = TRUE, updated_at = $4
		WHERE user_id = $1 AND talk_type = $2 AND receiver_id = $3
	`
	tag, err := r.db.Exec(ctx, query, userId, int(talkType), receiverId, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetDisturb 设置免打扰，记录不存在或状态未变化返回 false
func (r *TalkListRepository) SetDisturb(ctx context.Context, userId int64, talkType model.TalkType, receiverId int64, disturb bool, at time.Time) (bool, error) {
	query := `
		UPDATE talk_list SET is_disturb = $4, updated_at = $5
		WHERE user_id = $1 AND talk_type = $2 AND receiver_id = $3 AND is_disturb <> $4
	`
	tag, err := r.db.Exec(ctx, query, userId, int(talkType), receiverId, disturb, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanEntry(row pgx.Row) (*model.TalkListEntry, error) {
	var (
		entry    model.TalkListEntry
		talkType int
	)
	err := row.Scan(
		&entry.Id,
		&entry.UserId,
		&talkType,
		&entry.ReceiverId,
		&entry.IsTop,
		&entry.IsDisturb,
		&entry.IsDelete,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.TalkType = model.TalkType(talkType)
	return &entry, nil
}
