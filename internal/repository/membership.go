package repository

import (
	"context"
	"fmt"

	"sudooom.im.talk/internal/model"
)

// MembershipRepository 好友/群成员/资料的只读查询
type MembershipRepository struct {
	db Querier
}

// NewMembershipRepository 创建成员关系仓库
func NewMembershipRepository(db Querier) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// ActiveMemberCount 群内未退群成员数
func (r *MembershipRepository) ActiveMemberCount(ctx context.Context, groupId int64) (int, error) {
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND is_quit = 0`

	var count int
	if err := r.db.QueryRow(ctx, query, groupId).Scan(&count); err != nil {
		return 0, fmt.Errorf("count group members: %w", err)
	}
	return count, nil
}

// IsMember 私聊判断好友关系，群聊判断群成员
func (r *MembershipRepository) IsMember(ctx context.Context, userId, targetId int64, talkType model.TalkType) (bool, error) {
	var query string
	switch talkType {
	case model.TalkTypePrivate:
		query = `SELECT EXISTS(SELECT 1 FROM users_friends WHERE user_id = $1 AND friend_id = $2 AND status = 1)`
	case model.TalkTypeGroup:
		query = `SELECT EXISTS(SELECT 1 FROM group_members WHERE user_id = $1 AND group_id = $2 AND is_quit = 0)`
	default:
		return false, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, query, userId, targetId).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// Profiles 一次查询批量获取用户（含 owner 的好友备注）与群的展示信息
func (r *MembershipRepository) Profiles(ctx context.Context, ownerId int64, userIds, groupIds []int64) (map[model.TalkType]map[int64]model.Profile, error) {
	result := map[model.TalkType]map[int64]model.Profile{
		model.TalkTypePrivate: {},
		model.TalkTypeGroup:   {},
	}
	if len(userIds) == 0 && len(groupIds) == 0 {
		return result, nil
	}

	query := `
		SELECT 1 AS talk_type, u.id, u.nickname, u.avatar, COALESCE(f.remark, '')
		FROM users u
		LEFT JOIN users_friends f ON f.user_id = $3 AND f.friend_id = u.id AND f.status = 1
		WHERE u.id = ANY($1)
		UNION ALL
		SELECT 2 AS talk_type, g.id, g.group_name, g.avatar, ''
		FROM groups g
		WHERE g.id = ANY($2)
	`
	rows, err := r.db.Query(ctx, query, userIds, groupIds, ownerId)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			talkType int
			p        model.Profile
		)
		if err := rows.Scan(&talkType, &p.Id, &p.Name, &p.Avatar, &p.Remark); err != nil {
			return nil, err
		}
		result[model.TalkType(talkType)][p.Id] = p
	}
	return result, rows.Err()
}
