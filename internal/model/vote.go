package model

import (
	"fmt"
	"strings"
	"time"

	apperrors "sudooom.im.talk/internal/errors"
)

const (
	minVoteOptions = 2
	maxVoteOptions = 26
)

// AnswerMode 投票作答模式
type AnswerMode int

const (
	AnswerModeSingle   AnswerMode = 1 // 单选
	AnswerModeMultiple AnswerMode = 2 // 多选
)

func (m AnswerMode) Valid() bool {
	return m == AnswerModeSingle || m == AnswerModeMultiple
}

// VoteStatus 投票状态，只能 open -> closed
type VoteStatus int

const (
	VoteStatusOpen   VoteStatus = 0
	VoteStatusClosed VoteStatus = 1
)

// Vote 投票扩展记录（talk_records_vote）
type Vote struct {
	Id           int64             `json:"id"`
	RecordId     int64             `json:"record_id"`
	UserId       int64             `json:"user_id"`
	Title        string            `json:"title"`
	AnswerMode   AnswerMode        `json:"answer_mode"`
	AnswerOption map[string]string `json:"answer_option"`
	AnswerNum    int               `json:"answer_num"`   // 应答人数
	AnsweredNum  int               `json:"answered_num"` // 已答人数
	Status       VoteStatus        `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// VoteRecord 投票及其所属消息，用于作答前校验
type VoteRecord struct {
	Vote
	MessageKind MessageKind
	ReceiverId  int64
	TalkType    TalkType
}

// VoteAnswer 作答明细，一个选项一行
type VoteAnswer struct {
	Id        int64     `json:"id"`
	VoteId    int64     `json:"vote_id"`
	UserId    int64     `json:"user_id"`
	Option    string    `json:"option"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteResult 单次作答后的投票状态
type VoteResult struct {
	RecordId    int64 `json:"record_id"`
	AnswerNum   int   `json:"answer_num"`
	AnsweredNum int   `json:"answered_num"`
	Closed      bool  `json:"closed"`
	JustClosed  bool  `json:"just_closed"` // 本次作答触发了关闭
}

// VoteStatistics 投票统计
type VoteStatistics struct {
	RecordId    int64          `json:"record_id"`
	AnswerNum   int            `json:"answer_num"`
	AnsweredNum int            `json:"answered_num"`
	Status      VoteStatus     `json:"status"`
	Options     map[string]int `json:"options"`
}

// AssignOptionLetters 按顺序为选项分配 A、B、C…
func AssignOptionLetters(options []string) map[string]string {
	letters := make(map[string]string, len(options))
	for i, opt := range options {
		letters[string(rune('A'+i))] = opt
	}
	return letters
}

// NormalizeAnswer 校验并整理一次作答的选项。
// 所有选项都必须存在；单选只保留第一个，多选去重并保持提交顺序。
func NormalizeAnswer(mode AnswerMode, selected []string, options map[string]string) ([]string, error) {
	cleaned := make([]string, 0, len(selected))
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return nil, apperrors.ErrInvalidParams.Wrap(fmt.Errorf("no option selected"))
	}

	for _, s := range cleaned {
		if _, ok := options[s]; !ok {
			return nil, apperrors.ErrInvalidOption.Wrap(fmt.Errorf("option %q", s))
		}
	}

	if mode == AnswerModeSingle {
		return cleaned[:1], nil
	}

	seen := make(map[string]struct{}, len(cleaned))
	out := cleaned[:0]
	for _, s := range cleaned {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
