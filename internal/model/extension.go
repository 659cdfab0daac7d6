package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "sudooom.im.talk/internal/errors"
)

const (
	maxTextBytes    = 65535
	maxCodeBytes    = 65535
	previewMaxRunes = 300

	// 与 migrations 中的 VARCHAR 长度一致
	maxCodeLangRunes     = 32
	maxFileSuffixRunes   = 16
	maxSavePathRunes     = 500
	maxOriginalNameRunes = 255
	maxVoteTitleRunes    = 255
)

// checkString 合法 UTF-8、不含 NUL，且不超过 maxRunes 个字符（0 表示不限）
func checkString(field, s string, maxRunes int) error {
	if !utf8.ValidString(s) {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("%s is not valid utf-8", field))
	}
	if strings.IndexByte(s, 0) >= 0 {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("%s contains NUL", field))
	}
	if maxRunes > 0 {
		if n := utf8.RuneCountInString(s); n > maxRunes {
			return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("%s too long: %d > %d", field, n, maxRunes))
		}
	}
	return nil
}

// Extension 消息扩展内容，每条消息有且只有一种
type Extension interface {
	Kind() MessageKind
	Validate() error
	Preview() string
}

// TextBody 文本消息
type TextBody struct {
	Content string `json:"content"`
}

func (TextBody) Kind() MessageKind { return MessageKindText }

func (b TextBody) Validate() error {
	if strings.TrimSpace(b.Content) == "" {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("empty text"))
	}
	if len(b.Content) > maxTextBytes {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("text too long: %d bytes", len(b.Content)))
	}
	return checkString("content", b.Content, 0)
}

func (b TextBody) Preview() string {
	if utf8.RuneCountInString(b.Content) <= previewMaxRunes {
		return b.Content
	}
	return string([]rune(b.Content)[:previewMaxRunes])
}

// CodeBody 代码块消息
type CodeBody struct {
	Lang string `json:"lang"`
	Code string `json:"code"`
}

func (CodeBody) Kind() MessageKind { return MessageKindCode }

func (b CodeBody) Validate() error {
	if strings.TrimSpace(b.Lang) == "" || strings.TrimSpace(b.Code) == "" {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("code message requires lang and code"))
	}
	if len(b.Code) > maxCodeBytes {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("code too long: %d bytes", len(b.Code)))
	}
	if err := checkString("lang", b.Lang, maxCodeLangRunes); err != nil {
		return err
	}
	return checkString("code", b.Code, 0)
}

func (CodeBody) Preview() string { return "[代码消息]" }

// FileBody 文件消息，MediaType 由后缀推导
type FileBody struct {
	Source       int    `json:"source"`
	Suffix       string `json:"suffix"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
	OriginalName string `json:"original_name"`
}

func (FileBody) Kind() MessageKind { return MessageKindFile }

func (b FileBody) Validate() error {
	if strings.TrimSpace(b.Path) == "" {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("file path required"))
	}
	if NormalizeSuffix(b.Suffix) == "" {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("file suffix required"))
	}
	if b.Size < 0 {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("negative file size"))
	}
	if err := checkString("suffix", NormalizeSuffix(b.Suffix), maxFileSuffixRunes); err != nil {
		return err
	}
	if err := checkString("path", b.Path, maxSavePathRunes); err != nil {
		return err
	}
	return checkString("original_name", b.OriginalName, maxOriginalNameRunes)
}

// MediaType 推导出的媒体类型
func (b FileBody) MediaType() MediaType {
	return MediaTypeOf(b.Suffix)
}

func (b FileBody) Preview() string {
	switch b.MediaType() {
	case MediaTypeImage:
		return "[图片消息]"
	case MediaTypeVideo:
		return "[视频消息]"
	case MediaTypeAudio:
		return "[语音消息]"
	default:
		return "[文件消息]"
	}
}

// VoteBody 投票消息，Options 按提交顺序分配字母 A、B、C…
type VoteBody struct {
	Title      string     `json:"title"`
	AnswerMode AnswerMode `json:"answer_mode"`
	Options    []string   `json:"options"`
}

func (VoteBody) Kind() MessageKind { return MessageKindVote }

func (b VoteBody) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("vote title required"))
	}
	if err := checkString("title", b.Title, maxVoteTitleRunes); err != nil {
		return err
	}
	if !b.AnswerMode.Valid() {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("answer mode %d", b.AnswerMode))
	}
	if len(b.Options) < minVoteOptions || len(b.Options) > maxVoteOptions {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("vote needs %d-%d options, got %d", minVoteOptions, maxVoteOptions, len(b.Options)))
	}
	for i, opt := range b.Options {
		if strings.TrimSpace(opt) == "" {
			return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("option %d is empty", i))
		}
		if err := checkString(fmt.Sprintf("option %d", i), opt, 0); err != nil {
			return err
		}
	}
	return nil
}

func (VoteBody) Preview() string { return "[投票消息]" }

// CheckExtension 校验扩展内容与声明的消息类型一致
func CheckExtension(kind MessageKind, ext Extension) error {
	if ext == nil {
		return apperrors.ErrInvalidParams.Wrap(fmt.Errorf("missing extension for %s", kind))
	}
	if ext.Kind() != kind {
		return apperrors.ErrKindMismatch.Wrap(fmt.Errorf("declared %s, got %s", kind, ext.Kind()))
	}
	return ext.Validate()
}
