package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sudooom.im.talk/internal/errors"
)

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name   string
		env    Envelope
		target *apperrors.AppError
	}{
		{"ok private", Envelope{SenderId: 1, ReceiverId: 2, TalkType: TalkTypePrivate, Kind: MessageKindText}, nil},
		{"ok group", Envelope{SenderId: 1, ReceiverId: 9, TalkType: TalkTypeGroup, Kind: MessageKindVote}, nil},
		{"missing sender", Envelope{ReceiverId: 2, TalkType: TalkTypePrivate}, apperrors.ErrInvalidParams},
		{"bad talk type", Envelope{SenderId: 1, ReceiverId: 2, TalkType: 7}, apperrors.ErrUnsupportedTalkType},
		{"self private", Envelope{SenderId: 3, ReceiverId: 3, TalkType: TalkTypePrivate}, apperrors.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.target == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, apperrors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestCheckExtension(t *testing.T) {
	tests := []struct {
		name   string
		kind   MessageKind
		ext    Extension
		target *apperrors.AppError
	}{
		{"text ok", MessageKindText, TextBody{Content: "hi"}, nil},
		{"code ok", MessageKindCode, CodeBody{Lang: "go", Code: "package main"}, nil},
		{"file ok", MessageKindFile, FileBody{Suffix: "png", Path: "/a/b.png", Size: 10}, nil},
		{"vote ok", MessageKindVote, VoteBody{Title: "lunch", AnswerMode: AnswerModeSingle, Options: []string{"rice", "noodles"}}, nil},
		{"nil extension", MessageKindText, nil, apperrors.ErrInvalidParams},
		{"kind mismatch", MessageKindCode, FileBody{Suffix: "png", Path: "/x"}, apperrors.ErrKindMismatch},
		{"empty text", MessageKindText, TextBody{Content: "  "}, apperrors.ErrInvalidParams},
		{"code missing lang", MessageKindCode, CodeBody{Code: "x"}, apperrors.ErrInvalidParams},
		{"file missing suffix", MessageKindFile, FileBody{Path: "/x"}, apperrors.ErrInvalidParams},
		{"vote one option", MessageKindVote, VoteBody{Title: "t", AnswerMode: AnswerModeSingle, Options: []string{"a"}}, apperrors.ErrInvalidParams},
		{"vote bad mode", MessageKindVote, VoteBody{Title: "t", AnswerMode: 9, Options: []string{"a", "b"}}, apperrors.ErrInvalidParams},
		{"vote empty option", MessageKindVote, VoteBody{Title: "t", AnswerMode: AnswerModeMultiple, Options: []string{"a", " "}}, apperrors.ErrInvalidParams},
		{"code lang at limit", MessageKindCode, CodeBody{Lang: strings.Repeat("语", 32), Code: "x"}, nil},
		{"code lang too long", MessageKindCode, CodeBody{Lang: strings.Repeat("g", 40), Code: "x"}, apperrors.ErrInvalidParams},
		{"file suffix too long", MessageKindFile, FileBody{Suffix: strings.Repeat("p", 20), Path: "/x"}, apperrors.ErrInvalidParams},
		{"file path too long", MessageKindFile, FileBody{Suffix: "png", Path: "/" + strings.Repeat("d", 600)}, apperrors.ErrInvalidParams},
		{"file name too long", MessageKindFile, FileBody{Suffix: "png", Path: "/x", OriginalName: strings.Repeat("n", 256)}, apperrors.ErrInvalidParams},
		{"vote title too long", MessageKindVote, VoteBody{Title: strings.Repeat("t", 300), AnswerMode: AnswerModeSingle, Options: []string{"a", "b"}}, apperrors.ErrInvalidParams},
		{"text invalid utf8", MessageKindText, TextBody{Content: "ok\xff\xfe"}, apperrors.ErrInvalidParams},
		{"text with NUL", MessageKindText, TextBody{Content: "a\x00b"}, apperrors.ErrInvalidParams},
		{"code with NUL", MessageKindCode, CodeBody{Lang: "go", Code: "a\x00b"}, apperrors.ErrInvalidParams},
		{"vote option invalid utf8", MessageKindVote, VoteBody{Title: "t", AnswerMode: AnswerModeSingle, Options: []string{"a", "\xff"}}, apperrors.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckExtension(tt.kind, tt.ext)
			if tt.target == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, apperrors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", TextBody{Content: "hello"}.Preview())
	assert.Equal(t, "[代码消息]", CodeBody{}.Preview())
	assert.Equal(t, "[图片消息]", FileBody{Suffix: "PNG"}.Preview())
	assert.Equal(t, "[视频消息]", FileBody{Suffix: ".mp4"}.Preview())
	assert.Equal(t, "[语音消息]", FileBody{Suffix: "amr"}.Preview())
	assert.Equal(t, "[文件消息]", FileBody{Suffix: "zip"}.Preview())
	assert.Equal(t, "[投票消息]", VoteBody{}.Preview())

	long := strings.Repeat("消", previewMaxRunes+20)
	assert.Equal(t, previewMaxRunes, len([]rune(TextBody{Content: long}.Preview())))
}

func TestMediaTypeOf(t *testing.T) {
	assert.Equal(t, MediaTypeImage, MediaTypeOf("png"))
	assert.Equal(t, MediaTypeImage, MediaTypeOf(".JPG"))
	assert.Equal(t, MediaTypeVideo, MediaTypeOf("mov"))
	assert.Equal(t, MediaTypeAudio, MediaTypeOf("mp3"))
	assert.Equal(t, MediaTypeOther, MediaTypeOf("pdf"))
	assert.Equal(t, MediaTypeOther, MediaTypeOf(""))
}

func TestAssignOptionLetters(t *testing.T) {
	letters := AssignOptionLetters([]string{"rice", "noodles", "dumplings"})
	assert.Equal(t, map[string]string{"A": "rice", "B": "noodles", "C": "dumplings"}, letters)
}

func TestNormalizeAnswer(t *testing.T) {
	options := AssignOptionLetters([]string{"x", "y", "z"})

	t.Run("single keeps first submitted", func(t *testing.T) {
		got, err := NormalizeAnswer(AnswerModeSingle, []string{"C", "A", "B"}, options)
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, got)
	})

	t.Run("multiple dedupes in order", func(t *testing.T) {
		got, err := NormalizeAnswer(AnswerModeMultiple, []string{"B", " A", "B", "C"}, options)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A", "C"}, got)
	})

	t.Run("unknown option rejected even in single mode", func(t *testing.T) {
		_, err := NormalizeAnswer(AnswerModeSingle, []string{"A", "Q"}, options)
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidOption))
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := NormalizeAnswer(AnswerModeMultiple, []string{" ", ""}, options)
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidParams))
	})
}
