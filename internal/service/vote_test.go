package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sudooom.im.talk/internal/errors"
	"sudooom.im.talk/internal/metrics"
	"sudooom.im.talk/internal/model"
)

var (
	sqlFindVote      = regexp.QuoteMeta("LEFT JOIN talk_records_vote v ON v.record_id = r.id")
	sqlIncrement     = regexp.QuoteMeta("UPDATE talk_records_vote")
	sqlInsertAnswer  = regexp.QuoteMeta("INSERT INTO talk_records_vote_answer")
	sqlCountByOption = regexp.QuoteMeta("GROUP BY option")
	voteColumns      = []string{
		"id", "msg_type", "receiver_id", "talk_type",
		"id", "user_id", "title", "answer_mode", "answer_option",
		"answer_num", "answered_num", "status", "created_at", "updated_at",
	}
)

func ptr[T any](v T) *T { return &v }

type voteRow struct {
	kind     model.MessageKind
	mode     model.AnswerMode
	expected int
	answered int
	status   model.VoteStatus
	noVote   bool
}

func (r voteRow) rows() *pgxmock.Rows {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	if r.noVote {
		return pgxmock.NewRows(voteColumns).AddRow(
			int64(100), int(r.kind), int64(50), int(model.TalkTypeGroup),
			(*int64)(nil), (*int64)(nil), (*string)(nil), (*int)(nil), []byte(nil),
			(*int)(nil), (*int)(nil), (*int)(nil), (*time.Time)(nil), (*time.Time)(nil),
		)
	}
	return pgxmock.NewRows(voteColumns).AddRow(
		int64(100), int(r.kind), int64(50), int(model.TalkTypeGroup),
		ptr(int64(7)), ptr(int64(1)), ptr("lunch?"), ptr(int(r.mode)), []byte(`{"A":"rice","B":"noodles","C":"soup"}`),
		ptr(r.expected), ptr(r.answered), ptr(int(r.status)), ptr(at), ptr(at),
	)
}

func newVoteFixture(t *testing.T, members *fakeMembership) (pgxmock.PgxPoolIface, *VoteService, *metrics.Metrics) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	m := metrics.New()
	return mock, NewVoteService(mock, members, 2, m), m
}

func voters(ids ...int64) *fakeMembership {
	members := map[int64]bool{}
	for _, id := range ids {
		members[id] = true
	}
	return &fakeMembership{members: members}
}

func TestVoteService_SingleChoiceKeepsFirstOption(t *testing.T) {
	mock, svc, m := newVoteFixture(t, voters(5))

	mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
		WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 3}.rows())
	mock.ExpectBegin()
	mock.ExpectQuery(sqlIncrement).WithArgs(int64(7), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"answered_num", "answer_num", "status"}).AddRow(1, 3, 0))
	mock.ExpectExec(sqlInsertAnswer).WithArgs(int64(7), int64(5), "B", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := svc.SubmitAnswer(context.Background(), 5, 100, []string{"B", "A", "C"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 1, result.AnsweredNum)
	assert.False(t, result.Closed)
	assert.False(t, result.JustClosed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VoteAnswers))
}

func TestVoteService_MultiChoiceSingleIncrement(t *testing.T) {
	mock, svc, m := newVoteFixture(t, voters(5))

	mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
		WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeMultiple, expected: 2, answered: 1}.rows())
	mock.ExpectBegin()
	mock.ExpectQuery(sqlIncrement).WithArgs(int64(7), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"answered_num", "answer_num", "status"}).AddRow(2, 2, 1))
	mock.ExpectExec(sqlInsertAnswer).WithArgs(int64(7), int64(5), "A", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(sqlInsertAnswer).WithArgs(int64(7), int64(5), "C", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	result, err := svc.SubmitAnswer(context.Background(), 5, 100, []string{"A", "C", "A"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, result.Closed)
	assert.True(t, result.JustClosed)
	assert.Equal(t, 2, result.AnsweredNum)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VotesClosed))
}

func TestVoteService_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		voter   int64
		options []string
		check   func(error) bool
	}{
		{
			name: "record missing",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).WillReturnError(pgx.ErrNoRows)
			},
			voter:   5,
			options: []string{"A"},
			check:   func(err error) bool { return apperrors.Is(err, apperrors.ErrRecordNotFound) },
		},
		{
			name: "message is not a vote",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
					WillReturnRows(voteRow{kind: model.MessageKindText, noVote: true}.rows())
			},
			voter:   5,
			options: []string{"A"},
			check:   func(err error) bool { return apperrors.Is(err, apperrors.ErrVoteNotFound) },
		},
		{
			name: "voter not a member",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
					WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 3}.rows())
			},
			voter:   6,
			options: []string{"A"},
			check:   apperrors.IsAuthorization,
		},
		{
			name: "unknown option",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
					WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 3}.rows())
			},
			voter:   5,
			options: []string{"A", "Z"},
			check:   func(err error) bool { return apperrors.Is(err, apperrors.ErrInvalidOption) },
		},
		{
			name: "already closed",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
					WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 1, answered: 1, status: model.VoteStatusClosed}.rows())
			},
			voter:   5,
			options: []string{"A"},
			check:   func(err error) bool { return apperrors.Is(err, apperrors.ErrVoteClosed) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, svc, _ := newVoteFixture(t, voters(5))
			tt.setup(mock)

			_, err := svc.SubmitAnswer(context.Background(), tt.voter, 100, tt.options)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestVoteService_ClosedBetweenReadAndUpdate(t *testing.T) {
	mock, svc, _ := newVoteFixture(t, voters(5))

	mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
		WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 2, answered: 1}.rows())
	mock.ExpectBegin()
	mock.ExpectQuery(sqlIncrement).WithArgs(int64(7), pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.SubmitAnswer(context.Background(), 5, 100, []string{"A"})
	assert.True(t, apperrors.Is(err, apperrors.ErrVoteClosed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteService_AnswerInsertFailureRollsBack(t *testing.T) {
	mock, svc, _ := newVoteFixture(t, voters(5))

	mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
		WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 3}.rows())
	mock.ExpectBegin()
	mock.ExpectQuery(sqlIncrement).WithArgs(int64(7), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"answered_num", "answer_num", "status"}).AddRow(1, 3, 0))
	mock.ExpectExec(sqlInsertAnswer).WithArgs(int64(7), int64(5), "A", pgxmock.AnyArg()).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := svc.SubmitAnswer(context.Background(), 5, 100, []string{"A"})
	assert.True(t, apperrors.Is(err, apperrors.ErrWriteFailure))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteService_RetriesSerializationFailure(t *testing.T) {
	mock, svc, m := newVoteFixture(t, voters(5))
	conflict := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

	mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
		WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 3}.rows())
	mock.ExpectBegin()
	mock.ExpectQuery(sqlIncrement).WithArgs(int64(7), pgxmock.AnyArg()).WillReturnError(conflict)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery(sqlIncrement).WithArgs(int64(7), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"answered_num", "answer_num", "status"}).AddRow(1, 3, 0))
	mock.ExpectExec(sqlInsertAnswer).WithArgs(int64(7), int64(5), "A", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err := svc.SubmitAnswer(context.Background(), 5, 100, []string{"A"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VoteRetries))
}

func TestVoteService_RetriesExhausted(t *testing.T) {
	mock, svc, _ := newVoteFixture(t, voters(5))
	deadlock := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}

	mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
		WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeSingle, expected: 3}.rows())
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(sqlIncrement).WithArgs(int64(7), pgxmock.AnyArg()).WillReturnError(deadlock)
		mock.ExpectRollback()
	}

	_, err := svc.SubmitAnswer(context.Background(), 5, 100, []string{"A"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConcurrencyConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteService_Statistics(t *testing.T) {
	mock, svc, _ := newVoteFixture(t, voters(5))

	mock.ExpectQuery(sqlFindVote).WithArgs(int64(100)).
		WillReturnRows(voteRow{kind: model.MessageKindVote, mode: model.AnswerModeMultiple, expected: 3, answered: 2}.rows())
	mock.ExpectQuery(sqlCountByOption).WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"option", "count"}).AddRow("A", 2).AddRow("C", 1))

	stats, err := svc.Statistics(context.Background(), 100)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2, stats.AnsweredNum)
	assert.Equal(t, 3, stats.AnswerNum)
	assert.Equal(t, map[string]int{"A": 2, "B": 0, "C": 1}, stats.Options)
}
