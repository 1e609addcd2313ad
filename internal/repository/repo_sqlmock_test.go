package repository_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(fragmentMatcher()),
	)
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gdb, mock, func() { mockDB.Close() }
}

// fragmentMatcher 期望 SQL 以 "%%" 分段，各段须按顺序出现在实际 SQL 中（忽略空白差异）
func fragmentMatcher() sqlmock.QueryMatcher {
	return sqlmock.QueryMatcherFunc(func(expected, actual string) error {
		normalize := func(s string) string {
			return strings.Join(strings.Fields(s), " ")
		}

		act := normalize(actual)
		for _, frag := range strings.Split(expected, "%%") {
			frag = normalize(frag)
			idx := strings.Index(act, frag)
			if idx < 0 {
				return sqlmock.ErrCancelled
			}
			act = act[idx+len(frag):]
		}
		return nil
	})
}

var teamColumns = []string{"team_id", "name", "description", "status", "capacity", "leader_id", "mentor_id", "created_at", "updated_at"}

func TestTeamRepo_GetByIDForUpdate(t *testing.T) {
	gdb, mock, closeFn := newMockDB(t)
	defer closeFn()

	leader := "SE150001"
	mock.ExpectQuery(`SELECT * FROM "teams" WHERE team_id = $1 %% FOR UPDATE`).
		WithArgs("team-1", 1).
		WillReturnRows(sqlmock.NewRows(teamColumns).
			AddRow("team-1", "Alpha", "", model.TeamStatusPending, 4, leader, nil, time.Now(), time.Now()))

	repo := repository.NewTeamRepo(gdb)
	team, err := repo.GetByIDForUpdate(context.Background(), "team-1")
	require.NoError(t, err)
	require.Equal(t, "Alpha", team.Name)
	require.True(t, team.IsLeader(leader))
	require.False(t, team.HasMentor())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepo_GetByIDForUpdate_NotFound(t *testing.T) {
	gdb, mock, closeFn := newMockDB(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT * FROM "students" WHERE student_id = $1 %% FOR UPDATE`).
		WithArgs("SE000000", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repository.NewStudentRepo(gdb).GetByIDForUpdate(context.Background(), "SE000000")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepo_UpsertUsesOnConflict(t *testing.T) {
	gdb, mock, closeFn := newMockDB(t)
	defer closeFn()

	mock.ExpectQuery(`INSERT INTO "team_votes" %% ON CONFLICT ("team_id","voter_id") DO UPDATE SET "candidate_id"="excluded"."candidate_id"`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))

	err := repository.NewVoteRepo(gdb).Upsert(context.Background(), &model.TeamVote{
		TeamID: "team-1", VoterID: "SE150001", CandidateID: "SE150002",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepo_CountForCandidate(t *testing.T) {
	gdb, mock, closeFn := newMockDB(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT count(*) FROM "team_votes" WHERE team_id = $1 AND candidate_id = $2`).
		WithArgs("team-1", "SE150002").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repository.NewVoteRepo(gdb).CountForCandidate(context.Background(), "team-1", "SE150002")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMentorshipRepo_HasPending(t *testing.T) {
	gdb, mock, closeFn := newMockDB(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT count(*) FROM "mentorship_requests" WHERE team_id = $1 AND status = $2`).
		WithArgs("team-1", model.RequestStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repository.NewMentorshipRepo(gdb).HasPending(context.Background(), "team-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_SetsLockTimeoutAndCommits(t *testing.T) {
	gdb, mock, closeFn := newMockDB(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '1500ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count(*) FROM "students" WHERE team_id = $1`).
		WithArgs("team-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectCommit()

	repo := repository.NewRepository(gdb, repository.WithLockTimeout(1500*time.Millisecond))
	var members int64
	err := repo.Transaction(context.Background(), func(tx *repository.Repository) error {
		var err error
		members, err = tx.Student.CountByTeam(context.Background(), "team-1")
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, members)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_LockTimeoutRollsBackAsTransient(t *testing.T) {
	gdb, mock, closeFn := newMockDB(t)
	defer closeFn()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT * FROM "teams" WHERE team_id = $1 %% FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	repo := repository.NewRepository(gdb, repository.WithLockTimeout(time.Second))
	err := repo.Transaction(context.Background(), func(tx *repository.Repository) error {
		_, err := tx.Team.GetByIDForUpdate(context.Background(), "team-1")
		return err
	})
	require.Error(t, err)
	require.Equal(t, apperr.KindTransient, apperr.KindOf(err))

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_InMemorySerializes(t *testing.T) {
	repo := &repository.Repository{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.Transaction(ctx, func(*repository.Repository) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}
