package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thtun0709/beswd/config"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
	"github.com/thtun0709/beswd/pkg/jwt"
)

// ── 测试辅助 ──

type testEnv struct {
	cfg      *config.Config
	store    *memStore
	repo     *repository.Repository
	recorder *notify.Recorder
	svc      *Service
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			ResetTokenTTL:   10 * time.Minute,
			ResetCodeTTL:    10 * time.Minute,
			MinPasswordLen:  5,
		},
		Team: config.TeamConfig{
			MinCapacity:     2,
			MaxCapacity:     8,
			DefaultCapacity: 4,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	store := newMemStore()
	repo := store.toRepository()
	rec := &notify.Recorder{}
	svc := NewService(cfg, repo, Deps{
		JWT:        jwt.NewManager(&cfg.Auth),
		Dispatcher: rec,
		Mailer:     &captureMailer{},
	}, zap.NewNop())
	return &testEnv{cfg: cfg, store: store, repo: repo, recorder: rec, svc: svc}
}

func studentP(id string) policy.Principal  { return policy.Principal{ID: id, Role: model.RoleStudent} }
func lecturerP(id string) policy.Principal { return policy.Principal{ID: id, Role: model.RoleLecturer} }
func adminP(id string) policy.Principal    { return policy.Principal{ID: id, Role: model.RoleAdmin} }

func (e *testEnv) addStudent(id, name string) *model.Student {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	st := &model.Student{
		StudentID:    id,
		Name:         name,
		Email:        id + "@uni.test",
		PasswordHash: string(hash),
		Role:         model.RoleStudent,
		Major:        "SE",
		Cohort:       "K18",
	}
	if err := e.repo.Student.Create(context.Background(), st); err != nil {
		panic(err)
	}
	return st
}

func (e *testEnv) addLecturer(id, name string) *model.Lecturer {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	l := &model.Lecturer{
		LecturerID:   id,
		Name:         name,
		Email:        id + "@staff.uni.test",
		PasswordHash: string(hash),
		Department:   "软件工程",
	}
	if err := e.repo.Lecturer.Create(context.Background(), l); err != nil {
		panic(err)
	}
	return l
}

func (e *testEnv) student(t *testing.T, id string) *model.Student {
	t.Helper()
	st, err := e.repo.Student.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("查询学生 %s 失败: %v", id, err)
	}
	return st
}

func (e *testEnv) team(t *testing.T, id string) *model.Team {
	t.Helper()
	team, err := e.repo.Team.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("查询小组 %s 失败: %v", id, err)
	}
	return team
}

// formTeam 创建者建队后其余学生依次加入
func (e *testEnv) formTeam(t *testing.T, capacity int, creator string, others ...string) string {
	t.Helper()
	ctx := context.Background()
	resp, err := e.svc.Team.Create(ctx, studentP(creator), teamReq("测试小组-"+creator, capacity))
	if err != nil {
		t.Fatalf("创建小组失败: %v", err)
	}
	for _, id := range others {
		if _, err := e.svc.Team.Join(ctx, studentP(id), resp.ID); err != nil {
			t.Fatalf("学生 %s 加入小组失败: %v", id, err)
		}
	}
	return resp.ID
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("期望 %s 错误，实际为 nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("期望错误分类 %s，实际 %s (%v)", kind, got, err)
	}
}

func assertIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("期望 %v，实际: %v", target, err)
	}
}

// captureMailer 记录发出的邮件
type captureMailer struct {
	to, subject, body string
	count             int
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	m.count++
	return nil
}
