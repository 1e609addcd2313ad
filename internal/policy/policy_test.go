package policy

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/thtun0709/beswd/internal/model"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

type stubTeams map[string]*model.Team

func (s stubTeams) GetByID(_ context.Context, id string) (*model.Team, error) {
	if t, ok := s[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func strPtr(s string) *string { return &s }

func TestRequireRoles(t *testing.T) {
	admin := Principal{ID: "AD001", Role: model.RoleAdmin}
	lecturer := Principal{ID: "GV001", Role: model.RoleLecturer}
	student := Principal{ID: "SE150001", Role: model.RoleStudent}

	if err := RequireAdmin(admin); err != nil {
		t.Errorf("管理员应通过: %v", err)
	}
	if err := RequireAdmin(student); !apperr.Is(err, ErrNotAdmin) {
		t.Errorf("学生期望 ErrNotAdmin，实际 %v", err)
	}
	if err := RequireLecturer(lecturer); err != nil {
		t.Errorf("讲师应通过: %v", err)
	}
	if err := RequireLecturer(admin); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("管理员访问讲师接口期望 forbidden，实际 %v", err)
	}
	if err := RequireStudent(lecturer); !apperr.Is(err, ErrNotStudent) {
		t.Errorf("讲师期望 ErrNotStudent，实际 %v", err)
	}
}

func TestRequire_EmptyPrincipalIsUnauthorized(t *testing.T) {
	for _, fn := range []func(Principal) error{RequireAdmin, RequireLecturer, RequireStudent} {
		if err := fn(Principal{}); apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Errorf("空身份期望 unauthorized，实际 %v", err)
		}
	}
}

func TestRequireAuthorOrAdmin(t *testing.T) {
	author := Principal{ID: "SE150001", Role: model.RoleStudent}
	other := Principal{ID: "SE150002", Role: model.RoleStudent}
	admin := Principal{ID: "AD001", Role: model.RoleAdmin}

	if err := RequireAuthorOrAdmin(author, "SE150001", model.RoleStudent); err != nil {
		t.Errorf("作者应通过: %v", err)
	}
	if err := RequireAuthorOrAdmin(admin, "SE150001", model.RoleStudent); err != nil {
		t.Errorf("管理员应通过: %v", err)
	}
	if err := RequireAuthorOrAdmin(other, "SE150001", model.RoleStudent); !apperr.Is(err, ErrNotOwner) {
		t.Errorf("非作者期望 ErrNotOwner，实际 %v", err)
	}
}

func TestRequireAuthorOrAdmin_SameIDOtherTable(t *testing.T) {
	lecturer := Principal{ID: "S001", Role: model.RoleLecturer}
	student := Principal{ID: "S001", Role: model.RoleStudent}

	if err := RequireAuthorOrAdmin(lecturer, "S001", model.RoleStudent); !apperr.Is(err, ErrNotOwner) {
		t.Errorf("同 ID 讲师不得操作学生内容，实际 %v", err)
	}
	if err := RequireAuthorOrAdmin(student, "S001", model.RoleLecturer); !apperr.Is(err, ErrNotOwner) {
		t.Errorf("同 ID 学生不得操作讲师内容，实际 %v", err)
	}
	if err := RequireAuthorOrAdmin(lecturer, "S001", model.RoleLecturer); err != nil {
		t.Errorf("讲师应能操作自己的内容: %v", err)
	}
	// 降级前以管理员身份发布的内容仍归本人
	if err := RequireAuthorOrAdmin(student, "S001", model.RoleAdmin); err != nil {
		t.Errorf("同表账号应通过: %v", err)
	}
}

func TestGuard_RequireTeamLeader(t *testing.T) {
	g := NewGuard(stubTeams{
		"team-1": {TeamID: "team-1", LeaderID: strPtr("SE150001")},
		"team-2": {TeamID: "team-2"},
	})
	ctx := context.Background()

	leader := Principal{ID: "SE150001", Role: model.RoleStudent}
	member := Principal{ID: "SE150002", Role: model.RoleStudent}

	if err := g.RequireTeamLeader(ctx, leader, "team-1"); err != nil {
		t.Errorf("组长应通过: %v", err)
	}
	if err := g.RequireTeamLeader(ctx, member, "team-1"); !apperr.Is(err, ErrNotTeamLeader) {
		t.Errorf("普通成员期望 ErrNotTeamLeader，实际 %v", err)
	}
	if err := g.RequireTeamLeader(ctx, leader, "team-2"); !apperr.Is(err, ErrNotTeamLeader) {
		t.Errorf("无组长小组期望 ErrNotTeamLeader，实际 %v", err)
	}
	if err := g.RequireTeamLeader(ctx, leader, "missing"); !apperr.Is(err, ErrTeamNotFound) {
		t.Errorf("小组不存在期望 ErrTeamNotFound，实际 %v", err)
	}
	if err := g.RequireTeamLeader(ctx, Principal{ID: "GV001", Role: model.RoleLecturer}, "team-1"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("讲师期望 forbidden，实际 %v", err)
	}
}
