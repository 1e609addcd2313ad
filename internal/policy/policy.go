// Package policy 访问策略：每个写操作在进入事务前先经过这里的角色/归属校验
package policy

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/thtun0709/beswd/internal/model"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

var (
	ErrNotAdmin      = apperr.New(apperr.KindForbidden, 10031, "admin_required", "仅管理员可执行此操作")
	ErrNotLecturer   = apperr.New(apperr.KindForbidden, 10032, "lecturer_required", "仅讲师可执行此操作")
	ErrNotStudent    = apperr.New(apperr.KindForbidden, 10033, "student_required", "仅学生可执行此操作")
	ErrNotTeamLeader = apperr.New(apperr.KindForbidden, 10034, "not_team_leader", "只有组长可以执行此操作")
	ErrNotOwner      = apperr.New(apperr.KindForbidden, 10035, "not_owner", "只有作者或管理员可以执行此操作")
	ErrTeamNotFound  = apperr.New(apperr.KindNotFound, 20004, "team_not_found", "小组不存在")
)

// Principal 已认证的调用方身份
type Principal struct {
	ID   string
	Role string
}

// IsZero 未携带身份
func (p Principal) IsZero() bool { return p.ID == "" || p.Role == "" }

func (p Principal) IsAdmin() bool    { return p.Role == model.RoleAdmin }
func (p Principal) IsLecturer() bool { return p.Role == model.RoleLecturer }

// IsStudent 管理员账号同样存放在 students 表中，但不参与组队
func (p Principal) IsStudent() bool { return p.Role == model.RoleStudent }

// TeamReader 读取小组组长指针
type TeamReader interface {
	GetByID(ctx context.Context, id string) (*model.Team, error)
}

// Guard 能力判定
type Guard struct {
	teams TeamReader
}

// NewGuard 创建 Guard
func NewGuard(teams TeamReader) *Guard {
	return &Guard{teams: teams}
}

// RequireAuthenticated 身份缺失返回 Unauthorized
func RequireAuthenticated(p Principal) error {
	if p.IsZero() {
		return apperr.ErrUnauthorized
	}
	return nil
}

// RequireAdmin 仅管理员
func RequireAdmin(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return ErrNotAdmin
	}
	return nil
}

// RequireLecturer 仅讲师
func RequireLecturer(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if !p.IsLecturer() {
		return ErrNotLecturer
	}
	return nil
}

// RequireStudent 仅学生
func RequireStudent(p Principal) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if !p.IsStudent() {
		return ErrNotStudent
	}
	return nil
}

// RequireAuthorOrAdmin 内容归属校验
// 学生与讲师分表存储、ID 可能重合，作者身份按 (ID, 账号表) 判定
func RequireAuthorOrAdmin(p Principal, authorID, authorRole string) error {
	if err := RequireAuthenticated(p); err != nil {
		return err
	}
	if p.IsAdmin() {
		return nil
	}
	if p.ID == authorID && sameAccountTable(p.Role, authorRole) {
		return nil
	}
	return ErrNotOwner
}

// sameAccountTable admin 与 student 同存于 students 表
func sameAccountTable(a, b string) bool {
	return (a == model.RoleLecturer) == (b == model.RoleLecturer)
}

// IsTeamLeader 以 teams.leader_id 为唯一依据
func (g *Guard) IsTeamLeader(ctx context.Context, p Principal, teamID string) (bool, error) {
	if p.IsZero() || !p.IsStudent() {
		return false, nil
	}
	team, err := g.teams.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrTeamNotFound
		}
		return false, apperr.Classify(err)
	}
	return team.IsLeader(p.ID), nil
}

// RequireTeamLeader 非组长返回 Forbidden
// 事务内仍需在行锁下复核，这里只做前置短路
func (g *Guard) RequireTeamLeader(ctx context.Context, p Principal, teamID string) error {
	if err := RequireStudent(p); err != nil {
		return err
	}
	ok, err := g.IsTeamLeader(ctx, p, teamID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotTeamLeader
	}
	return nil
}
