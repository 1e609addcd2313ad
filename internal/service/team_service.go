package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thtun0709/beswd/config"
	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/metrics"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

// ── 小组模块业务错误 ──

var (
	ErrAlreadyMember        = apperr.New(apperr.KindConflict, 20001, "already_member", "你已经加入了一个小组")
	ErrTeamFull             = apperr.New(apperr.KindConflict, 20002, "team_full", "小组人数已满")
	ErrNotMember            = apperr.New(apperr.KindConflict, 20003, "not_member", "你不是该小组成员")
	ErrTeamNotFound         = policy.ErrTeamNotFound
	ErrTeamLocked           = apperr.New(apperr.KindConflict, 20005, "team_locked", "小组已被锁定")
	ErrInvalidCapacity      = apperr.New(apperr.KindInvalidInput, 20006, "invalid_capacity", "小组人数上限不合法")
	ErrCapacityBelowMembers = apperr.New(apperr.KindConflict, 20007, "capacity_below_members", "人数上限不能小于当前成员数")
	ErrStudentNotFound      = apperr.New(apperr.KindNotFound, 20008, "student_not_found", "学生不存在")
	ErrTeamNameRequired     = apperr.New(apperr.KindInvalidInput, 20009, "team_name_required", "小组名称不能为空")
	ErrInvalidTeamStatus    = apperr.New(apperr.KindInvalidInput, 20010, "invalid_team_status", "小组状态不合法")
)

// TeamService 成员台账业务接口
type TeamService interface {
	Create(ctx context.Context, p policy.Principal, req *dto.CreateTeamRequest) (*dto.TeamResponse, error)
	Join(ctx context.Context, p policy.Principal, teamID string) (*dto.TeamResponse, error)
	Leave(ctx context.Context, p policy.Principal, teamID string) error
	List(ctx context.Context) ([]dto.TeamResponse, error)
	Get(ctx context.Context, teamID string) (*dto.TeamResponse, error)

	// 以下仅管理员
	Update(ctx context.Context, p policy.Principal, teamID string, req *dto.UpdateTeamRequest) (*dto.TeamResponse, error)
	SetStatus(ctx context.Context, p policy.Principal, teamID, status string) (*dto.TeamResponse, error)
	Delete(ctx context.Context, p policy.Principal, teamID string) error
}

type teamService struct {
	rules      *config.TeamConfig
	repo       *repository.Repository
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewTeamService 创建 TeamService 实例
func NewTeamService(rules *config.TeamConfig, repo *repository.Repository, dispatcher notify.Dispatcher, logger *zap.Logger) TeamService {
	return &teamService{rules: rules, repo: repo, dispatcher: dispatcher, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *teamService) Create(ctx context.Context, p policy.Principal, req *dto.CreateTeamRequest) (resp *dto.TeamResponse, err error) {
	defer func(start time.Time) { metrics.ObserveTeamOp("create", start, err) }(time.Now())

	if err := policy.RequireStudent(p); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = s.rules.DefaultCapacity
	}
	if err := s.checkCapacity(capacity); err != nil {
		return nil, err
	}

	var batch notify.Batch
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		student, err := tx.Student.GetByIDForUpdate(ctx, p.ID)
		if err != nil {
			if isNotFound(err) {
				return ErrStudentNotFound
			}
			return err
		}
		if student.TeamID != nil {
			return ErrAlreadyMember
		}

		team := &model.Team{
			TeamID:      uuid.NewString(),
			Name:        name,
			Description: strings.TrimSpace(req.Description),
			Status:      model.TeamStatusPending,
			Capacity:    capacity,
			LeaderID:    &student.StudentID,
		}
		if err := tx.Team.Create(ctx, team); err != nil {
			return err
		}
		if err := tx.Student.SetTeam(ctx, student.StudentID, &team.TeamID); err != nil {
			return err
		}

		resp, err = buildTeamResponse(ctx, tx, team, true)
		if err != nil {
			return err
		}
		batch.Broadcast(notify.EventTeamCreated, teamEventPayload(resp))
		return nil
	})
	if err != nil {
		return nil, txErr(s.logger, "创建小组失败", err, zap.String("student_id", p.ID))
	}

	s.logger.Info("小组已创建", zap.String("team_id", resp.ID), zap.String("leader_id", p.ID))
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return resp, nil
}

// ────────────────────── Join ──────────────────────

func (s *teamService) Join(ctx context.Context, p policy.Principal, teamID string) (resp *dto.TeamResponse, err error) {
	defer func(start time.Time) { metrics.ObserveTeamOp("join", start, err) }(time.Now())

	if err := policy.RequireStudent(p); err != nil {
		return nil, err
	}

	var batch notify.Batch
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 锁顺序：先小组后学生
		team, err := tx.Team.GetByIDForUpdate(ctx, teamID)
		if err != nil && !isNotFound(err) {
			return err
		}
		student, err := tx.Student.GetByIDForUpdate(ctx, p.ID)
		if err != nil {
			if isNotFound(err) {
				return ErrStudentNotFound
			}
			return err
		}

		if student.TeamID != nil {
			return ErrAlreadyMember
		}
		if team == nil {
			return ErrTeamNotFound
		}
		if team.Status == model.TeamStatusLocked {
			return ErrTeamLocked
		}

		count, err := tx.Student.CountByTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if count >= int64(team.Capacity) {
			return ErrTeamFull
		}

		if err := tx.Student.SetTeam(ctx, student.StudentID, &team.TeamID); err != nil {
			return err
		}
		if count+1 >= int64(team.Capacity) && acceptsJoins(team.Status) {
			team.Status = model.TeamStatusVoting
			if err := tx.Team.Update(ctx, team); err != nil {
				return err
			}
		}

		resp, err = buildTeamResponse(ctx, tx, team, true)
		if err != nil {
			return err
		}
		batch.Broadcast(notify.EventTeamUpdated, teamEventPayload(resp))
		return nil
	})
	if err != nil {
		return nil, txErr(s.logger, "加入小组失败", err, zap.String("team_id", teamID), zap.String("student_id", p.ID))
	}

	s.logger.Info("学生加入小组",
		zap.String("team_id", teamID),
		zap.String("student_id", p.ID),
		zap.String("status", resp.Status),
	)
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return resp, nil
}

// ────────────────────── Leave ──────────────────────

func (s *teamService) Leave(ctx context.Context, p policy.Principal, teamID string) (err error) {
	defer func(start time.Time) { metrics.ObserveTeamOp("leave", start, err) }(time.Now())

	if err := policy.RequireStudent(p); err != nil {
		return err
	}

	var (
		batch     notify.Batch
		deleted   bool
		newLeader string
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		team, err := tx.Team.GetByIDForUpdate(ctx, teamID)
		if err != nil {
			if isNotFound(err) {
				return ErrNotMember
			}
			return err
		}
		student, err := tx.Student.GetByIDForUpdate(ctx, p.ID)
		if err != nil {
			if isNotFound(err) {
				return ErrStudentNotFound
			}
			return err
		}
		if !student.InTeam(teamID) {
			return ErrNotMember
		}

		if err := tx.Student.SetTeam(ctx, student.StudentID, nil); err != nil {
			return err
		}
		// 选票只能指向现任成员
		if err := tx.Vote.DeleteInvolving(ctx, teamID, student.StudentID); err != nil {
			return err
		}

		remaining, err := tx.Student.ListByTeam(ctx, teamID)
		if err != nil {
			return err
		}

		if len(remaining) == 0 {
			if err := deleteTeamCascade(ctx, tx, teamID); err != nil {
				return err
			}
			deleted = true
			batch.Broadcast(notify.EventTeamDeleted, map[string]string{"team_id": teamID})
			return nil
		}

		changed := false
		if team.IsLeader(student.StudentID) {
			// remaining 按学号升序，取第一位
			newLeader = remaining[0].StudentID
			team.LeaderID = &newLeader
			changed = true
		}
		if team.Status == model.TeamStatusVoting && len(remaining) < team.Capacity {
			team.Status = model.TeamStatusOpen
			changed = true
		}
		if changed {
			if err := tx.Team.Update(ctx, team); err != nil {
				return err
			}
		}

		resp, err := buildTeamResponse(ctx, tx, team, false)
		if err != nil {
			return err
		}
		batch.Broadcast(notify.EventTeamUpdated, teamEventPayload(resp))
		if newLeader != "" {
			batch.Principal(studentRecipient(newLeader), notify.EventLeaderChosen, map[string]string{
				"team_id":   teamID,
				"leader_id": newLeader,
				"reason":    "transfer",
			})
		}
		return nil
	})
	if err != nil {
		return txErr(s.logger, "退出小组失败", err, zap.String("team_id", teamID), zap.String("student_id", p.ID))
	}

	switch {
	case deleted:
		s.logger.Info("最后一名成员退出，小组已删除", zap.String("team_id", teamID), zap.String("student_id", p.ID))
	case newLeader != "":
		s.logger.Info("组长退出，组长已移交",
			zap.String("team_id", teamID),
			zap.String("from", p.ID),
			zap.String("to", newLeader),
		)
	default:
		s.logger.Info("学生退出小组", zap.String("team_id", teamID), zap.String("student_id", p.ID))
	}
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return nil
}

// ────────────────────── List / Get ──────────────────────

func (s *teamService) List(ctx context.Context) ([]dto.TeamResponse, error) {
	summaries, err := s.repo.Team.List(ctx)
	if err != nil {
		return nil, storageErr(s.logger, "查询小组列表失败", err)
	}
	result := make([]dto.TeamResponse, 0, len(summaries))
	for i := range summaries {
		result = append(result, teamToResponse(&summaries[i].Team, summaries[i].MemberCount))
	}
	return result, nil
}

func (s *teamService) Get(ctx context.Context, teamID string) (*dto.TeamResponse, error) {
	team, err := s.repo.Team.GetByID(ctx, teamID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrTeamNotFound
		}
		return nil, storageErr(s.logger, "查询小组失败", err, zap.String("team_id", teamID))
	}
	resp, err := buildTeamResponse(ctx, s.repo, team, true)
	if err != nil {
		return nil, storageErr(s.logger, "查询小组成员失败", err, zap.String("team_id", teamID))
	}
	return resp, nil
}

// ────────────────────── Update（管理员） ──────────────────────

func (s *teamService) Update(ctx context.Context, p policy.Principal, teamID string, req *dto.UpdateTeamRequest) (resp *dto.TeamResponse, err error) {
	defer func(start time.Time) { metrics.ObserveTeamOp("update", start, err) }(time.Now())

	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}
	if req.Capacity != nil {
		if err := s.checkCapacity(*req.Capacity); err != nil {
			return nil, err
		}
	}

	var batch notify.Batch
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		team, err := tx.Team.GetByIDForUpdate(ctx, teamID)
		if err != nil {
			if isNotFound(err) {
				return ErrTeamNotFound
			}
			return err
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return ErrTeamNameRequired
			}
			team.Name = name
		}
		if req.Description != nil {
			team.Description = strings.TrimSpace(*req.Description)
		}
		if req.Capacity != nil {
			count, err := tx.Student.CountByTeam(ctx, teamID)
			if err != nil {
				return err
			}
			if int64(*req.Capacity) < count {
				return ErrCapacityBelowMembers
			}
			team.Capacity = *req.Capacity
			switch {
			case count >= int64(team.Capacity) && acceptsJoins(team.Status):
				team.Status = model.TeamStatusVoting
			case count < int64(team.Capacity) && team.Status == model.TeamStatusVoting:
				team.Status = model.TeamStatusOpen
			}
		}

		if err := tx.Team.Update(ctx, team); err != nil {
			return err
		}
		resp, err = buildTeamResponse(ctx, tx, team, true)
		if err != nil {
			return err
		}
		batch.Broadcast(notify.EventTeamUpdated, teamEventPayload(resp))
		return nil
	})
	if err != nil {
		return nil, txErr(s.logger, "更新小组失败", err, zap.String("team_id", teamID))
	}

	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return resp, nil
}

// ────────────────────── SetStatus（管理员锁定/解锁） ──────────────────────

func (s *teamService) SetStatus(ctx context.Context, p policy.Principal, teamID, status string) (resp *dto.TeamResponse, err error) {
	defer func(start time.Time) { metrics.ObserveTeamOp("set_status", start, err) }(time.Now())

	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}
	if !model.IsValidTeamStatus(status) {
		return nil, ErrInvalidTeamStatus
	}

	var batch notify.Batch
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		team, err := tx.Team.GetByIDForUpdate(ctx, teamID)
		if err != nil {
			if isNotFound(err) {
				return ErrTeamNotFound
			}
			return err
		}
		team.Status = status
		if err := tx.Team.Update(ctx, team); err != nil {
			return err
		}
		resp, err = buildTeamResponse(ctx, tx, team, false)
		if err != nil {
			return err
		}
		batch.Broadcast(notify.EventTeamUpdated, teamEventPayload(resp))
		return nil
	})
	if err != nil {
		return nil, txErr(s.logger, "修改小组状态失败", err, zap.String("team_id", teamID))
	}

	s.logger.Info("管理员修改小组状态",
		zap.String("team_id", teamID),
		zap.String("status", status),
		zap.String("admin_id", p.ID),
	)
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return resp, nil
}

// ────────────────────── Delete（管理员） ──────────────────────

func (s *teamService) Delete(ctx context.Context, p policy.Principal, teamID string) (err error) {
	defer func(start time.Time) { metrics.ObserveTeamOp("delete", start, err) }(time.Now())

	if err := policy.RequireAdmin(p); err != nil {
		return err
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Team.GetByIDForUpdate(ctx, teamID); err != nil {
			if isNotFound(err) {
				return ErrTeamNotFound
			}
			return err
		}
		if err := tx.Student.ClearTeam(ctx, teamID); err != nil {
			return err
		}
		return deleteTeamCascade(ctx, tx, teamID)
	})
	if err != nil {
		return txErr(s.logger, "删除小组失败", err, zap.String("team_id", teamID))
	}

	s.logger.Info("管理员删除小组", zap.String("team_id", teamID), zap.String("admin_id", p.ID))
	var batch notify.Batch
	batch.Broadcast(notify.EventTeamDeleted, map[string]string{"team_id": teamID})
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return nil
}

// ── 辅助函数 ──

func (s *teamService) checkCapacity(capacity int) error {
	if capacity < s.rules.MinCapacity || capacity > s.rules.MaxCapacity {
		return ErrInvalidCapacity.WithMessage(
			fmt.Sprintf("小组人数上限需在 %d-%d 之间", s.rules.MinCapacity, s.rules.MaxCapacity))
	}
	return nil
}

// acceptsJoins 满员后可自动进入 voting 的状态
func acceptsJoins(status string) bool {
	return status == model.TeamStatusPending || status == model.TeamStatusOpen
}

// deleteTeamCascade 删除小组及其选票、导师申请；调用方需已清空成员
func deleteTeamCascade(ctx context.Context, tx *repository.Repository, teamID string) error {
	if err := tx.Vote.DeleteByTeam(ctx, teamID); err != nil {
		return err
	}
	if err := tx.Mentorship.DeleteByTeam(ctx, teamID); err != nil {
		return err
	}
	return tx.Team.Delete(ctx, teamID)
}

func teamToResponse(team *model.Team, memberCount int64) dto.TeamResponse {
	return dto.TeamResponse{
		ID:          team.TeamID,
		Name:        team.Name,
		Description: team.Description,
		Status:      team.Status,
		Capacity:    team.Capacity,
		MemberCount: memberCount,
		LeaderID:    team.LeaderID,
		CreatedAt:   team.CreatedAt,
	}
}

// buildTeamResponse 在给定 repo（可为事务）上组装小组快照
func buildTeamResponse(ctx context.Context, repo *repository.Repository, team *model.Team, withMembers bool) (*dto.TeamResponse, error) {
	members, err := repo.Student.ListByTeam(ctx, team.TeamID)
	if err != nil {
		return nil, err
	}
	resp := teamToResponse(team, int64(len(members)))

	if withMembers {
		resp.Members = make([]dto.MemberResponse, 0, len(members))
		for _, m := range members {
			resp.Members = append(resp.Members, dto.MemberResponse{
				StudentID: m.StudentID,
				Name:      m.Name,
				Email:     m.Email,
				Role:      projectedRole(&m, team),
				Major:     m.Major,
				Cohort:    m.Cohort,
			})
		}
	}

	if team.HasMentor() {
		lecturer, err := repo.Lecturer.GetByID(ctx, *team.MentorID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if lecturer != nil {
			resp.Mentor = lecturerToResponse(lecturer)
		}
	}
	return &resp, nil
}

// projectedRole 展示角色由 teams.leader_id 推导
func projectedRole(s *model.Student, team *model.Team) string {
	if s.Role == model.RoleAdmin {
		return model.RoleAdmin
	}
	if team != nil && team.IsLeader(s.StudentID) {
		return model.RoleLeader
	}
	return model.RoleStudent
}

func lecturerToResponse(l *model.Lecturer) *dto.LecturerResponse {
	return &dto.LecturerResponse{
		ID:         l.LecturerID,
		Name:       l.Name,
		Email:      l.Email,
		Department: l.Department,
	}
}

func teamEventPayload(t *dto.TeamResponse) map[string]any {
	return map[string]any{
		"team_id":      t.ID,
		"name":         t.Name,
		"status":       t.Status,
		"member_count": t.MemberCount,
		"capacity":     t.Capacity,
		"leader_id":    t.LeaderID,
	}
}
