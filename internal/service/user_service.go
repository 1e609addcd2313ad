package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
)

// StudentService 学生资料业务接口
type StudentService interface {
	GetByID(ctx context.Context, p policy.Principal, id string) (*dto.UserSummary, error)
	// UpdateProfile 学生只能修改自己的姓名、专业与批次
	UpdateProfile(ctx context.Context, p policy.Principal, req *dto.UpdateProfileRequest) (*dto.UserSummary, error)
	// List 管理员分页查看学生
	List(ctx context.Context, p policy.Principal, req *dto.PaginationRequest) ([]dto.UserSummary, int64, error)
}

type studentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStudentService 创建 StudentService 实例
func NewStudentService(repo *repository.Repository, logger *zap.Logger) StudentService {
	return &studentService{repo: repo, logger: logger}
}

// ────────────────────── GetByID ──────────────────────

func (s *studentService) GetByID(ctx context.Context, p policy.Principal, id string) (*dto.UserSummary, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	student, err := s.repo.Student.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrStudentNotFound
		}
		return nil, storageErr(s.logger, "查询学生失败", err, zap.String("id", id))
	}
	return s.toSummary(ctx, student)
}

// ────────────────────── UpdateProfile ──────────────────────

func (s *studentService) UpdateProfile(ctx context.Context, p policy.Principal, req *dto.UpdateProfileRequest) (*dto.UserSummary, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if p.IsLecturer() {
		return nil, policy.ErrNotStudent
	}

	student, err := s.repo.Student.GetByID(ctx, p.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrStudentNotFound
		}
		return nil, storageErr(s.logger, "查询学生失败", err, zap.String("id", p.ID))
	}

	if req.Name != nil {
		student.Name = strings.TrimSpace(*req.Name)
	}
	if req.Major != nil {
		if !model.IsValidMajor(*req.Major) {
			return nil, ErrInvalidProfile
		}
		student.Major = *req.Major
	}
	if req.Cohort != nil {
		if !model.IsValidCohort(*req.Cohort) {
			return nil, ErrInvalidProfile
		}
		student.Cohort = *req.Cohort
	}

	if err := s.repo.Student.Update(ctx, student); err != nil {
		return nil, storageErr(s.logger, "更新学生资料失败", err, zap.String("id", p.ID))
	}
	return s.toSummary(ctx, student)
}

// ────────────────────── List ──────────────────────

func (s *studentService) List(ctx context.Context, p policy.Principal, req *dto.PaginationRequest) ([]dto.UserSummary, int64, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, 0, err
	}
	students, total, err := s.repo.Student.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		return nil, 0, storageErr(s.logger, "查询学生列表失败", err)
	}

	// 同页学生多数同队，按队缓存组长指针
	teams := make(map[string]*model.Team)
	result := make([]dto.UserSummary, 0, len(students))
	for i := range students {
		st := &students[i]
		var team *model.Team
		if st.TeamID != nil {
			cached, ok := teams[*st.TeamID]
			if !ok {
				cached, err = s.repo.Team.GetByID(ctx, *st.TeamID)
				if err != nil && !isNotFound(err) {
					return nil, 0, storageErr(s.logger, "查询小组失败", err)
				}
				teams[*st.TeamID] = cached
			}
			team = cached
		}
		result = append(result, studentSummary(st, team))
	}
	return result, total, nil
}

// ── 转换 ──

func (s *studentService) toSummary(ctx context.Context, st *model.Student) (*dto.UserSummary, error) {
	var team *model.Team
	if st.TeamID != nil {
		t, err := s.repo.Team.GetByID(ctx, *st.TeamID)
		if err != nil && !isNotFound(err) {
			return nil, storageErr(s.logger, "查询小组失败", err)
		}
		team = t
	}
	out := studentSummary(st, team)
	return &out, nil
}

func studentSummary(st *model.Student, team *model.Team) dto.UserSummary {
	return dto.UserSummary{
		ID:     st.StudentID,
		Name:   st.Name,
		Email:  st.Email,
		Role:   projectedRole(st, team),
		TeamID: st.TeamID,
		Major:  st.Major,
		Cohort: st.Cohort,
	}
}
