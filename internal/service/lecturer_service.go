package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

var ErrLecturerIDExists = apperr.New(apperr.KindConflict, 20401, "lecturer_id_exists", "讲师编号已存在")

// LecturerService 讲师管理业务接口（管理员）
type LecturerService interface {
	Create(ctx context.Context, p policy.Principal, req *dto.CreateLecturerRequest) (*dto.LecturerResponse, error)
	GetByID(ctx context.Context, p policy.Principal, id string) (*dto.LecturerResponse, error)
	Update(ctx context.Context, p policy.Principal, id string, req *dto.UpdateLecturerRequest) (*dto.LecturerResponse, error)
	// Delete 同时解除其指导关系并删除其收到的申请
	Delete(ctx context.Context, p policy.Principal, id string) error
}

type lecturerService struct {
	repo       *repository.Repository
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewLecturerService 创建 LecturerService 实例
func NewLecturerService(repo *repository.Repository, dispatcher notify.Dispatcher, logger *zap.Logger) LecturerService {
	return &lecturerService{repo: repo, dispatcher: dispatcher, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *lecturerService) Create(ctx context.Context, p policy.Principal, req *dto.CreateLecturerRequest) (*dto.LecturerResponse, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	if _, err := s.repo.Lecturer.GetByID(ctx, req.LecturerID); err == nil {
		return nil, ErrLecturerIDExists
	} else if !isNotFound(err) {
		return nil, storageErr(s.logger, "查询讲师失败", err)
	}
	if _, err := s.repo.Student.GetByID(ctx, req.LecturerID); err == nil {
		return nil, ErrAccountIDTaken
	} else if !isNotFound(err) {
		return nil, storageErr(s.logger, "查询学号失败", err)
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, apperr.ErrInternal
	}

	lecturer := &model.Lecturer{
		LecturerID:   req.LecturerID,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Department:   strings.TrimSpace(req.Department),
	}
	if err := s.repo.Lecturer.Create(ctx, lecturer); err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, storageErr(s.logger, "创建讲师失败", err, zap.String("lecturer_id", req.LecturerID))
	}

	s.logger.Info("讲师已创建", zap.String("lecturer_id", lecturer.LecturerID), zap.String("admin_id", p.ID))
	return lecturerToResponse(lecturer), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *lecturerService) GetByID(ctx context.Context, p policy.Principal, id string) (*dto.LecturerResponse, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	lecturer, err := s.repo.Lecturer.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrLecturerNotFound
		}
		return nil, storageErr(s.logger, "查询讲师失败", err, zap.String("lecturer_id", id))
	}
	return lecturerToResponse(lecturer), nil
}

// ────────────────────── Update ──────────────────────

func (s *lecturerService) Update(ctx context.Context, p policy.Principal, id string, req *dto.UpdateLecturerRequest) (*dto.LecturerResponse, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, err
	}
	lecturer, err := s.repo.Lecturer.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrLecturerNotFound
		}
		return nil, storageErr(s.logger, "查询讲师失败", err, zap.String("lecturer_id", id))
	}

	if req.Name != nil {
		lecturer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Department != nil {
		lecturer.Department = strings.TrimSpace(*req.Department)
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != lecturer.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			lecturer.Email = email
		}
	}

	if err := s.repo.Lecturer.Update(ctx, lecturer); err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, storageErr(s.logger, "更新讲师失败", err, zap.String("lecturer_id", id))
	}
	return lecturerToResponse(lecturer), nil
}

// ────────────────────── Delete ──────────────────────

func (s *lecturerService) Delete(ctx context.Context, p policy.Principal, id string) error {
	if err := policy.RequireAdmin(p); err != nil {
		return err
	}

	var batch notify.Batch
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Lecturer.GetByID(ctx, id); err != nil {
			if isNotFound(err) {
				return ErrLecturerNotFound
			}
			return err
		}

		teams, err := tx.Team.List(ctx)
		if err != nil {
			return err
		}
		for i := range teams {
			if teams[i].MentorID != nil && *teams[i].MentorID == id {
				batch.Broadcast(notify.EventTeamUpdated, map[string]any{
					"team_id":   teams[i].TeamID,
					"mentor_id": nil,
				})
			}
		}

		if err := tx.Team.ClearMentor(ctx, id); err != nil {
			return err
		}
		if err := tx.Mentorship.DeleteByLecturer(ctx, id); err != nil {
			return err
		}
		return tx.Lecturer.Delete(ctx, id)
	})
	if err != nil {
		if isNotFound(err) {
			return ErrLecturerNotFound
		}
		return txErr(s.logger, "删除讲师失败", err, zap.String("lecturer_id", id))
	}

	s.logger.Info("讲师已删除", zap.String("lecturer_id", id), zap.String("admin_id", p.ID))
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return nil
}

// ensureEmailFree 邮箱在学生与讲师之间全局唯一
func (s *lecturerService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	if _, err := s.repo.Student.GetByEmail(ctx, email); err == nil {
		return ErrEmailExists
	} else if !isNotFound(err) {
		return storageErr(s.logger, "查询学生失败", err)
	}
	existing, err := s.repo.Lecturer.GetByEmail(ctx, email)
	if err == nil && existing.LecturerID != selfID {
		return ErrEmailExists
	}
	if err != nil && !isNotFound(err) {
		return storageErr(s.logger, "查询讲师失败", err)
	}
	return nil
}
