package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/metrics"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

var (
	ErrAlreadyMentored  = apperr.New(apperr.KindConflict, 20201, "already_mentored", "小组已有导师")
	ErrRequestPending   = apperr.New(apperr.KindConflict, 20202, "request_pending", "小组已有待处理的导师申请")
	ErrLecturerNotFound = apperr.New(apperr.KindNotFound, 20203, "lecturer_not_found", "讲师不存在")
	ErrInvalidAction    = apperr.New(apperr.KindInvalidInput, 20204, "invalid_action", "操作只能是 accept 或 reject")
	ErrRequestNotFound  = apperr.New(apperr.KindNotFound, 20205, "request_not_found", "申请不存在或无权处理")
	ErrRequestsHidden   = apperr.New(apperr.KindForbidden, 20206, "requests_forbidden", "只能查看自己小组的导师申请")
)

// 讲师处理动作
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// MentorshipService 导师申请业务接口
type MentorshipService interface {
	Send(ctx context.Context, p policy.Principal, teamID, lecturerID string) (*dto.MentorshipRequestResponse, error)
	Respond(ctx context.Context, p policy.Principal, requestID, action string) (*dto.MentorshipRequestResponse, error)
	// ListForLecturer 讲师收到的申请，按创建时间倒序
	ListForLecturer(ctx context.Context, p policy.Principal) ([]dto.MentorshipRequestResponse, error)
	ListForTeam(ctx context.Context, p policy.Principal, teamID string) ([]dto.MentorshipRequestResponse, error)
	ListLecturers(ctx context.Context, p policy.Principal) ([]dto.LecturerResponse, error)
}

type mentorshipService struct {
	repo       *repository.Repository
	guard      *policy.Guard
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewMentorshipService 创建 MentorshipService 实例
func NewMentorshipService(repo *repository.Repository, guard *policy.Guard, dispatcher notify.Dispatcher, logger *zap.Logger) MentorshipService {
	return &mentorshipService{repo: repo, guard: guard, dispatcher: dispatcher, logger: logger}
}

// ────────────────────── Send ──────────────────────

func (s *mentorshipService) Send(ctx context.Context, p policy.Principal, teamID, lecturerID string) (resp *dto.MentorshipRequestResponse, err error) {
	defer func(start time.Time) {
		metrics.ObserveTeamOp("mentorship_send", start, err)
		if err == nil {
			metrics.ObserveMentorship(model.RequestStatusPending)
		}
	}(time.Now())

	if err := s.guard.RequireTeamLeader(ctx, p, teamID); err != nil {
		return nil, err
	}

	var (
		batch    notify.Batch
		lecturer *model.Lecturer
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		team, err := tx.Team.GetByIDForUpdate(ctx, teamID)
		if err != nil {
			if isNotFound(err) {
				return ErrTeamNotFound
			}
			return err
		}
		// 行锁下复核，组长可能在前置检查后已移交
		if !team.IsLeader(p.ID) {
			return policy.ErrNotTeamLeader
		}
		if team.Status == model.TeamStatusLocked {
			return ErrTeamLocked
		}
		if team.HasMentor() {
			return s.alreadyMentored(ctx, tx, *team.MentorID)
		}

		lecturer, err = tx.Lecturer.GetByID(ctx, lecturerID)
		if err != nil {
			if isNotFound(err) {
				return ErrLecturerNotFound
			}
			return err
		}

		pending, err := tx.Mentorship.HasPending(ctx, teamID)
		if err != nil {
			return err
		}
		if pending {
			return ErrRequestPending
		}

		req := &model.MentorshipRequest{
			RequestID:  uuid.NewString(),
			TeamID:     teamID,
			LecturerID: lecturerID,
			Status:     model.RequestStatusPending,
		}
		if err := tx.Mentorship.Create(ctx, req); err != nil {
			// 部分唯一索引 uk_mentorship_requests_pending 兜底
			if apperr.IsUniqueViolation(err) {
				return ErrRequestPending
			}
			return err
		}

		resp = requestToResponse(req)
		resp.TeamName = team.Name
		resp.LeaderID = p.ID
		resp.LecturerName = lecturer.Name

		batch.Principal(lecturerRecipient(lecturerID), notify.EventMentorRequestCreated, map[string]any{
			"request_id": req.RequestID,
			"team_id":    teamID,
			"team_name":  team.Name,
			"leader_id":  p.ID,
		})
		return nil
	})
	if err != nil {
		return nil, txErr(s.logger, "发送导师申请失败", err, zap.String("team_id", teamID), zap.String("lecturer_id", lecturerID))
	}

	s.logger.Info("导师申请已发送",
		zap.String("request_id", resp.ID),
		zap.String("team_id", teamID),
		zap.String("lecturer_id", lecturerID),
	)
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return resp, nil
}

func (s *mentorshipService) alreadyMentored(ctx context.Context, tx *repository.Repository, mentorID string) error {
	mentor, err := tx.Lecturer.GetByID(ctx, mentorID)
	if err != nil {
		if isNotFound(err) {
			return ErrAlreadyMentored
		}
		return err
	}
	return ErrAlreadyMentored.WithMessage(fmt.Sprintf("小组已有导师：%s", mentor.Name))
}

// ────────────────────── Respond ──────────────────────

func (s *mentorshipService) Respond(ctx context.Context, p policy.Principal, requestID, action string) (resp *dto.MentorshipRequestResponse, err error) {
	defer func(start time.Time) { metrics.ObserveTeamOp("mentorship_respond", start, err) }(time.Now())

	if err := policy.RequireLecturer(p); err != nil {
		return nil, err
	}
	var status string
	switch action {
	case ActionAccept:
		status = model.RequestStatusAccepted
	case ActionReject:
		status = model.RequestStatusRejected
	default:
		return nil, ErrInvalidAction
	}

	// 先无锁读出 team_id，以便按 teams → mentorship_requests 顺序加锁
	probe, err := s.repo.Mentorship.GetByID(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, storageErr(s.logger, "查询导师申请失败", err, zap.String("request_id", requestID))
	}
	if probe.LecturerID != p.ID {
		return nil, ErrRequestNotFound
	}

	var batch notify.Batch
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		team, err := tx.Team.GetByIDForUpdate(ctx, probe.TeamID)
		if err != nil {
			if isNotFound(err) {
				return ErrRequestNotFound
			}
			return err
		}
		req, err := tx.Mentorship.GetPendingForUpdate(ctx, requestID, p.ID)
		if err != nil {
			if isNotFound(err) {
				return ErrRequestNotFound
			}
			return err
		}
		lecturer, err := tx.Lecturer.GetByID(ctx, p.ID)
		if err != nil {
			if isNotFound(err) {
				return ErrLecturerNotFound
			}
			return err
		}

		if err := tx.Mentorship.UpdateStatus(ctx, req.RequestID, status); err != nil {
			return err
		}
		req.Status = status
		req.UpdatedAt = time.Now()

		message := fmt.Sprintf("讲师 %s 拒绝了你的导师申请", lecturer.Name)
		if status == model.RequestStatusAccepted {
			team.MentorID = &lecturer.LecturerID
			if err := tx.Team.Update(ctx, team); err != nil {
				return err
			}
			message = fmt.Sprintf("讲师 %s 已接受你的导师申请", lecturer.Name)
		}

		resp = requestToResponse(req)
		resp.TeamName = team.Name
		resp.LecturerName = lecturer.Name
		if team.LeaderID != nil {
			resp.LeaderID = *team.LeaderID
			batch.Principal(studentRecipient(*team.LeaderID), notify.EventMentorResponse, map[string]any{
				"team_id":        team.TeamID,
				"lecturer_id":    lecturer.LecturerID,
				"lecturer_name":  lecturer.Name,
				"lecturer_email": lecturer.Email,
				"status":         status,
				"message":        message,
			})
		}
		return nil
	})
	if err != nil {
		return nil, txErr(s.logger, "处理导师申请失败", err, zap.String("request_id", requestID), zap.String("lecturer_id", p.ID))
	}

	metrics.ObserveMentorship(status)
	s.logger.Info("导师申请已处理",
		zap.String("request_id", requestID),
		zap.String("team_id", resp.TeamID),
		zap.String("status", status),
	)
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return resp, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *mentorshipService) ListForLecturer(ctx context.Context, p policy.Principal) ([]dto.MentorshipRequestResponse, error) {
	if err := policy.RequireLecturer(p); err != nil {
		return nil, err
	}
	rows, err := s.repo.Mentorship.ListByLecturer(ctx, p.ID)
	if err != nil {
		return nil, storageErr(s.logger, "查询导师申请失败", err, zap.String("lecturer_id", p.ID))
	}
	return viewsToResponses(rows), nil
}

func (s *mentorshipService) ListForTeam(ctx context.Context, p policy.Principal, teamID string) ([]dto.MentorshipRequestResponse, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	if _, err := s.repo.Team.GetByID(ctx, teamID); err != nil {
		if isNotFound(err) {
			return nil, ErrTeamNotFound
		}
		return nil, storageErr(s.logger, "查询小组失败", err, zap.String("team_id", teamID))
	}
	if !p.IsAdmin() {
		if !p.IsStudent() {
			return nil, ErrRequestsHidden
		}
		student, err := s.repo.Student.GetByID(ctx, p.ID)
		if err != nil && !isNotFound(err) {
			return nil, storageErr(s.logger, "查询学生失败", err, zap.String("student_id", p.ID))
		}
		if student == nil || !student.InTeam(teamID) {
			return nil, ErrRequestsHidden
		}
	}

	rows, err := s.repo.Mentorship.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, storageErr(s.logger, "查询导师申请失败", err, zap.String("team_id", teamID))
	}
	return viewsToResponses(rows), nil
}

func (s *mentorshipService) ListLecturers(ctx context.Context, p policy.Principal) ([]dto.LecturerResponse, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	lecturers, err := s.repo.Lecturer.List(ctx)
	if err != nil {
		return nil, storageErr(s.logger, "查询讲师列表失败", err)
	}
	result := make([]dto.LecturerResponse, 0, len(lecturers))
	for i := range lecturers {
		result = append(result, *lecturerToResponse(&lecturers[i]))
	}
	return result, nil
}

// ── 转换 ──

func requestToResponse(r *model.MentorshipRequest) *dto.MentorshipRequestResponse {
	return &dto.MentorshipRequestResponse{
		ID:         r.RequestID,
		TeamID:     r.TeamID,
		LecturerID: r.LecturerID,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func viewsToResponses(rows []model.MentorshipRequestView) []dto.MentorshipRequestResponse {
	result := make([]dto.MentorshipRequestResponse, 0, len(rows))
	for i := range rows {
		resp := requestToResponse(&rows[i].MentorshipRequest)
		resp.TeamName = rows[i].TeamName
		resp.LecturerName = rows[i].LecturerName
		if rows[i].LeaderID != nil {
			resp.LeaderID = *rows[i].LeaderID
		}
		if rows[i].LeaderName != nil {
			resp.LeaderName = *rows[i].LeaderName
		}
		result = append(result, *resp)
	}
	return result
}
