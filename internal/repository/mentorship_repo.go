package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thtun0709/beswd/internal/model"
)

// MentorshipRepository 导师申请数据访问接口
type MentorshipRepository interface {
	Create(ctx context.Context, req *model.MentorshipRequest) error
	GetByID(ctx context.Context, id string) (*model.MentorshipRequest, error)
	// GetPendingForUpdate 锁定属于该讲师且仍为 pending 的申请，不存在返回 ErrRecordNotFound
	GetPendingForUpdate(ctx context.Context, id, lecturerID string) (*model.MentorshipRequest, error)
	HasPending(ctx context.Context, teamID string) (bool, error)
	UpdateStatus(ctx context.Context, id, status string) error
	ListByLecturer(ctx context.Context, lecturerID string) ([]model.MentorshipRequestView, error)
	ListByTeam(ctx context.Context, teamID string) ([]model.MentorshipRequestView, error)
	DeleteByTeam(ctx context.Context, teamID string) error
	DeleteByLecturer(ctx context.Context, lecturerID string) error
}

type mentorshipRepo struct {
	db *gorm.DB
}

// NewMentorshipRepo 创建 MentorshipRepository 实例
func NewMentorshipRepo(db *gorm.DB) MentorshipRepository {
	return &mentorshipRepo{db: db}
}

func (r *mentorshipRepo) Create(ctx context.Context, req *model.MentorshipRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *mentorshipRepo) GetByID(ctx context.Context, id string) (*model.MentorshipRequest, error) {
	var req model.MentorshipRequest
	if err := r.db.WithContext(ctx).Where("request_id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *mentorshipRepo) GetPendingForUpdate(ctx context.Context, id, lecturerID string) (*model.MentorshipRequest, error) {
	var req model.MentorshipRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ? AND lecturer_id = ? AND status = ?", id, lecturerID, model.RequestStatusPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *mentorshipRepo) HasPending(ctx context.Context, teamID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.MentorshipRequest{}).
		Where("team_id = ? AND status = ?", teamID, model.RequestStatusPending).
		Count(&n).Error
	return n > 0, err
}

func (r *mentorshipRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&model.MentorshipRequest{}).
		Where("request_id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": gorm.Expr("NOW()")}).Error
}

func (r *mentorshipRepo) listView(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("mentorship_requests mr").
		Select("mr.*, t.name AS team_name, t.leader_id, s.name AS leader_name, l.name AS lecturer_name").
		Joins("JOIN teams t ON t.team_id = mr.team_id").
		Joins("JOIN lecturers l ON l.lecturer_id = mr.lecturer_id").
		Joins("LEFT JOIN students s ON s.student_id = t.leader_id").
		Order("mr.created_at DESC")
}

func (r *mentorshipRepo) ListByLecturer(ctx context.Context, lecturerID string) ([]model.MentorshipRequestView, error) {
	var list []model.MentorshipRequestView
	err := r.listView(ctx).Where("mr.lecturer_id = ?", lecturerID).Scan(&list).Error
	return list, err
}

func (r *mentorshipRepo) ListByTeam(ctx context.Context, teamID string) ([]model.MentorshipRequestView, error) {
	var list []model.MentorshipRequestView
	err := r.listView(ctx).Where("mr.team_id = ?", teamID).Scan(&list).Error
	return list, err
}

func (r *mentorshipRepo) DeleteByTeam(ctx context.Context, teamID string) error {
	return r.db.WithContext(ctx).Where("team_id = ?", teamID).Delete(&model.MentorshipRequest{}).Error
}

func (r *mentorshipRepo) DeleteByLecturer(ctx context.Context, lecturerID string) error {
	return r.db.WithContext(ctx).Where("lecturer_id = ?", lecturerID).Delete(&model.MentorshipRequest{}).Error
}
