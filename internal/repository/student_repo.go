package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thtun0709/beswd/internal/model"
)

// StudentRepository 学生数据访问接口
type StudentRepository interface {
	Create(ctx context.Context, student *model.Student) error
	GetByID(ctx context.Context, id string) (*model.Student, error)
	// GetByIDForUpdate 行级锁读取，必须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.Student, error)
	GetByEmail(ctx context.Context, email string) (*model.Student, error)
	Update(ctx context.Context, student *model.Student) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetTeam(ctx context.Context, id string, teamID *string) error
	ClearTeam(ctx context.Context, teamID string) error
	ListByTeam(ctx context.Context, teamID string) ([]model.Student, error)
	CountByTeam(ctx context.Context, teamID string) (int64, error)
	List(ctx context.Context, offset, limit int) ([]model.Student, int64, error)
}

// studentRepo StudentRepository 的 GORM 实现
type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) Create(ctx context.Context, student *model.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var s model.Student
	if err := r.db.WithContext(ctx).Where("student_id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *studentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Student, error) {
	var s model.Student
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *studentRepo) GetByEmail(ctx context.Context, email string) (*model.Student, error) {
	var s model.Student
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *studentRepo) Update(ctx context.Context, student *model.Student) error {
	return r.db.WithContext(ctx).Save(student).Error
}

func (r *studentRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&model.Student{}).
		Where("student_id = ?", id).
		Update("password_hash", passwordHash).Error
}

func (r *studentRepo) SetTeam(ctx context.Context, id string, teamID *string) error {
	return r.db.WithContext(ctx).Model(&model.Student{}).
		Where("student_id = ?", id).
		Update("team_id", teamID).Error
}

func (r *studentRepo) ClearTeam(ctx context.Context, teamID string) error {
	return r.db.WithContext(ctx).Model(&model.Student{}).
		Where("team_id = ?", teamID).
		Update("team_id", nil).Error
}

// ListByTeam 按学号升序返回成员，组长移交依赖该顺序
func (r *studentRepo) ListByTeam(ctx context.Context, teamID string) ([]model.Student, error) {
	var students []model.Student
	err := r.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("student_id ASC").
		Find(&students).Error
	return students, err
}

func (r *studentRepo) CountByTeam(ctx context.Context, teamID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Student{}).
		Where("team_id = ?", teamID).
		Count(&n).Error
	return n, err
}

func (r *studentRepo) List(ctx context.Context, offset, limit int) ([]model.Student, int64, error) {
	var students []model.Student
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Student{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("student_id ASC").Offset(offset).Limit(limit).Find(&students).Error; err != nil {
		return nil, 0, err
	}
	return students, total, nil
}
