package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/thtun0709/beswd/internal/model"
)

// LecturerRepository 讲师数据访问接口
type LecturerRepository interface {
	Create(ctx context.Context, lecturer *model.Lecturer) error
	GetByID(ctx context.Context, id string) (*model.Lecturer, error)
	GetByEmail(ctx context.Context, email string) (*model.Lecturer, error)
	Update(ctx context.Context, lecturer *model.Lecturer) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.Lecturer, error)
}

type lecturerRepo struct {
	db *gorm.DB
}

// NewLecturerRepo 创建 LecturerRepository 实例
func NewLecturerRepo(db *gorm.DB) LecturerRepository {
	return &lecturerRepo{db: db}
}

func (r *lecturerRepo) Create(ctx context.Context, lecturer *model.Lecturer) error {
	return r.db.WithContext(ctx).Create(lecturer).Error
}

func (r *lecturerRepo) GetByID(ctx context.Context, id string) (*model.Lecturer, error) {
	var l model.Lecturer
	if err := r.db.WithContext(ctx).Where("lecturer_id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *lecturerRepo) GetByEmail(ctx context.Context, email string) (*model.Lecturer, error) {
	var l model.Lecturer
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *lecturerRepo) Update(ctx context.Context, lecturer *model.Lecturer) error {
	return r.db.WithContext(ctx).Save(lecturer).Error
}

func (r *lecturerRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&model.Lecturer{}).
		Where("lecturer_id = ?", id).
		Update("password_hash", passwordHash).Error
}

func (r *lecturerRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("lecturer_id = ?", id).Delete(&model.Lecturer{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *lecturerRepo) List(ctx context.Context) ([]model.Lecturer, error) {
	var list []model.Lecturer
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}
