package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/thtun0709/beswd/internal/model"
)

// PostRepository 帖子与评论数据访问接口
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]model.Post, int64, error)

	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
}

type postRepo struct {
	db *gorm.DB
}

// NewPostRepo 创建 PostRepository 实例
func NewPostRepo(db *gorm.DB) PostRepository {
	return &postRepo{db: db}
}

func (r *postRepo) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Omit("Comments").Create(post).Error
}

func (r *postRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("post_id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepo) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Model(post).
		Select("title", "content", "updated_at").
		Updates(post).Error
}

func (r *postRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("post_id = ?", id).Delete(&model.Post{}).Error
}

func (r *postRepo) List(ctx context.Context, offset, limit int) ([]model.Post, int64, error) {
	var posts []model.Post
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Post{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepo) CreateComment(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *postRepo) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).Where("comment_id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *postRepo) DeleteComment(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("comment_id = ?", id).Delete(&model.Comment{}).Error
}

func (r *postRepo) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	var list []model.Comment
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC").Find(&list).Error
	return list, err
}
