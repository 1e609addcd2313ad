package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
// 同一事务内的所有读写必须经由 Transaction 回调中的 tx 聚合完成
type Repository struct {
	db          *gorm.DB
	lockTimeout time.Duration
	mu          sync.Mutex // db 为 nil 时（内存实现）用于串行化事务

	Student    StudentRepository
	Lecturer   LecturerRepository
	Team       TeamRepository
	Vote       VoteRepository
	Mentorship MentorshipRepository
	Post       PostRepository
}

// Option 聚合配置项
type Option func(*Repository)

// WithLockTimeout 设置事务内行锁等待上限（SET LOCAL lock_timeout）
func WithLockTimeout(d time.Duration) Option {
	return func(r *Repository) { r.lockTimeout = d }
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, opts ...Option) *Repository {
	r := bind(db)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func bind(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		Student:    NewStudentRepo(db),
		Lecturer:   NewLecturerRepo(db),
		Team:       NewTeamRepo(db),
		Vote:       NewVoteRepo(db),
		Mentorship: NewMentorshipRepo(db),
		Post:       NewPostRepo(db),
	}
}

// WithTx 返回绑定到指定事务连接的聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	txRepo := bind(tx)
	txRepo.lockTimeout = r.lockTimeout
	return txRepo
}

// Transaction 在单个数据库事务中执行 fn，fn 返回错误则回滚
// 锁顺序约定：teams → students → mentorship_requests
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(r)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 {
			// SET LOCAL 不支持参数绑定，毫秒数为整数，无注入风险
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("设置锁等待超时失败: %w", err)
			}
		}
		return fn(r.WithTx(tx))
	})
}
