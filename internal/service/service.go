package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/thtun0709/beswd/config"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
	"github.com/thtun0709/beswd/pkg/jwt"
	"github.com/thtun0709/beswd/pkg/mailer"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Student    StudentService
	Lecturer   LecturerService
	Team       TeamService
	Vote       VoteService
	Mentorship MentorshipService
	Post       PostService
	Export     ExportService
}

// Deps 外部协作方；TokenStore 为 nil 表示 Redis 不可用
type Deps struct {
	JWT        *jwt.Manager
	Tokens     TokenStore
	Dispatcher notify.Dispatcher
	Mailer     mailer.Mailer
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	guard := policy.NewGuard(repo.Team)
	if deps.Dispatcher == nil {
		deps.Dispatcher = notify.NewLogDispatcher(logger)
	}
	return &Service{
		Auth:       NewAuthService(cfg, repo, deps.JWT, deps.Tokens, deps.Mailer, logger),
		Student:    NewStudentService(repo, logger),
		Lecturer:   NewLecturerService(repo, deps.Dispatcher, logger),
		Team:       NewTeamService(&cfg.Team, repo, deps.Dispatcher, logger),
		Vote:       NewVoteService(repo, deps.Dispatcher, logger),
		Mentorship: NewMentorshipService(repo, guard, deps.Dispatcher, logger),
		Post:       NewPostService(repo, deps.Dispatcher, logger),
		Export:     NewExportService(repo, logger),
	}
}

// ── 公共辅助 ──

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// storageErr 记录存储层错误并归类；可重试错误只记 Warn
func storageErr(logger *zap.Logger, msg string, err error, fields ...zap.Field) error {
	classified := apperr.Classify(err)
	fields = append(fields, zap.Error(err))
	if apperr.IsTransient(classified) {
		logger.Warn(msg, fields...)
	} else if apperr.KindOf(classified) == apperr.KindInternal {
		logger.Error(msg, fields...)
	}
	return classified
}

// txErr 事务返回值统一归类：业务错误原样返回，其余按存储层错误处理
func txErr(logger *zap.Logger, msg string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	var domain *apperr.Error
	if errors.As(err, &domain) {
		return err
	}
	return storageErr(logger, msg, err, fields...)
}

// detach 通知投递使用独立上下文，避免请求结束后被取消
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func studentRecipient(id string) notify.Recipient {
	return notify.Recipient{Role: model.RoleStudent, ID: id}
}

func lecturerRecipient(id string) notify.Recipient {
	return notify.Recipient{Role: model.RoleLecturer, ID: id}
}
