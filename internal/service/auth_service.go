package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thtun0709/beswd/config"
	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
	"github.com/thtun0709/beswd/pkg/jwt"
	"github.com/thtun0709/beswd/pkg/mailer"
	"github.com/thtun0709/beswd/pkg/redis"
)

var (
	ErrInvalidCredentials  = apperr.New(apperr.KindUnauthorized, 10010, "invalid_credentials", "邮箱或密码错误")
	ErrEmailExists         = apperr.New(apperr.KindConflict, 10011, "email_exists", "邮箱已被注册")
	ErrStudentIDExists     = apperr.New(apperr.KindConflict, 10012, "student_id_exists", "学号已被注册")
	ErrInvalidResetCode    = apperr.New(apperr.KindInvalidInput, 10013, "invalid_reset_code", "验证码错误或已过期")
	ErrResetTokenInvalid   = apperr.New(apperr.KindUnauthorized, 10014, "reset_token_invalid", "重置令牌无效或已过期")
	ErrPasswordTooShort    = apperr.New(apperr.KindInvalidInput, 10015, "password_too_short", "密码长度不足")
	ErrPasswordMismatch    = apperr.New(apperr.KindInvalidInput, 10016, "password_mismatch", "两次输入的密码不一致")
	ErrRefreshTokenInvalid = apperr.New(apperr.KindUnauthorized, 10017, "refresh_token_invalid", "刷新令牌无效或已过期")
	ErrResetUnavailable    = apperr.New(apperr.KindTransient, 10018, "reset_unavailable", "密码重置服务暂不可用")
	ErrInvalidProfile      = apperr.New(apperr.KindInvalidInput, 10019, "invalid_profile", "专业或批次不在允许范围内")
	ErrAccountIDTaken      = apperr.New(apperr.KindConflict, 10020, "account_id_taken", "该编号已被其他账号占用")
)

const resetCodeDigits = 5

// TokenStore 令牌黑名单与重置验证码存储，由 Redis 实现
type TokenStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	SaveResetCode(ctx context.Context, email, code string, ttl time.Duration) error
	GetResetCode(ctx context.Context, email string) (string, error)
	DeleteResetCode(ctx context.Context, email string) error
}

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	// Login 按邮箱依次查找学生、讲师
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 将 access token 的 jti 拉黑至其过期
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	Me(ctx context.Context, p policy.Principal) (*dto.UserSummary, error)

	ForgotPassword(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, req *dto.VerifyResetCodeRequest) (*dto.ResetTokenResponse, error)
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	tokens TokenStore
	mail   mailer.Mailer
	logger *zap.Logger

	// async 邮件发送调度，测试中替换为同步执行
	async func(func())
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	tokens TokenStore,
	mail mailer.Mailer,
	logger *zap.Logger,
) AuthService {
	if mail == nil {
		mail = mailer.New(cfg.Mail, logger)
	}
	return &authService{
		cfg:    cfg,
		repo:   repo,
		jwtMgr: jwtMgr,
		tokens: tokens,
		mail:   mail,
		logger: logger,
		async:  func(fn func()) { go fn() },
	}
}

// account 学生或讲师的统一视图
type account struct {
	id           string
	role         string
	name         string
	email        string
	passwordHash string
	student      *model.Student
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}
	if !model.IsValidMajor(req.Major) || !model.IsValidCohort(req.Cohort) {
		return nil, ErrInvalidProfile
	}
	email := normalizeEmail(req.Email)

	if _, err := s.findAccount(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrInvalidCredentials) {
		return nil, err
	}
	if _, err := s.repo.Student.GetByID(ctx, req.StudentID); err == nil {
		return nil, ErrStudentIDExists
	} else if !isNotFound(err) {
		return nil, storageErr(s.logger, "查询学号失败", err)
	}
	// 学生与讲师共用同一身份空间（令牌、归属、私信频道均以编号定位）
	if _, err := s.repo.Lecturer.GetByID(ctx, req.StudentID); err == nil {
		return nil, ErrAccountIDTaken
	} else if !isNotFound(err) {
		return nil, storageErr(s.logger, "查询讲师编号失败", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, apperr.ErrInternal
	}

	student := &model.Student{
		StudentID:    req.StudentID,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleStudent,
		Major:        req.Major,
		Cohort:       req.Cohort,
	}
	if err := s.repo.Student.Create(ctx, student); err != nil {
		// 并发注册由唯一约束兜底
		if apperr.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, storageErr(s.logger, "创建学生失败", err, zap.String("student_id", req.StudentID))
	}

	s.logger.Info("学生注册成功", zap.String("student_id", student.StudentID))
	return s.issueTokens(ctx, studentAccount(student))
}

// ────────────────────── Login / Refresh / Logout ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	acc, err := s.findAccount(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, acc)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseTyped(refreshToken, jwt.TypeRefresh)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("查询令牌黑名单失败", zap.Error(err))
			return nil, apperr.ErrTransient
		}
		if revoked {
			return nil, ErrRefreshTokenInvalid
		}
	}

	acc, err := s.accountByID(ctx, claims.UserID, claims.Role)
	if err != nil {
		return nil, err
	}

	// 刷新令牌一次性使用
	if s.tokens != nil && claims.ExpiresAt != nil {
		if err := s.tokens.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("拉黑旧刷新令牌失败", zap.Error(err))
		}
	}
	return s.issueTokens(ctx, acc)
}

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.tokens == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.tokens.BlacklistToken(ctx, jti, ttl); err != nil {
		s.logger.Warn("拉黑令牌失败", zap.String("jti", jti), zap.Error(err))
		return apperr.ErrTransient
	}
	return nil
}

func (s *authService) Me(ctx context.Context, p policy.Principal) (*dto.UserSummary, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}
	acc, err := s.accountByID(ctx, p.ID, p.Role)
	if err != nil {
		return nil, err
	}
	return s.summary(ctx, acc)
}

// ────────────────────── 重置密码 ──────────────────────

func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	if s.tokens == nil {
		return ErrResetUnavailable
	}
	email = normalizeEmail(email)

	acc, err := s.findAccount(ctx, email)
	if err != nil {
		// 未注册邮箱同样返回成功，避免泄露账号是否存在
		if errors.Is(err, ErrInvalidCredentials) {
			s.logger.Info("重置密码：邮箱未注册", zap.String("email", email))
			return nil
		}
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		s.logger.Error("生成验证码失败", zap.Error(err))
		return apperr.ErrInternal
	}
	if err := s.tokens.SaveResetCode(ctx, email, code, s.cfg.Auth.ResetCodeTTL); err != nil {
		s.logger.Warn("保存验证码失败", zap.Error(err))
		return ErrResetUnavailable
	}

	subject := "密码重置验证码"
	body := fmt.Sprintf("%s 你好，\n\n你的验证码是 %s，%d 分钟内有效。\n如非本人操作请忽略本邮件。\n",
		acc.name, code, int(s.cfg.Auth.ResetCodeTTL.Minutes()))
	s.async(func() {
		// 请求可能已结束，使用独立超时上下文
		mailCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mail.Send(mailCtx, email, subject, body); err != nil {
			s.logger.Warn("验证码邮件发送失败", zap.String("email", email), zap.Error(err))
		}
	})
	return nil
}

func (s *authService) VerifyResetCode(ctx context.Context, req *dto.VerifyResetCodeRequest) (*dto.ResetTokenResponse, error) {
	if s.tokens == nil {
		return nil, ErrResetUnavailable
	}
	email := normalizeEmail(req.Email)

	stored, err := s.tokens.GetResetCode(ctx, email)
	if err != nil {
		if errors.Is(err, redis.ErrCodeNotFound) {
			return nil, ErrInvalidResetCode
		}
		s.logger.Warn("读取验证码失败", zap.Error(err))
		return nil, ErrResetUnavailable
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(req.Code)) != 1 {
		return nil, ErrInvalidResetCode
	}
	if err := s.tokens.DeleteResetCode(ctx, email); err != nil {
		s.logger.Warn("删除验证码失败", zap.Error(err))
	}

	token, err := s.jwtMgr.GenerateResetToken(email)
	if err != nil {
		s.logger.Error("生成重置令牌失败", zap.Error(err))
		return nil, apperr.ErrInternal
	}
	return &dto.ResetTokenResponse{
		ResetToken: token,
		ExpiresIn:  int(s.cfg.Auth.ResetTokenTTL.Seconds()),
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	claims, err := s.jwtMgr.ParseTyped(req.ResetToken, jwt.TypeReset)
	if err != nil || claims.Subject == "" {
		return ErrResetTokenInvalid
	}
	if err := s.checkPassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword != req.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if s.tokens != nil {
		used, err := s.tokens.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("查询令牌黑名单失败", zap.Error(err))
			return ErrResetUnavailable
		}
		if used {
			return ErrResetTokenInvalid
		}
	}

	acc, err := s.findAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return ErrResetTokenInvalid
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return apperr.ErrInternal
	}
	if acc.role == model.RoleLecturer {
		err = s.repo.Lecturer.UpdatePassword(ctx, acc.id, string(hash))
	} else {
		err = s.repo.Student.UpdatePassword(ctx, acc.id, string(hash))
	}
	if err != nil {
		return storageErr(s.logger, "更新密码失败", err, zap.String("user_id", acc.id))
	}

	if s.tokens != nil && claims.ExpiresAt != nil {
		if err := s.tokens.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("拉黑重置令牌失败", zap.Error(err))
		}
	}
	s.logger.Info("密码已重置", zap.String("user_id", acc.id), zap.String("role", acc.role))
	return nil
}

// ── 辅助函数 ──

func (s *authService) checkPassword(pw string) error {
	if len(pw) < s.cfg.Auth.MinPasswordLen {
		return ErrPasswordTooShort.WithMessage(fmt.Sprintf("密码长度不能少于 %d 位", s.cfg.Auth.MinPasswordLen))
	}
	return nil
}

// findAccount 未找到返回 ErrInvalidCredentials
func (s *authService) findAccount(ctx context.Context, email string) (*account, error) {
	student, err := s.repo.Student.GetByEmail(ctx, email)
	if err == nil {
		return studentAccount(student), nil
	}
	if !isNotFound(err) {
		return nil, storageErr(s.logger, "查询学生失败", err)
	}

	lecturer, err := s.repo.Lecturer.GetByEmail(ctx, email)
	if err == nil {
		return lecturerAccount(lecturer), nil
	}
	if !isNotFound(err) {
		return nil, storageErr(s.logger, "查询讲师失败", err)
	}
	return nil, ErrInvalidCredentials
}

func (s *authService) accountByID(ctx context.Context, id, role string) (*account, error) {
	if role == model.RoleLecturer {
		lecturer, err := s.repo.Lecturer.GetByID(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return nil, apperr.ErrUnauthorized
			}
			return nil, storageErr(s.logger, "查询讲师失败", err, zap.String("lecturer_id", id))
		}
		return lecturerAccount(lecturer), nil
	}
	student, err := s.repo.Student.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrUnauthorized
		}
		return nil, storageErr(s.logger, "查询学生失败", err, zap.String("student_id", id))
	}
	return studentAccount(student), nil
}

func (s *authService) issueTokens(ctx context.Context, acc *account) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(acc.id, acc.role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, apperr.ErrInternal
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(acc.id, acc.role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, apperr.ErrInternal
	}
	user, err := s.summary(ctx, acc)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         *user,
	}, nil
}

// summary 学生的展示角色由所在小组的 leader_id 推导
func (s *authService) summary(ctx context.Context, acc *account) (*dto.UserSummary, error) {
	out := &dto.UserSummary{ID: acc.id, Name: acc.name, Email: acc.email, Role: acc.role}
	if acc.student == nil {
		return out, nil
	}
	out.TeamID = acc.student.TeamID
	out.Major = acc.student.Major
	out.Cohort = acc.student.Cohort
	if acc.student.TeamID != nil {
		team, err := s.repo.Team.GetByID(ctx, *acc.student.TeamID)
		if err != nil && !isNotFound(err) {
			return nil, storageErr(s.logger, "查询小组失败", err)
		}
		out.Role = projectedRole(acc.student, team)
	}
	return out, nil
}

func studentAccount(st *model.Student) *account {
	return &account{
		id:           st.StudentID,
		role:         st.Role,
		name:         st.Name,
		email:        st.Email,
		passwordHash: st.PasswordHash,
		student:      st,
	}
}

func lecturerAccount(l *model.Lecturer) *account {
	return &account{
		id:           l.LecturerID,
		role:         model.RoleLecturer,
		name:         l.Name,
		email:        l.Email,
		passwordHash: l.PasswordHash,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateResetCode 生成定长数字验证码
func generateResetCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < resetCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}
