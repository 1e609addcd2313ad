package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/service"
	"github.com/thtun0709/beswd/pkg/response"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc      service.AuthService
	secureCookie bool
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, secureCookie: secureCookie}
}

// Register 学生注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.Created(c, result)
}

// Login 登录（学生/讲师/管理员共用）
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

var errMissingRefreshToken = errors.New("refresh_token 缺失")

// RefreshToken 刷新 Token，优先读取请求体，其次读取 Cookie
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		cookie, cerr := c.Cookie(refreshCookieName)
		if cerr != nil || cookie == "" {
			bindFailed(c, errMissingRefreshToken)
			return
		}
		req.RefreshToken = cookie
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handleError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken)
	response.OK(c, result)
}

// Logout 登出：当前 Access Token 加入黑名单
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, exp := tokenMeta(c)
	if err := h.authSvc.Logout(c.Request.Context(), jti, exp); err != nil {
		handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.secureCookie, true)
	response.OK(c, nil)
}

// Me 获取当前登录者
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, user)
}

// ForgotPassword 发送重置验证码；邮箱不存在时同样返回成功
// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	if err := h.authSvc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"message": "如果该邮箱已注册，验证码已发送"})
}

// VerifyResetCode 校验验证码，换取重置令牌
// POST /api/v1/auth/verify-reset-code
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req dto.VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	result, err := h.authSvc.VerifyResetCode(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// ResetPassword 使用重置令牌设置新密码
// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	if err := h.authSvc.ResetPassword(c.Request.Context(), &req); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	if token == "" {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, 7*24*3600, refreshCookiePath, "", h.secureCookie, true)
}
