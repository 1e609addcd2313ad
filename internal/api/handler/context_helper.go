package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

// MustGetPrincipal 组合 user_id 与 role 为业务层使用的调用者身份
func MustGetPrincipal(c *gin.Context) (policy.Principal, bool) {
	id, ok := MustGetUserID(c)
	if !ok {
		return policy.Principal{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return policy.Principal{}, false
	}
	return policy.Principal{ID: id, Role: role}, true
}

// tokenMeta 登出时用于加入黑名单，缺失时返回零值
func tokenMeta(c *gin.Context) (string, time.Time) {
	jti := c.GetString("token_jti")
	exp, _ := c.Get("token_exp")
	expiresAt, _ := exp.(time.Time)
	return jti, expiresAt
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
