package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/pkg/jwt"
	"github.com/thtun0709/beswd/pkg/response"
)

// Blacklist 登出后的 Token 黑名单
type Blacklist interface {
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证 Access Token
// blacklist 为 nil 时跳过黑名单检查（Redis 不可用）
func JWTAuth(jwtMgr *jwt.Manager, blacklist Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseTyped(parts[1], jwt.TypeAccess)
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		if blacklist != nil {
			revoked, err := blacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				response.ErrorKind(c, http.StatusServiceUnavailable, 50300, "transient", "认证服务暂不可用，请稍后重试")
				c.Abort()
				return
			}
			if revoked {
				response.Unauthorized(c, 10002, "Token 已失效")
				c.Abort()
				return
			}
		}

		// 将用户信息注入上下文
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("token_jti", claims.ID)
		if claims.ExpiresAt != nil {
			c.Set("token_exp", claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一；组长身份由业务层按小组判定
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("role")
		if userRole == "" {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}
