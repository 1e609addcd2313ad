package dto

// ── 认证模块 DTO ──

// RegisterRequest 学生注册请求
type RegisterRequest struct {
	StudentID string `json:"student_id" binding:"required,min=4,max=20,alphanum"`
	Name      string `json:"name"       binding:"required,min=2,max=100"`
	Email     string `json:"email"      binding:"required,email"`
	Password  string `json:"password"   binding:"required,min=5,max=64"`
	Major     string `json:"major"      binding:"required,oneof=SE AI SA SS IB"`
	Cohort    string `json:"cohort"     binding:"required,oneof=K15 K16 K17 K18 K19 K20 K21 K22"`
}

// LoginRequest 登录请求（学生与讲师共用，按邮箱识别）
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ForgotPasswordRequest 申请重置验证码
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyResetCodeRequest 校验验证码
type VerifyResetCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code"  binding:"required,len=5,numeric"`
}

// ResetPasswordRequest 使用重置令牌设置新密码
type ResetPasswordRequest struct {
	ResetToken      string `json:"reset_token"      binding:"required"`
	NewPassword     string `json:"new_password"     binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}
