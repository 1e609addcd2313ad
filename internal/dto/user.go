package dto

// ── 用户模块 DTO ──

// UpdateProfileRequest 学生更新专业/批次
type UpdateProfileRequest struct {
	Name   *string `json:"name"   binding:"omitempty,min=2,max=100"`
	Major  *string `json:"major"  binding:"omitempty,oneof=SE AI SA SS IB"`
	Cohort *string `json:"cohort" binding:"omitempty,oneof=K15 K16 K17 K18 K19 K20 K21 K22"`
}

// CreateLecturerRequest 管理员新增讲师
type CreateLecturerRequest struct {
	LecturerID string `json:"lecturer_id" binding:"required,min=2,max=20,alphanum"`
	Name       string `json:"name"        binding:"required,min=2,max=100"`
	Email      string `json:"email"       binding:"required,email"`
	Password   string `json:"password"    binding:"required,min=5,max=64"`
	Department string `json:"department"  binding:"omitempty,max=100"`
}

// UpdateLecturerRequest 管理员修改讲师
type UpdateLecturerRequest struct {
	Name       *string `json:"name"       binding:"omitempty,min=2,max=100"`
	Email      *string `json:"email"      binding:"omitempty,email"`
	Department *string `json:"department" binding:"omitempty,max=100"`
}
