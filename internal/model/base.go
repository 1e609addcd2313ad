package model

import "time"

// BaseModel 通用时间戳字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// ── 角色 ──

const (
	RoleStudent  = "student"
	RoleLeader   = "leader" // 仅用于展示，由 teams.leader_id 推导
	RoleAdmin    = "admin"
	RoleLecturer = "lecturer"
)

// ── 课程取值范围 ──

// Majors 专业方向
var Majors = []string{"SE", "AI", "SA", "SS", "IB"}

// Cohorts 入学批次
var Cohorts = []string{"K15", "K16", "K17", "K18", "K19", "K20", "K21", "K22"}

// IsValidMajor 专业是否在允许范围内
func IsValidMajor(m string) bool { return contains(Majors, m) }

// IsValidCohort 批次是否在允许范围内
func IsValidCohort(c string) bool { return contains(Cohorts, c) }

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
