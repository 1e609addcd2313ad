package model

// 导师申请状态
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusRejected = "rejected"
)

// MentorshipRequest 导师申请表，对应 mentorship_requests
// 每队同一时刻至多一条 pending（部分唯一索引兜底）
type MentorshipRequest struct {
	RequestID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	TeamID     string `gorm:"type:uuid;not null"                             json:"team_id"`
	LecturerID string `gorm:"type:varchar(20);not null"                      json:"lecturer_id"`
	Status     string `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	BaseModel
}

// TableName 指定表名
func (MentorshipRequest) TableName() string { return "mentorship_requests" }

// MentorshipRequestView 讲师视角的申请列表行（附小组名与组长名）
type MentorshipRequestView struct {
	MentorshipRequest
	TeamName     string  `json:"team_name"`
	LeaderID     *string `json:"leader_id,omitempty"`
	LeaderName   *string `json:"leader_name,omitempty"`
	LecturerName string  `json:"lecturer_name"`
}
