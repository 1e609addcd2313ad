package dto

// ── 小组 / 投票 / 导师申请 DTO ──

// CreateTeamRequest 创建小组；capacity 缺省取配置 team.default_capacity
type CreateTeamRequest struct {
	Name        string `json:"name"        binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"omitempty,max=1000"`
	Capacity    int    `json:"max_members" binding:"omitempty,min=1"`
}

// UpdateTeamRequest 管理员修改小组
type UpdateTeamRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Capacity    *int    `json:"max_members" binding:"omitempty,min=1"`
}

// SetTeamStatusRequest 管理员锁定/解锁
type SetTeamStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open pending voting active locked"`
}

// VoteRequest 投票
type VoteRequest struct {
	CandidateID string `json:"candidate_id" binding:"required"`
}

// SendMentorshipRequest 组长向讲师发出申请
type SendMentorshipRequest struct {
	LecturerID string `json:"lecturer_id" binding:"required"`
}

// RespondMentorshipRequest 讲师处理申请
type RespondMentorshipRequest struct {
	Action string `json:"action" binding:"required"` // accept | reject，非法值由业务层返回 InvalidAction
}
