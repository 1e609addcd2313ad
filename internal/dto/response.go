package dto

import "time"

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"` // Access Token 有效期（秒）
	User         UserSummary `json:"user"`
}

// ResetTokenResponse 验证码校验通过后返回
type ResetTokenResponse struct {
	ResetToken string `json:"reset_token"`
	ExpiresIn  int    `json:"expires_in"`
}

// ── 用户 ──

// UserSummary 当前登录者概要，role 为推导后的展示角色
type UserSummary struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Role   string  `json:"role"`
	TeamID *string `json:"team_id,omitempty"`
	Major  string  `json:"major,omitempty"`
	Cohort string  `json:"cohort,omitempty"`
}

// LecturerResponse 讲师信息
type LecturerResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// ── 小组 ──

// MemberResponse 小组成员
type MemberResponse struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"` // student | leader
	Major     string `json:"major"`
	Cohort    string `json:"cohort"`
}

// TeamResponse 小组快照
type TeamResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Capacity    int               `json:"capacity"`
	MemberCount int64             `json:"member_count"`
	LeaderID    *string           `json:"leader_id,omitempty"`
	Mentor      *LecturerResponse `json:"mentor,omitempty"`
	Members     []MemberResponse  `json:"members,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ── 投票 ──

// VoteResponse 投票结果
type VoteResponse struct {
	Status       string `json:"status"` // voted | leader_chosen
	Votes        int64  `json:"votes"`
	TotalMembers int64  `json:"total_members"`
	CandidateID  string `json:"candidate_id"`
	LeaderID     string `json:"leader_id,omitempty"`
	LeaderName   string `json:"leader_name,omitempty"`
}

// VoteResultItem 投票明细
type VoteResultItem struct {
	VoterID       string `json:"voter_id"`
	VoterName     string `json:"voter_name"`
	CandidateID   string `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
}

// ── 导师申请 ──

// MentorshipRequestResponse 导师申请记录
type MentorshipRequestResponse struct {
	ID           string    `json:"id"`
	TeamID       string    `json:"team_id"`
	TeamName     string    `json:"team_name,omitempty"`
	LeaderID     string    `json:"leader_id,omitempty"`
	LeaderName   string    `json:"leader_name,omitempty"`
	LecturerID   string    `json:"lecturer_id"`
	LecturerName string    `json:"lecturer_name,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ── 帖子 ──

// CommentResponse 评论
type CommentResponse struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	AuthorID   string    `json:"author_id"`
	AuthorRole string    `json:"author_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// PostResponse 帖子
type PostResponse struct {
	ID         string            `json:"id"`
	AuthorID   string            `json:"author_id"`
	AuthorRole string            `json:"author_role"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Comments   []CommentResponse `json:"comments,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ── 分页 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
