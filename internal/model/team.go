package model

// 小组状态
//
//	pending/open ──满员──▶ voting ──过半数选出组长──▶ active
//	任意状态 ◀──管理员──▶ locked
const (
	TeamStatusOpen    = "open"
	TeamStatusPending = "pending"
	TeamStatusVoting  = "voting"
	TeamStatusActive  = "active"
	TeamStatusLocked  = "locked"
)

// IsValidTeamStatus 状态值是否合法
func IsValidTeamStatus(s string) bool {
	switch s {
	case TeamStatusOpen, TeamStatusPending, TeamStatusVoting, TeamStatusActive, TeamStatusLocked:
		return true
	}
	return false
}

// Team 小组表，对应 teams
// 成员数始终由 students.team_id 计数得出，不冗余存储
type Team struct {
	TeamID      string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"team_id"`
	Name        string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Description string  `gorm:"type:text;not null;default:''"                  json:"description"`
	Status      string  `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	Capacity    int     `gorm:"not null"                                       json:"capacity"`
	LeaderID    *string `gorm:"type:varchar(20)"                               json:"leader_id,omitempty"`
	MentorID    *string `gorm:"type:varchar(20)"                               json:"mentor_id,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Team) TableName() string { return "teams" }

// IsLeader 学生是否为该队组长
func (t *Team) IsLeader(studentID string) bool {
	return t.LeaderID != nil && *t.LeaderID == studentID
}

// HasMentor 是否已有导师
func (t *Team) HasMentor() bool { return t.MentorID != nil && *t.MentorID != "" }

// TeamVote 组长投票表，对应 team_votes，(team_id, voter_id) 唯一，重投覆盖
type TeamVote struct {
	TeamID      string `gorm:"type:uuid;primaryKey"        json:"team_id"`
	VoterID     string `gorm:"type:varchar(20);primaryKey" json:"voter_id"`
	CandidateID string `gorm:"type:varchar(20);not null"   json:"candidate_id"`
	BaseModel
}

// TableName 指定表名
func (TeamVote) TableName() string { return "team_votes" }

// TeamSummary 小组列表行（附成员数）
type TeamSummary struct {
	Team
	MemberCount int64 `json:"member_count"`
}

// VoteResult 投票明细（附投票人与候选人姓名）
type VoteResult struct {
	VoterID       string `json:"voter_id"`
	VoterName     string `json:"voter_name"`
	CandidateID   string `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
}
