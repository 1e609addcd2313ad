package model

// Student 学生表，对应 students
// Role 只存 student/admin；leader 由 Team.LeaderID 推导，不落库
type Student struct {
	StudentID    string  `gorm:"type:varchar(20);primaryKey"               json:"student_id"`
	Name         string  `gorm:"type:varchar(100);not null"                json:"name"`
	Email        string  `gorm:"type:varchar(255);not null"                json:"email"`
	PasswordHash string  `gorm:"type:varchar(255);not null"                json:"-"`
	Role         string  `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	TeamID       *string `gorm:"type:uuid"                                 json:"team_id,omitempty"`
	Major        string  `gorm:"type:varchar(10);not null;default:''"      json:"major"`
	Cohort       string  `gorm:"type:varchar(10);not null;default:''"      json:"cohort"`
	BaseModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }

// InTeam 是否属于指定小组
func (s *Student) InTeam(teamID string) bool {
	return s.TeamID != nil && *s.TeamID == teamID
}

// Lecturer 讲师表，对应 lecturers
type Lecturer struct {
	LecturerID   string `gorm:"type:varchar(20);primaryKey"          json:"lecturer_id"`
	Name         string `gorm:"type:varchar(100);not null"           json:"name"`
	Email        string `gorm:"type:varchar(255);not null"           json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"           json:"-"`
	Department   string `gorm:"type:varchar(100);not null;default:''" json:"department"`
	BaseModel
}

// TableName 指定表名
func (Lecturer) TableName() string { return "lecturers" }
