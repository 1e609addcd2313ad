package model

// Post 帖子表，对应 posts
type Post struct {
	PostID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"post_id"`
	AuthorID   string `gorm:"type:varchar(20);not null"                      json:"author_id"`
	AuthorRole string `gorm:"type:varchar(20);not null"                      json:"author_role"`
	Title      string `gorm:"type:varchar(200);not null"                     json:"title"`
	Content    string `gorm:"type:text;not null"                             json:"content"`
	BaseModel

	Comments []Comment `gorm:"foreignKey:PostID;references:PostID" json:"comments,omitempty"`
}

// TableName 指定表名
func (Post) TableName() string { return "posts" }

// Comment 评论表，对应 comments
type Comment struct {
	CommentID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"comment_id"`
	PostID     string `gorm:"type:uuid;not null"                             json:"post_id"`
	AuthorID   string `gorm:"type:varchar(20);not null"                      json:"author_id"`
	AuthorRole string `gorm:"type:varchar(20);not null"                      json:"author_role"`
	Content    string `gorm:"type:text;not null"                             json:"content"`
	BaseModel
}

// TableName 指定表名
func (Comment) TableName() string { return "comments" }
