package dto

// ── 帖子 / 评论 DTO ──

// CreatePostRequest 发帖
type CreatePostRequest struct {
	Title   string `json:"title"   binding:"required,min=1,max=200"`
	Content string `json:"content" binding:"required,min=1,max=20000"`
}

// UpdatePostRequest 修改帖子
type UpdatePostRequest struct {
	Title   *string `json:"title"   binding:"omitempty,min=1,max=200"`
	Content *string `json:"content" binding:"omitempty,min=1,max=20000"`
}

// CreateCommentRequest 评论
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=5000"`
}

// PostListRequest 帖子列表
type PostListRequest struct {
	PaginationRequest
}
