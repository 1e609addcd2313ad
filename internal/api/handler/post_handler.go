package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/service"
	"github.com/thtun0709/beswd/pkg/response"
)

// PostHandler 帖子模块 HTTP 处理器
type PostHandler struct {
	postSvc service.PostService
}

// NewPostHandler 创建 PostHandler
func NewPostHandler(postSvc service.PostService) *PostHandler {
	return &PostHandler{postSvc: postSvc}
}

// ListPosts 帖子列表
// GET /api/v1/posts
func (h *PostHandler) ListPosts(c *gin.Context) {
	var req dto.PostListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err)
		return
	}

	posts, total, err := h.postSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, posts, total, req.GetPage(), req.GetPageSize())
}

// GetPost 帖子详情（含评论）
// GET /api/v1/posts/:id
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.postSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, post)
}

// CreatePost 发帖
// POST /api/v1/posts
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	post, err := h.postSvc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, post)
}

// UpdatePost 修改帖子（作者或管理员）
// PUT /api/v1/posts/:id
func (h *PostHandler) UpdatePost(c *gin.Context) {
	var req dto.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	post, err := h.postSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, post)
}

// DeletePost 删除帖子（作者或管理员）
// DELETE /api/v1/posts/:id
func (h *PostHandler) DeletePost(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	if err := h.postSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// AddComment 发表评论
// POST /api/v1/posts/:id/comments
func (h *PostHandler) AddComment(c *gin.Context) {
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	comment, err := h.postSvc.AddComment(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, comment)
}

// DeleteComment 删除评论（作者或管理员）
// DELETE /api/v1/comments/:id
func (h *PostHandler) DeleteComment(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	if err := h.postSvc.DeleteComment(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}
