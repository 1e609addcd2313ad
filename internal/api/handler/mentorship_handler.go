package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/service"
	"github.com/thtun0709/beswd/pkg/response"
)

// MentorshipHandler 导师申请 HTTP 处理器
type MentorshipHandler struct {
	mentorshipSvc service.MentorshipService
}

// NewMentorshipHandler 创建 MentorshipHandler
func NewMentorshipHandler(mentorshipSvc service.MentorshipService) *MentorshipHandler {
	return &MentorshipHandler{mentorshipSvc: mentorshipSvc}
}

// SendRequest 组长向讲师发出申请
// POST /api/v1/teams/:id/mentorship-requests
func (h *MentorshipHandler) SendRequest(c *gin.Context) {
	var req dto.SendMentorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	result, err := h.mentorshipSvc.Send(c.Request.Context(), p, c.Param("id"), req.LecturerID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, result)
}

// ListTeamRequests 本队申请记录
// GET /api/v1/teams/:id/mentorship-requests
func (h *MentorshipHandler) ListTeamRequests(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.mentorshipSvc.ListForTeam(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// ListMyRequests 讲师收到的申请
// GET /api/v1/mentorship-requests
func (h *MentorshipHandler) ListMyRequests(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.mentorshipSvc.ListForLecturer(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// RespondRequest 讲师接受或拒绝
// PATCH /api/v1/mentorship-requests/:id
func (h *MentorshipHandler) RespondRequest(c *gin.Context) {
	var req dto.RespondMentorshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	result, err := h.mentorshipSvc.Respond(c.Request.Context(), p, c.Param("id"), req.Action)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// ListLecturers 可申请的讲师列表
// GET /api/v1/lecturers
func (h *MentorshipHandler) ListLecturers(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	list, err := h.mentorshipSvc.ListLecturers(c.Request.Context(), p)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}
