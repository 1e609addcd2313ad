package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/service"
	"github.com/thtun0709/beswd/pkg/response"
)

// TeamHandler 小组模块 HTTP 处理器
type TeamHandler struct {
	teamSvc service.TeamService
}

// NewTeamHandler 创建 TeamHandler
func NewTeamHandler(teamSvc service.TeamService) *TeamHandler {
	return &TeamHandler{teamSvc: teamSvc}
}

// ListTeams 小组列表
// GET /api/v1/teams
func (h *TeamHandler) ListTeams(c *gin.Context) {
	teams, err := h.teamSvc.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": teams})
}

// GetTeam 小组详情（含成员）
// GET /api/v1/teams/:id
func (h *TeamHandler) GetTeam(c *gin.Context) {
	team, err := h.teamSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, team)
}

// CreateTeam 创建小组，创建者自动加入并成为组长
// POST /api/v1/teams
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	var req dto.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	team, err := h.teamSvc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, team)
}

// JoinTeam 加入小组
// POST /api/v1/teams/:id/join
func (h *TeamHandler) JoinTeam(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	team, err := h.teamSvc.Join(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, team)
}

// LeaveTeam 退出小组
// POST /api/v1/teams/:id/leave
func (h *TeamHandler) LeaveTeam(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	if err := h.teamSvc.Leave(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// UpdateTeam 修改小组（管理员）
// PUT /api/v1/teams/:id
func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	var req dto.UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	team, err := h.teamSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, team)
}

// SetTeamStatus 锁定/解锁小组（管理员）
// PUT /api/v1/teams/:id/status
func (h *TeamHandler) SetTeamStatus(c *gin.Context) {
	var req dto.SetTeamStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	team, err := h.teamSvc.SetStatus(c.Request.Context(), p, c.Param("id"), req.Status)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, team)
}

// DeleteTeam 解散小组（管理员）
// DELETE /api/v1/teams/:id
func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	if err := h.teamSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ═══════════════════════════════════════════════════════════
// 投票
// ═══════════════════════════════════════════════════════════

// VoteHandler 组长选举 HTTP 处理器
type VoteHandler struct {
	voteSvc service.VoteService
}

// NewVoteHandler 创建 VoteHandler
func NewVoteHandler(voteSvc service.VoteService) *VoteHandler {
	return &VoteHandler{voteSvc: voteSvc}
}

// CastVote 投票，过半数即当选
// POST /api/v1/teams/:id/votes
func (h *VoteHandler) CastVote(c *gin.Context) {
	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	result, err := h.voteSvc.Vote(c.Request.Context(), p, c.Param("id"), req.CandidateID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// ListVotes 投票明细（本队成员与管理员可见）
// GET /api/v1/teams/:id/votes
func (h *VoteHandler) ListVotes(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	items, err := h.voteSvc.Results(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}
