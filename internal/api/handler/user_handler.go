package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/service"
	"github.com/thtun0709/beswd/pkg/response"
)

// ═══════════════════════════════════════════════════════════
// 学生
// ═══════════════════════════════════════════════════════════

// StudentHandler 学生模块 HTTP 处理器
type StudentHandler struct {
	studentSvc service.StudentService
}

// NewStudentHandler 创建 StudentHandler
func NewStudentHandler(studentSvc service.StudentService) *StudentHandler {
	return &StudentHandler{studentSvc: studentSvc}
}

// GetStudent 获取学生信息
// GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	student, err := h.studentSvc.GetByID(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, student)
}

// UpdateProfile 学生修改自己的资料
// PUT /api/v1/students/me
func (h *StudentHandler) UpdateProfile(c *gin.Context) {
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	student, err := h.studentSvc.UpdateProfile(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, student)
}

// ListStudents 学生列表（管理员）
// GET /api/v1/students
func (h *StudentHandler) ListStudents(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	students, total, err := h.studentSvc.List(c.Request.Context(), p, &page)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OKPage(c, students, total, page.GetPage(), page.GetPageSize())
}

// ═══════════════════════════════════════════════════════════
// 讲师
// ═══════════════════════════════════════════════════════════

// LecturerHandler 讲师管理 HTTP 处理器
type LecturerHandler struct {
	lecturerSvc service.LecturerService
}

// NewLecturerHandler 创建 LecturerHandler
func NewLecturerHandler(lecturerSvc service.LecturerService) *LecturerHandler {
	return &LecturerHandler{lecturerSvc: lecturerSvc}
}

// CreateLecturer 新增讲师（管理员）
// POST /api/v1/lecturers
func (h *LecturerHandler) CreateLecturer(c *gin.Context) {
	var req dto.CreateLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	lecturer, err := h.lecturerSvc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, lecturer)
}

// GetLecturer 获取讲师详情
// GET /api/v1/lecturers/:id
func (h *LecturerHandler) GetLecturer(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	lecturer, err := h.lecturerSvc.GetByID(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, lecturer)
}

// UpdateLecturer 修改讲师（管理员）
// PUT /api/v1/lecturers/:id
func (h *LecturerHandler) UpdateLecturer(c *gin.Context) {
	var req dto.UpdateLecturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}

	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	lecturer, err := h.lecturerSvc.Update(c.Request.Context(), p, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, lecturer)
}

// DeleteLecturer 删除讲师（管理员）
// DELETE /api/v1/lecturers/:id
func (h *LecturerHandler) DeleteLecturer(c *gin.Context) {
	p, ok := MustGetPrincipal(c)
	if !ok {
		return
	}

	if err := h.lecturerSvc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}
