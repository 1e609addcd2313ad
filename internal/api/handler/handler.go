package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thtun0709/beswd/internal/service"
	apperr "github.com/thtun0709/beswd/pkg/errors"
	"github.com/thtun0709/beswd/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Student    *StudentHandler
	Lecturer   *LecturerHandler
	Team       *TeamHandler
	Vote       *VoteHandler
	Mentorship *MentorshipHandler
	Post       *PostHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, secureCookie bool) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth, secureCookie),
		Student:    NewStudentHandler(svc.Student),
		Lecturer:   NewLecturerHandler(svc.Lecturer),
		Team:       NewTeamHandler(svc.Team),
		Vote:       NewVoteHandler(svc.Vote),
		Mentorship: NewMentorshipHandler(svc.Mentorship),
		Post:       NewPostHandler(svc.Post),
		Export:     NewExportHandler(svc.Export),
	}
}

// handleError 按错误分类映射 HTTP 状态码；transient 返回 503，客户端可重试
func handleError(c *gin.Context, err error) {
	var e *apperr.Error
	if !errors.As(apperr.Classify(err), &e) {
		response.InternalError(c)
		return
	}
	response.ErrorKind(c, statusOf(e.Kind), e.Code, string(e.Kind), e.Message)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// bindFailed 参数校验失败的统一响应，details 带上绑定器给出的原因
func bindFailed(c *gin.Context, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, string(apperr.KindInvalidInput), "参数校验失败", details)
}
