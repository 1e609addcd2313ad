package errors

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Kind 错误分类，对外稳定，调用方据此决定是否重试
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInvalidInput Kind = "invalid_input"
	KindTransient    Kind = "transient"
	KindInternal     Kind = "internal"
)

// Error 业务错误：Kind 用于分类，Code/Reason 供前端识别，Message 面向用户
type Error struct {
	Kind    Kind
	Code    int
	Reason  string
	Message string
	Err     error
}

// New 创建业务错误
func New(kind Kind, code int, reason, message string) *Error {
	return &Error{Kind: kind, Code: code, Reason: reason, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 按 Code 比较，WithMessage 派生出的错误仍与原哨兵相等
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage 复制错误并替换提示文案（如带上导师姓名）
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap 复制错误并挂上底层原因
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// ── 通用哨兵 ──

var (
	ErrUnauthorized = New(KindUnauthorized, 10002, "unauthorized", "未认证")
	ErrForbidden    = New(KindForbidden, 10003, "forbidden", "无权限访问")
	ErrNotFound     = New(KindNotFound, 10005, "not_found", "资源不存在")
	ErrInvalidInput = New(KindInvalidInput, 10001, "invalid_input", "请求参数错误")
	ErrTransient    = New(KindTransient, 50300, "transient", "系统繁忙，请稍后重试")
	ErrInternal     = New(KindInternal, 50000, "internal", "服务器内部错误")
)

// ── PostgreSQL 错误码 ──

const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
)

// IsUniqueViolation 是否为唯一约束冲突
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsTransient 是否为可重试的存储层错误：锁等待超时、序列化失败、死锁、连接中断、上下文超时
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

// KindOf 对任意错误归类
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if IsTransient(err) {
		return KindTransient
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// Classify 将存储层错误转换为业务错误，已是业务错误的原样返回
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch KindOf(err) {
	case KindTransient:
		return ErrTransient.Wrap(err)
	case KindNotFound:
		return ErrNotFound.Wrap(err)
	default:
		return ErrInternal.Wrap(err)
	}
}

// As 透传标准库 errors.As，避免调用方同时导入两个 errors 包
func As(err error, target any) bool { return errors.As(err, target) }

// Is 透传标准库 errors.Is
func Is(err, target error) bool { return errors.Is(err, target) }
