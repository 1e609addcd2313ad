package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/thtun0709/beswd/config"
)

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer 基于 SMTP 的实现
type SMTPMailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// New 按配置返回邮件实现，未配置 SMTP 主机时仅打日志
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if !cfg.Enabled() {
		return &LogMailer{logger: logger}
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	}

	msg := buildMessage(m.cfg.From, to, subject, body)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	m.logger.Info("邮件已发送", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// LogMailer 开发环境占位实现
type LogMailer struct {
	logger *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	m.logger.Warn("SMTP 未配置，邮件未发送", zap.String("to", to), zap.String("subject", subject))
	return nil
}
