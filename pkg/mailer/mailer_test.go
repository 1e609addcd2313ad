package mailer

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/thtun0709/beswd/config"
)

func TestNew_FallsBackToLogMailer(t *testing.T) {
	m := New(config.MailConfig{}, zap.NewNop())
	if _, ok := m.(*LogMailer); !ok {
		t.Fatalf("未配置 SMTP 时期望 LogMailer，实际 %T", m)
	}
	if err := m.Send(context.Background(), "a@fpt.edu.vn", "Mã xác nhận", "12345"); err != nil {
		t.Errorf("LogMailer 不应返回错误: %v", err)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("no-reply@beswd.local", "a@fpt.edu.vn", "Reset", "code: 12345"))

	for _, want := range []string{"From: no-reply@beswd.local\r\n", "To: a@fpt.edu.vn\r\n", "Subject: Reset\r\n", "\r\n\r\ncode: 12345"} {
		if !strings.Contains(msg, want) {
			t.Errorf("邮件内容缺少 %q", want)
		}
	}
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	m := New(config.MailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "a@fpt.edu.vn", "s", "b"); err == nil {
		t.Error("已取消的上下文应直接返回错误")
	}
}
