package email

import (
	"strings"
	"testing"

	"go-storefront/config"
)

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("Shop", "shop@example.ir", "admin@example.ir", "سفارش جدید", "body"))

	if !strings.Contains(msg, "From: Shop <shop@example.ir>\r\n") {
		t.Errorf("unexpected From header in %q", msg)
	}
	if !strings.Contains(msg, "Subject: =?utf-8?q?") {
		t.Errorf("expected encoded subject in %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody") {
		t.Errorf("expected body after headers in %q", msg)
	}
}

func TestSendEmailRequiresSettings(t *testing.T) {
	s := NewSender(config.SMTP{})
	if err := s.SendEmail("admin@example.ir", "s", "b"); err == nil {
		t.Error("expected an error without SMTP settings")
	}
}
