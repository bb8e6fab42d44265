package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	data := PasswordResetData{
		AppName:  "Noteboard",
		UserName: "Avery",
		ResetURL: "https://example.com/reset?token=abc123",
	}

	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Noteboard") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Avery") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/reset?token=abc123") {
		t.Error("template should contain reset URL")
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendPasswordResetEmail("to@example.com", "Avery", "https://example.com/reset"); err == nil {
		t.Error("expected error when sending without configuration")
	}
}
