package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCheckConfig(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123456:ABCDEFGHIJ")
	t.Setenv("TASKBOT_STORAGE_DATA_DIR", t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-config", "--log-level", "warn"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("check-config failed: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "config ok") || !strings.Contains(text, "log: level=warn") {
		t.Fatalf("unexpected output:\n%s", text)
	}
	if strings.Contains(text, "ABCDEF") {
		t.Fatalf("token leaked in output:\n%s", text)
	}
}

func TestCheckConfigMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TASKBOT_TELEGRAM_TOKEN", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"check-config"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without token")
	}
}

func TestExecuteReportsConfigError(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing token", env: map[string]string{"TELEGRAM_TOKEN": "", "TASKBOT_TELEGRAM_TOKEN": ""}, want: "TELEGRAM_TOKEN is required"},
		{name: "unknown driver", env: map[string]string{"TELEGRAM_TOKEN": "123456:ABCDEFGHIJ", "TASKBOT_STORAGE_DRIVER": "redis"}, want: `unknown storage driver "redis"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var stdout, stderr bytes.Buffer
			if code := execute([]string{"check-config"}, &stdout, &stderr); code != 1 {
				t.Fatalf("expected exit code 1, got %d", code)
			}
			if !strings.Contains(stderr.String(), tt.want) {
				t.Fatalf("stderr missing %q:\n%s", tt.want, stderr.String())
			}
			if strings.Contains(stdout.String(), "config ok") {
				t.Fatalf("unexpected success output:\n%s", stdout.String())
			}
		})
	}
}
