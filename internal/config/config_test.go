package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TRADEBOT_TEST_URL", "http://answers.internal:9000")

	got := ExpandEnvVars("url is ${TRADEBOT_TEST_URL}")
	if got != "url is http://answers.internal:9000" {
		t.Fatalf("got %q", got)
	}

	got = ExpandEnvVars("${TRADEBOT_TEST_MISSING:-http://localhost:8800}")
	if got != "http://localhost:8800" {
		t.Fatalf("default not applied: %q", got)
	}

	got = ExpandEnvVars("${TRADEBOT_TEST_MISSING}")
	if got != "${TRADEBOT_TEST_MISSING}" {
		t.Fatalf("unset var without default must stay literal: %q", got)
	}
}

func TestLoadAppliesEnvAndDefaults(t *testing.T) {
	t.Setenv("TRADEBOT_TEST_ANSWER", "http://answers.test/search")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{
		"inbox": {"pollMinSeconds": 12, "pollMaxSeconds": 20},
		"reply": {"answerServiceUrl": "${TRADEBOT_TEST_ANSWER}"}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reply.AnswerServiceURL != "http://answers.test/search" {
		t.Fatalf("answerServiceUrl = %q", cfg.Reply.AnswerServiceURL)
	}
	if cfg.Inbox.PollMinSeconds != 12 || cfg.Inbox.PollMaxSeconds != 20 {
		t.Fatalf("poll range not applied: %+v", cfg.Inbox)
	}
	// Untouched fields keep their defaults.
	if cfg.Inbox.IdleCyclesBeforeRefresh != 7 {
		t.Fatalf("idleCyclesBeforeRefresh = %d, want default 7", cfg.Inbox.IdleCyclesBeforeRefresh)
	}
	if cfg.Session.MaxRecoveryAttempts != 3 {
		t.Fatalf("maxRecoveryAttempts = %d, want default 3", cfg.Session.MaxRecoveryAttempts)
	}
}

func TestValidateRejectsBadRanges(t *testing.T) {
	cfg := Defaults()
	cfg.Inbox.PollMinSeconds = 15
	cfg.Inbox.PollMaxSeconds = 10
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for inverted poll range")
	}
	if !strings.Contains(err.Error(), "pollMinSeconds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCaptureNeedsWebhook(t *testing.T) {
	cfg := Defaults()
	cfg.Capture.Enabled = true
	cfg.Capture.WebhookURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error when capture lacks a webhook URL")
	}
}

func TestValidateRecoveryAttemptBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Session.MaxRecoveryAttempts = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for zero recovery attempts")
	}
	cfg.Session.MaxRecoveryAttempts = 11
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for oversized recovery budget")
	}
}

func TestGetSetByPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "browser.headless", "false"); err != nil {
		t.Fatalf("SetByPath: %v", err)
	}
	if cfg.Browser.Headless {
		t.Fatal("headless not updated")
	}

	val, err := GetByPath(cfg, "inbox.pollMinSeconds")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if n, ok := val.(float64); !ok || n != 10 {
		t.Fatalf("pollMinSeconds = %v (%T)", val, val)
	}

	if _, err := GetByPath(cfg, "no.such.key"); err == nil {
		t.Fatal("expected error for unknown path")
	}
}

func TestSanitizeMasksToken(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.Token = "123456:secret-token-value"
	s := Sanitize(cfg)
	if s.Notify.Token == cfg.Notify.Token {
		t.Fatal("token was not masked")
	}
	if cfg.Notify.Token != "123456:secret-token-value" {
		t.Fatal("sanitize must not mutate the original config")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	got := ExpandPath("~/x/y")
	if got != filepath.Join(home, "x/y") {
		t.Fatalf("got %q", got)
	}
	if ExpandPath("/abs/path") != "/abs/path" {
		t.Fatal("absolute paths must pass through")
	}
}
