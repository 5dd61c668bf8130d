package reply

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewCannedLoadsTemplateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replies.yaml")
	content := "replies:\n  - \"Thanks, we'll reply soon.\"\n  - \"  \"\n  - \"Our team is on it.\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCanned(path, nil)
	if len(c.Templates()) != 2 {
		t.Fatalf("templates = %d, want 2 (blank entries dropped)", len(c.Templates()))
	}
}

func TestNewCannedBadFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replies.yaml")
	if err := os.WriteFile(path, []byte("replies: {not valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCanned(path, nil)
	if len(c.Templates()) != len(builtinTemplates) {
		t.Fatalf("expected built-in fallback, got %d templates", len(c.Templates()))
	}
}

func TestNewCannedEmptyFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replies.yaml")
	if err := os.WriteFile(path, []byte("replies: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCanned(path, nil)
	if len(c.Templates()) == 0 {
		t.Fatal("template list must never be empty")
	}
}
