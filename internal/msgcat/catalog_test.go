package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("commentary.suggestion", map[string]any{"Side": "Black", "Best": "Nf6"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Best reply for Black: Nf6." {
		t.Errorf("Render = %q", got)
	}
}

func TestRenderMissingFieldFails(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("commentary.suggestion", map[string]any{}); err == nil {
		t.Fatal("Render with missing field should fail")
	}
	if _, err := c.Render("commentary.nope", nil); err == nil || !strings.Contains(err.Error(), "template not found") {
		t.Fatalf("err = %v; want template not found", err)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.yaml", "commentary:\n  suggestion: \"Try {{.Best}}!\"\n")
	write("notes.txt", "ignored")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("commentary.suggestion", map[string]any{"Best": "e4"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Try e4!" {
		t.Errorf("Render = %q", got)
	}
	if !c.Has("commentary.played") {
		t.Error("embedded keys should survive overrides")
	}
}

func TestDuplicateOverrideKey(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("errors:\n  missing_fen: x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("err = %v; want duplicate key error", err)
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := flatten([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatal("numeric leaf should be rejected")
	}
}
