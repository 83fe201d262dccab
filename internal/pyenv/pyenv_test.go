package pyenv

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFakePython(t *testing.T, dir string) string {
	t.Helper()
	binDir := filepath.Join(dir, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(binDir, "python3")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestResolvePrefersProjectVenv(t *testing.T) {
	project := t.TempDir()
	venv := writeFakePython(t, filepath.Join(project, "venv"))
	writeFakePython(t, filepath.Join(project, ".venv"))

	got, err := Resolve(project, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != venv {
		t.Errorf("Resolve = %q, want venv interpreter %q", got, venv)
	}
}

func TestResolveFallsBackToDotVenv(t *testing.T) {
	project := t.TempDir()
	dotVenv := writeFakePython(t, filepath.Join(project, ".venv"))

	got, err := Resolve(project, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != dotVenv {
		t.Errorf("Resolve = %q, want .venv interpreter %q", got, dotVenv)
	}
}

func TestResolveOverrideWins(t *testing.T) {
	project := t.TempDir()
	writeFakePython(t, filepath.Join(project, "venv"))
	override := writeFakePython(t, filepath.Join(t.TempDir(), "custom"))

	got, err := Resolve(project, override)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != override {
		t.Errorf("Resolve = %q, want override %q", got, override)
	}
}

func TestResolveMissingOverrideFails(t *testing.T) {
	project := t.TempDir()
	writeFakePython(t, filepath.Join(project, "venv"))

	if _, err := Resolve(project, filepath.Join(project, "nope", "python3")); err == nil {
		t.Error("Resolve succeeded with a missing override")
	}
}

func TestResolveSystemFallback(t *testing.T) {
	// Empty project dir: resolution falls through to PATH. The test host may
	// or may not carry python3 — assert consistency, not presence.
	project := t.TempDir()

	got, err := Resolve(project, "")
	if err != nil {
		if got != "" {
			t.Errorf("Resolve returned path %q alongside error %v", got, err)
		}
		return
	}
	if got == "" {
		t.Error("Resolve returned empty path without error")
	}
}
