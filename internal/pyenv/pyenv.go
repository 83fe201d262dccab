// Package pyenv resolves the Python interpreter the orchestrator runs under.
package pyenv

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNoInterpreter means no usable Python interpreter was found. This is a
// startup failure: it surfaces before any lock is attempted.
var ErrNoInterpreter = errors.New("no python interpreter found")

// Resolve returns the interpreter path for a project directory. Resolution
// order: explicit override, <project>/venv/bin/python3, <project>/.venv/bin/python3,
// then python3 from PATH.
func Resolve(projectDir, override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("configured python %s: %w", override, err)
		}
		return override, nil
	}

	candidates := []string{
		filepath.Join(projectDir, "venv", "bin", "python3"),
		filepath.Join(projectDir, ".venv", "bin", "python3"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	if path, err := exec.LookPath("python3"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%w: tried %s, %s and PATH", ErrNoInterpreter, candidates[0], candidates[1])
}
