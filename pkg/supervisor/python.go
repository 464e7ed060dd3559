package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ResolveInterpreter picks the Python executable that will host the worker.
// Deterministic search order: the bundled runtime shipped with a packaged
// build when present, then python3 from PATH, then python. The packaged app
// ships its own runtime so end users never need a system Python.
func ResolveInterpreter(bundledDir string) (string, error) {
	if bundledDir != "" {
		candidate := bundledInterpreterPath(bundledDir)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", errors.New("no python interpreter found: install python3 or set worker.python_path")
}

// bundledInterpreterPath returns the interpreter location inside a bundled
// runtime directory for the current platform.
func bundledInterpreterPath(dir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, "python.exe")
	}
	return filepath.Join(dir, "bin", "python3")
}
