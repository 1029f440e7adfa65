package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI provides a clean interface for running gstack sessions in tests.
// It manages a temp directory used as working directory and HOME.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI creates a new test CLI with a temp directory.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	dir := t.TempDir()

	return &CLI{
		t:   t,
		Dir: dir,
		Env: map[string]string{"HOME": dir},
	}
}

// Run feeds script to a session started with args and returns stdout,
// stderr, and exit code. Args should not include "gstack" or "--cwd" - those
// are added automatically.
func (r *CLI) Run(script string, args ...string) (string, string, int) {
	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"gstack", "--cwd", r.Dir}, args...)
	code := Run(strings.NewReader(script), &outBuf, &errBuf, fullArgs, r.Env, nil)

	return outBuf.String(), errBuf.String(), code
}

// MustRun runs the session and fails the test on a non-zero exit code.
// Returns stdout.
func (r *CLI) MustRun(script string, args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.Run(script, args...)
	if code != 0 {
		r.t.Fatalf("session %q %v failed with exit code %d\nstderr: %s", script, args, code, stderr)
	}

	return stdout
}

// MustFail runs the session and fails the test if it succeeds. Returns
// stdout and stderr.
func (r *CLI) MustFail(script string, args ...string) (string, string) {
	r.t.Helper()

	stdout, stderr, code := r.Run(script, args...)
	if code == 0 {
		r.t.Fatalf("session %q %v should have failed but succeeded\nstdout: %s", script, args, stdout)
	}

	return stdout, stderr
}

// WriteFile writes content to a file relative to Dir.
func (r *CLI) WriteFile(name, content string) string {
	r.t.Helper()

	path := filepath.Join(r.Dir, name)

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		r.t.Fatalf("mkdir for %s: %v", name, err)
	}

	err = os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		r.t.Fatalf("failed to write %s: %v", name, err)
	}

	return path
}

// ReadFile reads a file relative to Dir.
func (r *CLI) ReadFile(name string) string {
	r.t.Helper()

	content, err := os.ReadFile(filepath.Join(r.Dir, name))
	if err != nil {
		r.t.Fatalf("failed to read %s: %v", name, err)
	}

	return string(content)
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
