package health

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/felixgeelhaar/gitpipe/internal/config"
	"github.com/felixgeelhaar/gitpipe/internal/executor"
)

// fakeGit writes a script answering --version with version and rev-parse
// with inside.
func fakeGit(t *testing.T, version, inside string) *executor.Executor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	path := filepath.Join(t.TempDir(), "git")
	script := "#!/bin/sh\ncase \"$1\" in\n--version) echo \"git version " + version + "\" ;;\nrev-parse) echo " + inside + " ;;\nesac\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Binary = []string{path}
	cfg.BaseDir = t.TempDir()
	e, err := executor.New(cfg)
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	return e
}

func TestGitCheckerName(t *testing.T) {
	if name := NewGitChecker(nil, "").Name(); name != "git-binary" {
		t.Errorf("Name() = %q, want %q", name, "git-binary")
	}
	if name := NewRepoChecker(nil).Name(); name != "base-repository" {
		t.Errorf("Name() = %q, want %q", name, "base-repository")
	}
}

func TestGitCheckerCheck(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    Status
	}{
		{"recent", "2.43.0", StatusHealthy},
		{"exact minimum", "2.20.0", StatusHealthy},
		{"old", "1.9.5", StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewGitChecker(fakeGit(t, tt.version, "true"), "2.20").Check(context.Background())
			if result.Status != tt.want {
				t.Errorf("Status = %v (%s), want %v", result.Status, result.Message, tt.want)
			}
			if result.Details["version"] != tt.version {
				t.Errorf("Details[version] = %v, want %s", result.Details["version"], tt.version)
			}
		})
	}
}

func TestGitCheckerMissingBinary(t *testing.T) {
	cfg := config.Default()
	cfg.Binary = []string{filepath.Join(t.TempDir(), "git")}
	e, err := executor.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	result := NewGitChecker(e, "2.20").Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want %v", result.Status, StatusUnhealthy)
	}
}

func TestRepoCheckerCheck(t *testing.T) {
	if got := NewRepoChecker(fakeGit(t, "2.43.0", "true")).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("inside work tree: Status = %v, want %v", got.Status, StatusHealthy)
	}
	if got := NewRepoChecker(fakeGit(t, "2.43.0", "false")).Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("outside work tree: Status = %v, want %v", got.Status, StatusDegraded)
	}
}

func TestConfigChecker(t *testing.T) {
	cfg := config.Default()
	if got := NewConfigChecker(cfg).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("defaults: Status = %v, want %v", got.Status, StatusHealthy)
	}

	unsafe := config.Default()
	unsafe.Unsafe.AllowUnsafePack = true
	got := NewConfigChecker(unsafe).Check(context.Background())
	if got.Status != StatusDegraded {
		t.Errorf("unsafe: Status = %v, want %v", got.Status, StatusDegraded)
	}
	if names, _ := got.Details["unsafe"].([]string); len(names) != 1 || names[0] != "allow_unsafe_pack" {
		t.Errorf("Details[unsafe] = %v", got.Details["unsafe"])
	}

	invalid := config.Default()
	invalid.MaxConcurrentProcesses = 0
	if got := NewConfigChecker(invalid).Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("invalid: Status = %v, want %v", got.Status, StatusUnhealthy)
	}
}
