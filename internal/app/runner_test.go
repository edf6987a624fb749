package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/version"
)

func TestVersionCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	if code := r.Run([]string{"version"}); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != version.Version {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestVersionLongIncludesCommit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	if code := r.Run([]string{"version", "--long"}); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(stdout.String(), "commit:") {
		t.Fatalf("missing build metadata in %q", stdout.String())
	}
}

func TestServeFailsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("WALLET_ENCRYPTION_KEY", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	r := NewRunnerWithWriters(&stdout, &stderr)
	if code := r.Run([]string{"serve"}); code != 2 {
		t.Fatalf("expected configuration exit code 2, got %d (stderr: %s)", code, stderr.String())
	}
}
