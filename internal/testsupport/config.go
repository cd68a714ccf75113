package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StorageDir = filepath.Join(base, "storage")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Seedbox.SSHHost = "seed.test"
	cfgVal.Seedbox.SSHKey = filepath.Join(base, "id_test")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStateless switches the ledger to its in-memory mode.
func WithStateless() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.Stateless = true
	}
}

// WithDryRun enables transfer dry-run mode on the test config.
func WithDryRun() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.DryRun = true
	}
}

// WithAPIToken sets the shared handoff credential on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithStubbedRsync writes a fake rsync executable that records its argument
// vector to argsFile (one invocation per line) and exits with the given code,
// then prepends it to PATH.
func WithStubbedRsync(argsFile string, exitCode int) ConfigOption {
	return func(b *configBuilder) {
		StubRsync(b.t, b.baseDir, argsFile, exitCode)
	}
}

// StubRsync installs a fake rsync on PATH for the duration of the test.
func StubRsync(t testing.TB, baseDir, argsFile string, exitCode int) {
	t.Helper()

	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" >> %q\n", argsFile)
	if exitCode != 0 {
		script += fmt.Sprintf("echo \"rsync: simulated failure\" >&2\nexit %d\n", exitCode)
	} else {
		script += "exit 0\n"
	}
	installRsyncStub(t, baseDir, script)
}

// StubSlowRsync installs a fake rsync that sleeps before touching markerFile,
// so tests can observe whether an invocation survived cancellation.
func StubSlowRsync(t testing.TB, baseDir, markerFile string, delay time.Duration) {
	t.Helper()

	script := fmt.Sprintf("#!/bin/sh\nsleep %.2f\ntouch %q\nexit 0\n", delay.Seconds(), markerFile)
	installRsyncStub(t, baseDir, script)
}

func installRsyncStub(t testing.TB, baseDir, script string) {
	t.Helper()

	binDir := filepath.Join(baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "rsync"), []byte(script), 0o755); err != nil {
		t.Fatalf("write rsync stub: %v", err)
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StorageDir)
}
