package app

import (
	"os"
	"testing"

	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing with debug
// logging captured in the returned buffer.
func SetupAppTest(t *testing.T, cfg *Config, backends ...generator.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp, err := NewApp(logBuffer, cfg, backends...)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	t.Cleanup(func() {
		if os.Getenv("SANDFORGE_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
