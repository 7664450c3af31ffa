package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixture = `
- name: glitter
  color: [10, 200, 120]
  action_code: |
    if (random() < 0.5) { doGravity(x, y, i); } else { doRise(x, y, i); }
`

func TestRun_StartupError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A rules file with a syntax error fails while the app is constructed.
	tempDir := t.TempDir()
	rulesPath := filepath.Join(tempDir, "rules.hcl")
	require.NoError(t, os.WriteFile(rulesPath, []byte("thresholds {\n"), 0o600))
	particlesPath := filepath.Join(tempDir, "particles.yaml")
	require.NoError(t, os.WriteFile(particlesPath, []byte(fixture), 0o600))
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, []string{"-rules", rulesPath, particlesPath})

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "application startup failed")
	require.Contains(t, err.Error(), "failed to parse rules file")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_Simulates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	particlesPath := filepath.Join(dir, "particles.yaml")
	require.NoError(t, os.WriteFile(particlesPath, []byte(fixture), 0o600))
	telemetry := filepath.Join(dir, "telemetry.csv")
	out := &bytes.Buffer{}

	err := run(context.Background(), out, []string{"-ticks", "5", "-width", "16", "-height", "16", "-telemetry", telemetry, particlesPath})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Simulation finished.")
	require.FileExists(t, telemetry)
}
