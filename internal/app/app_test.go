package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/particle"
	"github.com/specialistvlad/sandforge/internal/registry"
	"github.com/specialistvlad/sandforge/internal/testutil"
	"github.com/specialistvlad/sandforge/modules/filegen"
)

const fixtureYAML = `
particles:
  - name: TNT
    color: [255, 60, 30]
    behavior: explodes when it touches fire
    action_code: |
      if (horizontallyAdjacent(x, y, FIRE) || belowAdjacent(x, y, FIRE)) {
        grid[i] = FIRE;
        grid[i + 1] = FIRE;
      } else {
        doGravity(x, y, i, true, 1);
      }
  - name: CLOUD
    color: [230, 230, 250]
    action_code: doGravity(x, y, i);
  - name: BAD
    color: [40, 150, 90]
    action_code: |
      if (x > ) { grid[i] = SAND; } else { doGravity(x, y, i); }
`

func writeFixtures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "particles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o644))
	return path
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ParticlesPath = writeFixtures(t)
	cfg.Width, cfg.Height = 32, 24
	cfg.Ticks = 20
	cfg.GeneratorTimeout = 5 * time.Second
	return &cfg
}

func TestNewConfig(t *testing.T) {
	t.Parallel()
	valid := DefaultConfig()
	valid.ParticlesPath = "particles.yaml"
	_, err := NewConfig(valid)
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"missing fixtures": func(c *Config) { c.ParticlesPath = "" },
		"http without url": func(c *Config) { c.Backend = BackendHTTP },
		"unknown backend":  func(c *Config) { c.Backend = "carrier-pigeon" },
		"zero width":       func(c *Config) { c.Width = 0 },
		"negative ticks":   func(c *Config) { c.Ticks = -1 },
		"negative tps":     func(c *Config) { c.TPS = -1 },
		"bad level":        func(c *Config) { c.LogLevel = "loud" },
		"bad format":       func(c *Config) { c.LogFormat = "xml" },
		"bad port":         func(c *Config) { c.HealthcheckPort = 70000 },
		"negative slow":    func(c *Config) { c.SlowThreshold = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			_, err := NewConfig(cfg)
			assert.Error(t, err)
		})
	}

	socket := valid
	socket.Backend = BackendSocketIO
	socket.GeneratorURL = "http://localhost:3000"
	_, err = NewConfig(socket)
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("whatever"))
}

func TestRunWithFixtures(t *testing.T) {
	// --- Arrange ---
	cfg := testConfig(t)
	cfg.TelemetryPath = filepath.Join(t.TempDir(), "telemetry.csv")
	a, logs := SetupAppTest(t, cfg)

	// --- Act ---
	err := a.Run(context.Background(), nil)

	// --- Assert ---
	require.Error(t, err)
	var regErr *particle.RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "BAD", regErr.Name)

	reg := a.Registry()
	assert.Equal(t, 2, reg.Len())
	tntID, ok := reg.Lookup("TNT")
	require.True(t, ok)
	cloudID, ok := reg.Lookup("CLOUD")
	require.True(t, ok)
	assert.ElementsMatch(t, []uint32{1000, 1001}, []uint32{tntID, cloudID})

	tnt, _ := reg.Entry(tntID)
	assert.Equal(t, particle.Color{215, 120, 150}, tnt.Color)

	csv, err := os.ReadFile(cfg.TelemetryPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csv), "name,calls,"))

	testutil.AssertLogContains(t, logs, "Simulation finished.", "ticks=20", "particles=2")
	testutil.AssertLogContains(t, logs, "Particle summary.", "name=TNT")
	testutil.AssertLogContains(t, logs, "Telemetry written.")
}

func TestRunRegistersFixturesBeforeFirstTick(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ticks = 0
	a, logs := SetupAppTest(t, cfg)

	err := a.Run(context.Background(), nil)

	require.Error(t, err)
	assert.ErrorContains(t, err, "particle 2")
	assert.Equal(t, 2, a.Registry().Len())
	assert.Zero(t, a.World().Tick())
	counts := a.World().Counts()
	painted := 0
	for _, e := range a.Registry().Entries() {
		painted += counts[e.ColorID]
	}
	assert.Positive(t, painted, "fixtures are painted before the first tick")
	testutil.AssertLogContains(t, logs, "Some particles failed to register.", "failed=1", "registered=2")
	assert.Zero(t, a.Pipeline().Pending())
}

func TestRunExplicitNames(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ticks = 3
	a, _ := SetupAppTest(t, cfg)

	err := a.Run(context.Background(), []string{"cloud", "unobtainium"})

	require.Error(t, err)
	assert.ErrorIs(t, err, filegen.ErrNotFound)
	assert.ErrorContains(t, err, "unobtainium")
	assert.Equal(t, 1, a.Registry().Len())
	assert.Equal(t, uint32(3), a.World().Tick())
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ticks = 1_000_000
	cfg.TPS = 1000
	a, logs := SetupAppTest(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = a.Run(ctx, []string{"TNT"})

	assert.Less(t, a.World().Tick(), uint32(1_000_000))
	testutil.AssertLogContains(t, logs, "Simulation interrupted.")
	_, ok := a.Registry().Lookup("TNT")
	assert.True(t, ok, "in-flight registrations still complete")
}

type fakeModule struct{ gen *testutil.FakeGenerator }

func (m fakeModule) Register(b *generator.Backends) {
	b.RegisterBackend(BackendFile, func(context.Context, generator.Options) (generator.Generator, error) {
		return m.gen, nil
	})
}

func TestQueryEndpoints(t *testing.T) {
	gen := testutil.NewFakeGenerator(particle.Description{
		Name:       "GLITTER",
		Color:      particle.Color{10, 200, 120},
		Behavior:   "sparkles",
		ActionCode: `if (random() < 0.5) { doGravity(x, y, i); } else { doRise(x, y, i); }`,
	})
	cfg := testConfig(t)
	a, _ := SetupAppTest(t, cfg, fakeModule{gen})
	_, err := a.Pipeline().Generate(context.Background(), "glitter")
	require.NoError(t, err)

	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("particles", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/particles")
		require.NoError(t, err)
		defer resp.Body.Close()
		var entries []registry.Entry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "GLITTER", entries[0].Name)
		assert.Equal(t, uint32(1000), entries[0].ColorID)
		assert.Equal(t, "sparkles", entries[0].Description.Behavior)
	})

	t.Run("telemetry csv", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/telemetry?format=csv")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	})
}

func TestNewAppErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.RulesPath = filepath.Join(t.TempDir(), "missing.hcl")
	_, err := NewApp(&testutil.SafeBuffer{}, cfg)
	assert.ErrorContains(t, err, "failed to load rules")

	cfg = testConfig(t)
	cfg.ParticlesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewApp(&testutil.SafeBuffer{}, cfg)
	assert.ErrorContains(t, err, "failed to create file generator")
}

func TestSlowThresholdOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.SlowThreshold = 42 * time.Millisecond
	a, _ := SetupAppTest(t, cfg)
	assert.Equal(t, 42*time.Millisecond, a.rules.Thresholds.SlowThreshold)
}
