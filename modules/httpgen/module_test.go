package httpgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/particle"
	"github.com/specialistvlad/sandforge/internal/testutil"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":        req.Name,
			"color":       []int{255, 60, 30},
			"action_code": "doGravity(x, y, i);",
		})
	}))
	defer srv.Close()

	c, err := New(generator.Options{URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	d, err := c.Generate(context.Background(), "tnt")
	require.NoError(t, err)
	assert.Equal(t, "TNT", d.Name)
	assert.Equal(t, particle.Color{255, 60, 30}, d.Color)
}

func TestGenerateFailures(t *testing.T) {
	t.Parallel()

	t.Run("non-success status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()
		c, err := New(generator.Options{URL: srv.URL})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "X")
		var genErr *particle.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "response", genErr.Op)
		assert.ErrorContains(t, err, "quota exceeded")
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"name": "X", "color": [1, 2]`))
		}))
		defer srv.Close()
		c, err := New(generator.Options{URL: srv.URL})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "X")
		var genErr *particle.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "decode", genErr.Op)
	})

	t.Run("transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c, err := New(generator.Options{URL: url, Timeout: time.Second})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "X")
		var genErr *particle.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "request", genErr.Op)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := New(generator.Options{})
		assert.Error(t, err)
	})
}

func TestBreakerOpens(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	logger, logs := testutil.NewLogger()
	c, err := New(generator.Options{URL: srv.URL, Logger: logger})
	require.NoError(t, err)
	ctx := context.Background()

	for range tripAfter {
		_, err := c.Generate(ctx, "X")
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, c.State())

	_, err = c.Generate(ctx, "X")
	var genErr *particle.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "circuit", genErr.Op)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(tripAfter), hits.Load())
	testutil.AssertLogContains(t, logs, "Generator circuit breaker changed state.", "backend=http", "to=open")
}

func TestModuleRegisters(t *testing.T) {
	b := generator.NewBackends().Install(Module{})
	assert.Equal(t, []string{Kind}, b.Kinds())
	_, err := b.New(context.Background(), Kind, generator.Options{URL: "http://127.0.0.1:1"})
	assert.NoError(t, err)
}
