// Package httpgen asks a remote HTTP service to describe particles. Requests
// go through a circuit breaker so a failing service is not hammered while
// the simulation keeps submitting names.
package httpgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/particle"
)

// Kind is the backend name.
const Kind = "http"

const (
	// tripAfter consecutive failures open the breaker.
	tripAfter = 5
	// coolDown is how long the breaker stays open.
	coolDown = 30 * time.Second
	// maxBody bounds the response body read.
	maxBody = 1 << 20
)

// Module registers the backend.
type Module struct{}

// Register implements generator.Module.
func (Module) Register(b *generator.Backends) {
	b.RegisterBackend(Kind, func(_ context.Context, opts generator.Options) (generator.Generator, error) {
		return New(opts)
	})
}

// Client is the HTTP generator.
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

type request struct {
	Name string `json:"name"`
}

// New returns a client for opts.URL.
func New(opts generator.Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("http generator requires a URL")
	}
	c := &Client{
		url:  opts.URL,
		http: &http.Client{Timeout: opts.TimeoutOrDefault()},
	}
	logger := opts.LoggerOrDefault().With("backend", Kind)
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "generator",
		Timeout: coolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Generator circuit breaker changed state.",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// Generate implements generator.Generator.
func (c *Client) Generate(ctx context.Context, name string) (particle.Description, error) {
	logger := ctxlog.FromContext(ctx).With("backend", Kind, "name", name)
	logger.Debug("Requesting particle description.")

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, name)
	})
	if err != nil {
		op := "request"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			op = "circuit"
		}
		var genErr *particle.GenerationError
		if errors.As(err, &genErr) {
			return particle.Description{}, err
		}
		return particle.Description{}, &particle.GenerationError{Name: name, Op: op, Err: err}
	}

	d, err := generator.Decode(body.([]byte))
	if err != nil {
		return particle.Description{}, err
	}
	logger.Debug("Received particle description.", "color", d.Color.Hex())
	return d, nil
}

func (c *Client) post(ctx context.Context, name string) ([]byte, error) {
	payload, err := json.Marshal(request{Name: name})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &particle.GenerationError{
			Name: name,
			Op:   "response",
			Err:  fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(data)),
		}
	}
	return data, nil
}
