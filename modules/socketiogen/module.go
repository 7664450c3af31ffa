// Package socketiogen requests particle descriptions over socket.io. Each
// request opens its own connection, emits a "generate" event and waits for
// either a "particle" or a "generate_error" event.
package socketiogen

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/generator"
	"github.com/specialistvlad/sandforge/internal/particle"
)

// Kind is the backend name.
const Kind = "socketio"

// Event names.
const (
	EventGenerate = "generate"
	EventParticle = "particle"
	EventError    = "generate_error"
)

// Module registers the backend.
type Module struct{}

// Register implements generator.Module.
func (Module) Register(b *generator.Backends) {
	b.RegisterBackend(Kind, func(_ context.Context, opts generator.Options) (generator.Generator, error) {
		return New(opts)
	})
}

// conn is the part of a socket.io client the generator uses.
type conn interface {
	on(event string, fn func(...any))
	emit(event string, args ...any)
	connect()
	disconnect()
}

type socketConn struct{ io *socket.Socket }

func (c socketConn) on(event string, fn func(...any)) { c.io.On(types.EventName(event), fn) }
func (c socketConn) emit(event string, args ...any)   { c.io.Emit(event, args...) }
func (c socketConn) connect()                         { c.io.Connect() }
func (c socketConn) disconnect()                      { c.io.Disconnect() }

// Client is the socket.io generator.
type Client struct {
	opts generator.Options
	dial func() conn
}

// New validates opts and returns a client.
func New(opts generator.Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("socket.io generator requires a URL")
	}
	parsed, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("URL %q needs a scheme and host", opts.URL)
	}

	c := &Client{opts: opts}
	c.dial = func() conn {
		sopts := socket.DefaultOptions()
		sopts.SetPath(parsed.Path)
		if opts.InsecureSkipVerify {
			sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		}
		sopts.SetTransports(types.NewSet(transports.WebSocket))
		baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
		manager := socket.NewManager(baseURL, sopts)
		return socketConn{io: manager.Socket(opts.Namespace, sopts)}
	}
	return c, nil
}

type result struct {
	desc particle.Description
	err  error
}

// Generate implements generator.Generator.
func (c *Client) Generate(ctx context.Context, name string) (particle.Description, error) {
	logger := ctxlog.FromContext(ctx).With("backend", Kind, "url", c.opts.URL, "name", name)
	logger.Debug("Requesting particle description.")

	var connected atomic.Bool
	done := make(chan result, 1)
	send := func(r result) {
		select {
		case done <- r:
		default:
		}
	}

	io := c.dial()
	defer func() {
		logger.Debug("Disconnecting socket client.")
		io.disconnect()
	}()

	io.on("connect", func(...any) {
		connected.Store(true)
		logger.Debug("Connected, emitting request.")
		io.emit(EventGenerate, map[string]any{"name": name})
	})
	io.on("connect_error", func(args ...any) {
		send(result{err: &particle.GenerationError{Name: name, Op: "connect", Err: argError(args)}})
	})
	io.on(EventParticle, func(args ...any) {
		var payload any
		if len(args) > 0 {
			payload = args[0]
		}
		d, err := generator.DecodeValue(payload)
		send(result{desc: d, err: err})
	})
	io.on(EventError, func(args ...any) {
		send(result{err: &particle.GenerationError{Name: name, Op: "response", Err: argError(args)}})
	})

	opCtx, cancel := context.WithTimeout(ctx, c.opts.TimeoutOrDefault())
	defer cancel()
	io.connect()

	select {
	case <-opCtx.Done():
		msg := "timed out while waiting for initial connection"
		if connected.Load() {
			msg = fmt.Sprintf("timed out after connecting while waiting for event '%s'", EventParticle)
		}
		return particle.Description{}, &particle.GenerationError{Name: name, Op: "request", Err: fmt.Errorf("%s: %w", msg, opCtx.Err())}
	case res := <-done:
		if res.err != nil {
			return particle.Description{}, res.err
		}
		logger.Debug("Received particle description.", "color", res.desc.Color.Hex())
		return res.desc, nil
	}
}

// argError turns the first event argument into an error.
func argError(args []any) error {
	if len(args) == 0 {
		return errors.New("no details")
	}
	switch v := args[0].(type) {
	case error:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return errors.New(msg)
		}
	case string:
		return errors.New(v)
	}
	return fmt.Errorf("%v", args[0])
}
