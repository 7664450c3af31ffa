package ctxlog

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	_, ok := Lookup(context.Background())
	assert.False(t, ok)
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := WithLogger(context.Background(), logger)
	got, ok := Lookup(ctx)
	assert.True(t, ok)
	assert.Same(t, logger, got)
	assert.Same(t, logger, FromContext(ctx))

	_, ok = Lookup(WithLogger(context.Background(), nil))
	assert.False(t, ok)
}
