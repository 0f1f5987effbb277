package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestSlogLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlogLogger(slog.New(handler)).With(String("component", "graph"))

	logger.Warn("pull failed",
		Int("node", 7),
		Float64("factor", 2.5),
		Bool("cached", false),
		Error("error", errors.New("boom")))

	out := buf.String()
	require.Contains(t, out, "pull failed")
	assert.Contains(t, out, "component=graph")
	assert.Contains(t, out, "node=7")
	assert.Contains(t, out, "factor=2.5")
	assert.Contains(t, out, "cached=false")
	assert.Contains(t, out, "error=boom")
}

func TestSlogLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := NewSlogLogger(slog.New(handler))

	logger.Debug("hidden")
	logger.Info("hidden too")
	assert.Empty(t, buf.String())

	logger.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}
