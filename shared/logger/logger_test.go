package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestInitializeWriterJSON(t *testing.T) {
	t.Cleanup(func() { Initialize("info", false) })

	var buf bytes.Buffer
	InitializeWriter(&buf, "warn", true)

	Log.Info("dropped")
	Log.Warn("kept", "board", "ANN1")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"board":"ANN1"`)
}

func TestFromContext(t *testing.T) {
	assert.Same(t, Log, FromContext(context.Background()))

	scoped := Log.With("request_id", "abc")
	ctx := WithContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx))
}
