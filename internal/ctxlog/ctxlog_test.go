package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	tests := []struct {
		name string
		ctx  func() context.Context
		want *slog.Logger
	}{
		{
			name: "context without logger",
			ctx:  context.Background,
			want: DefaultLogger,
		},
		{
			name: "context with nil logger",
			ctx:  func() context.Context { return New(context.Background(), nil) },
			want: DefaultLogger,
		},
		{
			name: "context with custom logger",
			ctx:  func() context.Context { return New(context.Background(), custom) },
			want: custom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, Logger(tt.ctx()))
		})
	}
}

func TestWithAddsAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := New(context.Background(), slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx = With(ctx, "extension", "vscode-agent")
	Info(ctx, "activated")

	assert.Contains(t, buf.String(), "extension=vscode-agent")
	assert.Contains(t, buf.String(), "msg=activated")
}

func TestNewLoggerJSON(t *testing.T) {
	prev := LevelVar.Level()
	LevelVar.Set(slog.LevelInfo)
	t.Cleanup(func() { LevelVar.Set(prev) })

	buf := &bytes.Buffer{}
	ctx := New(context.Background(), NewLogger(buf, "JSON"))

	Info(ctx, "hello", "k", "v")
	Debug(ctx, "hidden")

	require.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelWarn},
		{"verbose", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CTXLOG_TEST_LOG_LEVEL", tt.value)
			assert.Equal(t, tt.want, levelFromEnv("CTXLOG_TEST_LOG_LEVEL"))
		})
	}
}
