package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel covers the accepted level names and the fallback.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zapcore.Level
		ok    bool
	}{
		{input: "debug", want: zapcore.DebugLevel, ok: true},
		{input: "info", want: zapcore.InfoLevel, ok: true},
		{input: "warn", want: zapcore.WarnLevel, ok: true},
		{input: "error", want: zapcore.ErrorLevel, ok: true},
		{input: "fatal", want: zapcore.FatalLevel, ok: true},
		{input: "  INFO  ", want: zapcore.InfoLevel, ok: true},
		{input: "verbose", want: zapcore.InfoLevel, ok: false},
		{input: "", want: zapcore.InfoLevel, ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseLogLevel(tt.input)
		require.Equal(t, tt.want, got, "input %q", tt.input)
		require.Equal(t, tt.ok, ok, "input %q", tt.input)
	}
}

// TestFromContextFallsBackToGlobal verifies a bare context resolves to
// the global logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithNameCarriesLogger verifies the named logger travels through the
// context and stamps its name on emitted entries.
func TestWithNameCarriesLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "controller")

	InfoKV(ctx, "Cycle complete", "action_key", "normal")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "controller", entries[0].LoggerName)
	require.Equal(t, "Cycle complete", entries[0].Message)
	require.Equal(t, "normal", entries[0].ContextMap()["action_key"])
}
