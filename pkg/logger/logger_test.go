package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/koopa0/online-gobang/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_ContextAttributes 測試從上下文帶出 client_id 與 room_id
func TestNew_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("info", "json", &buf)

	ctx := logger.WithRoomID(logger.WithClientID(context.Background(), "c-1"), "3")
	log.With("component", "router").InfoContext(ctx, "玩家加入房間", "role", "black")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "玩家加入房間", entry["msg"])
	assert.Equal(t, "c-1", entry["client_id"])
	assert.Equal(t, "3", entry["room_id"])
	assert.Equal(t, "router", entry["component"])
	assert.Equal(t, "black", entry["role"])
}

// TestNew_Level 測試級別過濾
func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("warn", "text", &buf)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range tests {
		assert.Equal(t, want, logger.ParseLevel(input), "level %q", input)
	}
}
