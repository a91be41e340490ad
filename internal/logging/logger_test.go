package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod", "info")
	log.Debug("hidden")
	log.Info("connected", "conn", "abc")

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "connected", rec["msg"])
	assert.Equal(t, "abc", rec["conn"])
}

func TestDevWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "dev", "debug")
	log.Debug("relay.drop", "event", "offer")
	assert.Contains(t, buf.String(), "msg=relay.drop")
	assert.Contains(t, buf.String(), "event=offer")
}
