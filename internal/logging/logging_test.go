package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	l.Named("resolver").Debug("tap", zap.String("code", "A"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tap", entry["msg"])
	assert.Equal(t, "resolver", entry["logger"])
	assert.Equal(t, "A", entry["code"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)
	child := l.Named("scan")

	child.Info("hidden")
	assert.Empty(t, buf.String())

	require.NoError(t, l.SetLevel("info"))
	child.Info("shown")
	assert.True(t, strings.Contains(buf.String(), "shown"))
	assert.Equal(t, zapcore.InfoLevel, l.Level())

	assert.Error(t, l.SetLevel("loud"))
}

func TestConfigErrors(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)
}
